package layer

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Digest returns an opaque hash of v. Strings and byte slices are hashed
// directly; everything else is hashed through its JSON encoding.
func Digest(v any) string {
	var sum uint64
	switch t := v.(type) {
	case string:
		sum = xxhash.Sum64String(t)
	case []byte:
		sum = xxhash.Sum64(t)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			data = []byte(fmt.Sprintf("%#v", v))
		}
		sum = xxhash.Sum64(data)
	}
	return strconv.FormatUint(sum, 16)
}
