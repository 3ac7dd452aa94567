package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/contentlayer/pkg/schema"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		schema  *schema.Schema
		wantErr string
	}{
		{"valid object", schema.Object(schema.Fields{"a": schema.String()}), ""},
		{"reference without collection", schema.Object(schema.Fields{"a": {Type: schema.KindReference}}), "reference needs a target collection"},
		{"array without items", schema.Object(schema.Fields{"a": {Type: schema.KindArray}}), "array needs an items schema"},
		{"empty enum", schema.Enum(nil), "enum needs at least one value"},
		{"unknown type", &schema.Schema{Type: "uuid"}, `unknown type "uuid"`},
		{"nil field", schema.Object(schema.Fields{"a": nil}), "missing descriptor"},
		{"nested path", schema.Object(schema.Fields{"a": schema.Array(&schema.Schema{})}), "schema a.[]: missing type"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.schema.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestDigest(t *testing.T) {
	a := schema.Object(schema.Fields{"title": schema.String(), "date": schema.Date(schema.Coerce())})
	b := schema.Object(schema.Fields{"date": schema.Date(schema.Coerce()), "title": schema.String()})
	c := schema.Object(schema.Fields{"title": schema.String(), "date": schema.Date()})

	assert.Equal(t, a.Digest(), b.Digest(), "field declaration order must not matter")
	assert.NotEqual(t, a.Digest(), c.Digest())
	assert.Empty(t, (*schema.Schema)(nil).Digest())
}

func TestUnmarshalYAML(t *testing.T) {
	src := `
type: object
fields:
  title: string
  published:
    type: date
    coerce: true
  category:
    type: reference
    collection: categories
    default: general
  tags:
    type: array
    items: string
    optional: true
`
	var s schema.Schema
	require.NoError(t, yaml.Unmarshal([]byte(src), &s))
	require.NoError(t, s.Validate())

	assert.Equal(t, schema.KindObject, s.Type)
	assert.Equal(t, schema.KindString, s.Fields["title"].Type)
	assert.True(t, s.Fields["published"].Coerce)
	assert.Equal(t, "categories", s.Fields["category"].Collection)
	assert.Equal(t, "general", s.Fields["category"].Default)
	assert.Equal(t, schema.KindString, s.Fields["tags"].Items.Type)
	assert.True(t, s.Fields["tags"].Optional)
}

func TestUnmarshalJSON(t *testing.T) {
	var s schema.Schema
	require.NoError(t, s.UnmarshalJSON([]byte(`{"type":"array","items":"number"}`)))
	assert.Equal(t, schema.KindArray, s.Type)
	assert.Equal(t, schema.KindNumber, s.Items.Type)
}
