package platform

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/contentlayer/internal/config"
)

// FindRoot looks upwards from startDir for a project root.
// Indicators are: a contentlayer configuration file, a .contentlayer
// directory or a .git directory. It returns the absolute path of the root.
func FindRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		if _, ok := config.Find(dir); ok {
			return dir, nil
		}
		if hasFile(dir, ".contentlayer") || hasFile(dir, ".git") {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("project root not found above %s", abs)
}

func hasFile(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
