package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir creates dir (resolved against the working directory when
// relative) and returns its absolute path.
func EnsureDir(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("ensure dir: empty path")
	}
	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = filepath.Join(cwd, dir)
	}

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}
