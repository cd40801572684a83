// nfscollector/utility/path.go
package utility

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FindObject locates a compiled kernel object: next to the executable
// first, then in the working directory.
func FindObject(name string) (string, error) {
	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}

	for _, dir := range dirs {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", p, err)
		}
	}
	return "", fmt.Errorf("%s not found in %v", name, dirs)
}
