//go:build !unix

package filesystem

import (
	"os"
	"path/filepath"
)

// lockFile only makes sure the key directory exists where flock is
// unavailable; writers in the same process are still serialized by the key
// locks.
func lockFile(path string) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return func() error { return nil }, nil
}
