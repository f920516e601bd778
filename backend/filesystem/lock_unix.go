//go:build unix

package filesystem

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// lockFile takes an exclusive flock on path, creating it and its directory if
// needed. A lock won on a file that Remove unlinked meanwhile is dropped and
// taken again on the file now at path.
func lockFile(path string) (func() error, error) {
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
		if os.IsNotExist(err) {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
			f.Close()
			return nil, err
		}
		held, herr := f.Stat()
		cur, cerr := os.Stat(path)
		if herr == nil && cerr == nil && os.SameFile(held, cur) {
			return func() error {
				unix.Flock(int(f.Fd()), unix.LOCK_UN)
				return f.Close()
			}, nil
		}
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		if herr != nil {
			return nil, herr
		}
		if cerr != nil && !os.IsNotExist(cerr) {
			return nil, cerr
		}
	}
}
