//go:build windows

package ops

import (
	"os"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/errors"
)

// Windows has no O_NOFOLLOW. ValidatePath rejects symlinked backup paths
// before either helper runs.

// openFileNoFollow opens a backup file for writing.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}

// openFileNoFollowRead opens a backup file for reading.
func openFileNoFollowRead(path string) (*os.File, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.NewFileNotFound(path)
	}
	return f, err
}
