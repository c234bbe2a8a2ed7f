//go:build !windows

package ops

import (
	stderrors "errors"
	"os"
	"syscall"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/errors"
)

// noFollowFlags refuse a symlink as the final path component and keep the
// descriptor out of child processes. Parent directories are covered by
// ValidatePath, which only admits files sitting directly in a backup directory.
const noFollowFlags = syscall.O_NOFOLLOW | syscall.O_CLOEXEC

// openFileNoFollow opens a backup file for writing.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	return openNoFollow(path, flag, perm, "write to")
}

// openFileNoFollowRead opens a backup file for reading.
func openFileNoFollowRead(path string) (*os.File, error) {
	return openNoFollow(path, syscall.O_RDONLY, 0, "read from")
}

func openNoFollow(path string, flag int, perm os.FileMode, verb string) (*os.File, error) {
	fd, err := syscall.Open(path, flag|noFollowFlags, uint32(perm))
	switch {
	case err == nil:
		return os.NewFile(uintptr(fd), path), nil
	case stderrors.Is(err, syscall.ELOOP):
		return nil, errors.NewInvalidRequest("cannot " + verb + " symlink")
	case stderrors.Is(err, syscall.ENOENT) && flag&syscall.O_CREAT == 0:
		return nil, errors.NewFileNotFound(path)
	default:
		return nil, err
	}
}
