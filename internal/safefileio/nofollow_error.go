package safefileio

import (
	"errors"
	"os"
	"syscall"
)

// isNoFollowError reports whether an O_NOFOLLOW open failed on a symlink.
// Linux returns ELOOP, FreeBSD returns EMLINK.
func isNoFollowError(err error) bool {
	var e *os.PathError
	if !errors.As(err, &e) {
		return false
	}
	return errors.Is(e.Err, syscall.ELOOP) || errors.Is(e.Err, syscall.EMLINK)
}
