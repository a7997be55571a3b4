//go:build darwin

package diskmanager

import (
	"os"

	"golang.org/x/sys/unix"
)

// durableSync issues F_FULLFSYNC, since fsync on darwin only reaches the
// drive cache. Filesystems that reject the fcntl fall back to fsync.
func durableSync(f *os.File) error {
	if _, err := unix.FcntlInt(f.Fd(), unix.F_FULLFSYNC, 0); err == nil {
		return nil
	}
	return f.Sync()
}
