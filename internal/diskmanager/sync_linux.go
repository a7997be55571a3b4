//go:build linux

package diskmanager

import (
	"os"

	"golang.org/x/sys/unix"
)

// durableSync uses fdatasync: file data and the metadata needed to read it
// back reach the device, without forcing unrelated inode updates.
func durableSync(f *os.File) error {
	if err := unix.Fdatasync(int(f.Fd())); err != nil {
		return &os.PathError{Op: "fdatasync", Path: f.Name(), Err: err}
	}
	return nil
}
