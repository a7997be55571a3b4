//go:build windows

package diskmanager

import (
	"os"

	"golang.org/x/sys/windows"
)

func durableSync(f *os.File) error {
	if err := windows.FlushFileBuffers(windows.Handle(f.Fd())); err != nil {
		return &os.PathError{Op: "FlushFileBuffers", Path: f.Name(), Err: err}
	}
	return nil
}
