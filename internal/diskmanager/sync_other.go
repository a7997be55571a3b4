//go:build !linux && !darwin && !windows

package diskmanager

import "os"

func durableSync(f *os.File) error {
	return f.Sync()
}
