// Package fusebridge starts and stops the per-user user-space
// filesystem bridge that serves emulated storage over the kernel fuse
// protocol.
package fusebridge

import (
	"fmt"
	"os"
	"sync"

	"github.com/penguin-xe/android-system-vold/logging"
)

var log = logging.GetContextLoggerFunc("fusebridge")

const (
	fuseDevice = "/dev/fuse"

	aidRoot   = 0
	aidSystem = 1000
)

// Handle owns the fuse device descriptor of a started bridge instance.
// It is handed to the readiness callback, whose receiver keeps the fuse
// session alive by serving requests on it.
type Handle struct {
	closeOnce sync.Once
	f         *os.File
}

// File exposes the underlying fuse device file.
func (h *Handle) File() *os.File { return h.f }

// Close releases the fuse device descriptor. Safe to call more than
// once.
func (h *Handle) Close() error {
	var err error

	h.closeOnce.Do(func() {
		err = h.f.Close()
	})

	return err
}

func mountPath(userID int, label string) string {
	return fmt.Sprintf("/mnt/user/%d/%s", userID, label)
}
