// Package mountutil implements the mount-table and directory primitives
// used by the volume controllers.
package mountutil

import (
	"github.com/penguin-xe/android-system-vold/logging"
)

var log = logging.GetContextLoggerFunc("mountutil")

// Mounter performs mount-table and directory operations on the host.
type Mounter struct{}

// New returns a Mounter operating on the real mount table.
func New() *Mounter {
	return &Mounter{}
}
