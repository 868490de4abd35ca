// Package cli implements the vold command-line interface.
package cli

import (
	"github.com/alecthomas/kingpin/v2"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

var (
	app = kingpin.New("vold", "Mount lifecycle daemon for emulated per-user storage volumes.")

	lockFile = app.Flag("lock-file", "Lock file serializing mount table changes.").Default("/run/vold.lock").String()
)

// App returns an instance of command-line application object.
func App() *kingpin.Application {
	return app
}

// withMountLock runs fn while holding the exclusive mount-table lock,
// so that two vold invocations never mutate mounts concurrently.
func withMountLock(fn func() error) error {
	l := flock.New(*lockFile)

	if err := l.Lock(); err != nil {
		return errors.Wrapf(err, "unable to acquire %v", *lockFile)
	}

	defer l.Unlock() //nolint:errcheck

	return fn()
}
