// Package volume implements mount lifecycle management for storage
// volumes exposed to users of the device.
package volume

import (
	"context"
	"os"

	"github.com/pkg/errors"
)

// State describes where a volume is in its mount lifecycle.
type State int

// Volume states.
const (
	StateUnmounted State = iota
	StateChecking
	StateMounted
	StateEjecting
	StateUnmountable
	StateBadRemoval
)

func (s State) String() string {
	switch s {
	case StateUnmounted:
		return "unmounted"
	case StateChecking:
		return "checking"
	case StateMounted:
		return "mounted"
	case StateEjecting:
		return "ejecting"
	case StateUnmountable:
		return "unmountable"
	case StateBadRemoval:
		return "bad-removal"
	default:
		return "unknown"
	}
}

// MountFlags alter how a volume is mounted. They are assigned by the
// volume orchestrator before each mount.
type MountFlags uint32

// Supported mount flags.
const (
	// MountFlagPrimary marks the volume backing primary external storage.
	MountFlagPrimary MountFlags = 1 << iota

	// MountFlagVisible marks the volume as visible to the user.
	MountFlagVisible
)

var (
	// ErrBadState is returned when a lifecycle operation is invoked in a
	// state that does not permit it.
	ErrBadState = errors.New("volume is in unexpected state")

	// ErrNotReady is returned when the registered readiness check
	// rejects a freshly mounted volume.
	ErrNotReady = errors.New("volume readiness check failed")
)

// Mounter provides the mount-table and directory primitives the volume
// controllers need.
type Mounter interface {
	BindMount(ctx context.Context, source, target string) error
	UnmountTree(ctx context.Context, path string) error
	ForceUnmount(ctx context.Context, path string) error
	PrepareDir(path string, mode os.FileMode, uid, gid int) error
	DeviceID(path string) (uint64, error)
	RemoveDir(path string) error
}

// OverlayDriver spawns the kernel overlay filesystem driver for a
// backing path. The driver hands the filesystem off to the kernel and
// exits; completion is observed through device identity, not exit
// status.
type OverlayDriver interface {
	Spawn(ctx context.Context, rawPath, label string) (OverlayHandoff, error)
}

// OverlayHandoff reaps a spawned overlay driver once its filesystem has
// been observed in the mount table.
type OverlayHandoff interface {
	Reap() error
}

// BridgeService starts and stops the per-user user-space filesystem
// bridge.
type BridgeService interface {
	Start(ctx context.Context, userID int, internalPath, label string) (BridgeHandle, error)
	Stop(ctx context.Context, userID int, internalPath, label string) error
}

// BridgeHandle is the control handle obtained when starting the bridge.
type BridgeHandle interface {
	Close() error
}

// ProcessKiller kills processes holding open references under a path.
type ProcessKiller interface {
	KillProcessesUsingPath(ctx context.Context, path string)
}

// CheckFunc is invoked after the bridge is started to confirm the
// volume is usable before bind mounts are established. It receives
// ownership of the handle and reports readiness.
type CheckFunc func(ctx context.Context, h BridgeHandle, path, internalPath string) bool

// Base carries the bookkeeping shared by all volume types: identifier,
// externally visible path, internal path and lifecycle state.
type Base struct {
	id           string
	path         string
	internalPath string
	state        State
	flags        MountFlags
	userID       int
}

// ID returns the volume identifier.
func (b *Base) ID() string { return b.id }

// Path returns the externally visible path of the mounted volume.
func (b *Base) Path() string { return b.path }

// InternalPath returns the path backing the volume.
func (b *Base) InternalPath() string { return b.internalPath }

// State returns the current lifecycle state.
func (b *Base) State() State { return b.state }

// MountFlags returns the flags assigned for the current mount.
func (b *Base) MountFlags() MountFlags { return b.flags }

// SetMountFlags assigns the flags for the next mount. Owned by the
// orchestrator.
func (b *Base) SetMountFlags(f MountFlags) { b.flags = f }

// MountUserID returns the user this volume is mounted for.
func (b *Base) MountUserID() int { return b.userID }

func (b *Base) setID(id string)              { b.id = id }
func (b *Base) setPath(p string)             { b.path = p }
func (b *Base) setInternalPath(p string)     { b.internalPath = p }
func (b *Base) setState(s State)             { b.state = s }
func (b *Base) setMountUserID(userID int)    { b.userID = userID }
