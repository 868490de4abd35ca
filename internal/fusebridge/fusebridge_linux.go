package fusebridge

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/penguin-xe/android-system-vold/internal/mountutil"
	"github.com/penguin-xe/android-system-vold/volume"
)

// Service implements volume.BridgeService against the real fuse device.
type Service struct {
	mounter *mountutil.Mounter
}

// NewService returns a Service using the given mounter for directory
// preparation and teardown.
func NewService(m *mountutil.Mounter) *Service {
	return &Service{mounter: m}
}

var _ volume.BridgeService = (*Service)(nil)

// Start mounts a fuse filesystem for the given user and label and
// returns the handle owning the fuse device descriptor. The receiver of
// the handle is expected to start serving fuse requests on it.
func (s *Service) Start(ctx context.Context, userID int, internalPath, label string) (volume.BridgeHandle, error) {
	userDir := fmt.Sprintf("/mnt/user/%d", userID)
	path := mountPath(userID, label)

	if err := s.mounter.PrepareDir(userDir, 0o750, aidRoot, aidSystem); err != nil {
		return nil, err
	}

	if err := s.mounter.PrepareDir(path, 0o755, aidRoot, aidRoot); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(fuseDevice, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open %v", fuseDevice)
	}

	opts := fmt.Sprintf("fd=%d,rootmode=40000,default_permissions,allow_other,user_id=0,group_id=0", f.Fd())

	if err := unix.Mount(fuseDevice, path, "fuse", unix.MS_NOSUID|unix.MS_NODEV|unix.MS_NOEXEC|unix.MS_NOATIME, opts); err != nil {
		f.Close() //nolint:errcheck
		return nil, errors.Wrapf(err, "unable to mount fuse at %v", path)
	}

	log(ctx).Infof("mounted fuse bridge for user %v at %v", userID, path)

	return &Handle{f: f}, nil
}

// Stop unmounts the per-user bridge mount.
func (s *Service) Stop(ctx context.Context, userID int, internalPath, label string) error {
	return s.mounter.UnmountTree(ctx, mountPath(userID, label))
}
