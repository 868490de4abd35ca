package mountutil

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// BindMount makes the subtree rooted at source visible at target.
func (m *Mounter) BindMount(ctx context.Context, source, target string) error {
	log(ctx).Debugf("bind mounting %v on %v", source, target)

	if err := unix.Mount(source, target, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return errors.Wrapf(err, "unable to bind mount %v on %v", source, target)
	}

	return nil
}

// UnmountTree lazily detaches the mount at path together with any mounts
// stacked on top of it.
func (m *Mounter) UnmountTree(ctx context.Context, path string) error {
	log(ctx).Debugf("unmounting tree %v", path)

	if err := unix.Unmount(path, unix.MNT_DETACH); err != nil {
		return errors.Wrapf(err, "unable to unmount %v", path)
	}

	return nil
}

// ForceUnmount unmounts path even when it is busy, falling back to a
// lazy detach when a forced unmount is refused.
func (m *Mounter) ForceUnmount(ctx context.Context, path string) error {
	log(ctx).Debugf("force unmounting %v", path)

	err := unix.Unmount(path, unix.MNT_FORCE)
	if errors.Is(err, unix.EBUSY) {
		err = unix.Unmount(path, unix.MNT_DETACH)
	}

	if err != nil {
		return errors.Wrapf(err, "unable to force unmount %v", path)
	}

	return nil
}

// PrepareDir ensures path exists as a directory with the given mode and
// ownership, fixing up mode and owner of an existing directory.
func (m *Mounter) PrepareDir(path string, mode os.FileMode, uid, gid int) error {
	fi, err := os.Lstat(path)

	switch {
	case os.IsNotExist(err):
		if err := os.Mkdir(path, mode); err != nil {
			return errors.Wrapf(err, "unable to create %v", path)
		}

	case err != nil:
		return errors.Wrapf(err, "unable to stat %v", path)

	case !fi.IsDir():
		return errors.Errorf("%v exists and is not a directory", path)
	}

	if err := os.Chmod(path, mode); err != nil {
		return errors.Wrapf(err, "unable to chmod %v", path)
	}

	if err := os.Chown(path, uid, gid); err != nil {
		return errors.Wrapf(err, "unable to chown %v", path)
	}

	return nil
}

// DeviceID returns the identifier of the device backing path. The
// identifier changes once a filesystem is mounted over the path.
func (m *Mounter) DeviceID(path string) (uint64, error) {
	var st unix.Stat_t

	if err := unix.Stat(path, &st); err != nil {
		return 0, errors.Wrapf(err, "unable to stat %v", path)
	}

	//nolint:unconvert
	return uint64(st.Dev), nil
}

// RemoveDir removes an empty directory, treating a missing one as success.
func (m *Mounter) RemoveDir(path string) error {
	if err := unix.Rmdir(path); err != nil && !errors.Is(err, unix.ENOENT) {
		return errors.Wrapf(err, "unable to remove %v", path)
	}

	return nil
}
