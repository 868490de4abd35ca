// Package sdcardfs drives the kernel sdcardfs overlay filesystem: a
// feature probe plus spawning of the user-space driver that asks the
// kernel to mount the permission-filtered views.
package sdcardfs

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/penguin-xe/android-system-vold/internal/osexec"
	"github.com/penguin-xe/android-system-vold/logging"
	"github.com/penguin-xe/android-system-vold/volume"
)

var log = logging.GetContextLoggerFunc("sdcardfs")

// DriverPath is where the sdcardfs driver binary lives on the device.
const DriverPath = "/system/bin/sdcard"

const aidMediaRW = 1023

const filesystemsFile = "/proc/filesystems"

// Supported reports whether the running kernel supports sdcardfs.
func Supported() bool {
	data, err := os.ReadFile(filesystemsFile)
	if err != nil {
		return false
	}

	return supportedIn(data)
}

// supportedIn scans a /proc/filesystems payload for the sdcardfs type.
func supportedIn(data []byte) bool {
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 && fields[len(fields)-1] == "sdcardfs" {
			return true
		}
	}

	return false
}

// Driver spawns the sdcardfs driver binary.
type Driver struct {
	execPath string
}

// NewDriver returns a Driver using the stock binary location.
func NewDriver() *Driver {
	return &Driver{execPath: DriverPath}
}

var _ volume.OverlayDriver = (*Driver)(nil)

// driverArgs is the invocation contract of the driver: media_rw
// credentials, multi-user mode, write mode, derive-gid, fs-ids, then
// the backing path and label.
func driverArgs(rawPath, label string) []string {
	aid := strconv.Itoa(aidMediaRW)

	return []string{
		"-u", aid,
		"-g", aid,
		"-m",
		"-w",
		"-G",
		"-i",
		"-o",
		rawPath,
		label,
	}
}

// Spawn starts the driver for the given backing path and label. The
// driver hands the filesystem off to the kernel and exits on its own;
// callers detect the mount through device identity and then Reap the
// returned handoff.
func (d *Driver) Spawn(ctx context.Context, rawPath, label string) (volume.OverlayHandoff, error) {
	cmd := exec.Command(d.execPath, driverArgs(rawPath, label)...) //nolint:gosec

	// The driver must survive this process; the views it establishes
	// outlive any single invocation.
	osexec.Detach(cmd)

	log(ctx).Debugf("spawning %v %v", d.execPath, cmd.Args[1:])

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "unable to spawn %v", d.execPath)
	}

	return &handoff{cmd}, nil
}

type handoff struct {
	cmd *exec.Cmd
}

// Reap waits for the spawned driver. The driver exits once the kernel
// owns the filesystem, so a nonzero exit status is not an error.
func (h *handoff) Reap() error {
	if err := h.cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil
		}

		return errors.Wrap(err, "unable to reap sdcardfs driver")
	}

	return nil
}
