package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"

	"github.com/penguin-xe/android-system-vold/internal/fusebridge"
	"github.com/penguin-xe/android-system-vold/internal/mountutil"
	"github.com/penguin-xe/android-system-vold/internal/procutil"
	"github.com/penguin-xe/android-system-vold/internal/sdcardfs"
	"github.com/penguin-xe/android-system-vold/volume"
)

var (
	mountCommand = app.Command("mount", "Mount the emulated volume for a user and keep it mounted until interrupted.")

	mountUser    = mountCommand.Flag("user", "User to mount the volume for.").Default("0").Int()
	mountPath    = mountCommand.Flag("path", "Raw backing path.").Default("/data/media").String()
	mountUUID    = mountCommand.Flag("uuid", "Filesystem UUID used as the volume label.").String()
	mountPrimary = mountCommand.Flag("primary", "Mark the volume as primary external storage.").Bool()
	mountVisible = mountCommand.Flag("visible", "Mark the volume as visible to the user.").Bool()
	mountNoFuse  = mountCommand.Flag("no-fuse", "Disable the user-space fuse bridge.").Bool()
	mountOneShot = mountCommand.Flag("one-shot", "Exit after mounting instead of staying resident.").Bool()
)

func runMountCommand(pc *kingpin.ParseContext) error {
	ctx := rootContext()

	v, err := buildEmulatedVolume(*mountUser, *mountPath, *mountUUID, !*mountNoFuse)
	if err != nil {
		return err
	}

	v.SetMountFlags(mountFlags(*mountPrimary, *mountVisible))

	err = withMountLock(func() error {
		return v.Mount(ctx)
	})
	if err != nil {
		return err
	}

	color.Green("%v mounted at %v", v.ID(), v.Path())

	if *mountOneShot {
		return nil
	}

	waitForShutdownSignal(ctx)

	return withMountLock(func() error {
		return v.Unmount(ctx)
	})
}

func mountFlags(primary, visible bool) volume.MountFlags {
	var flags volume.MountFlags

	if primary {
		flags |= volume.MountFlagPrimary
	}

	if visible {
		flags |= volume.MountFlagVisible
	}

	return flags
}

// buildEmulatedVolume wires the real collaborators. The owning context
// is the user 0 session, which stays resident for the device lifetime.
func buildEmulatedVolume(userID int, rawPath, fsUUID string, fuse bool) (*volume.EmulatedVolume, error) {
	m := mountutil.New()

	return volume.NewEmulatedVolume(volume.Config{
		RawPath:       rawPath,
		UserID:        userID,
		FsUUID:        fsUUID,
		OwningContext: userID == 0,
		UseSdcardfs:   sdcardfs.Supported(),
		FuseEnabled:   fuse,
		Mounter:       m,
		Overlay:       sdcardfs.NewDriver(),
		Bridge:        fusebridge.NewService(m),
		Procs:         procutil.NewKiller(),
	})
}

func waitForShutdownSignal(ctx context.Context) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	<-ch
	log(ctx).Infof("shutting down")
}

func init() {
	mountCommand.Action(runMountCommand)
}
