package cli

import (
	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"
)

var (
	unmountCommand = app.Command("unmount", "Tear down mounts left behind by a previous vold instance.")

	unmountUser    = unmountCommand.Flag("user", "User whose volume should be unmounted.").Default("0").Int()
	unmountPath    = unmountCommand.Flag("path", "Raw backing path.").Default("/data/media").String()
	unmountUUID    = unmountCommand.Flag("uuid", "Filesystem UUID used as the volume label.").String()
	unmountPrimary = unmountCommand.Flag("primary", "The volume was mounted as primary external storage.").Bool()
	unmountVisible = unmountCommand.Flag("visible", "The volume was mounted visible to the user.").Bool()
	unmountNoFuse  = unmountCommand.Flag("no-fuse", "The volume was mounted without the fuse bridge.").Bool()
)

func runUnmountCommand(pc *kingpin.ParseContext) error {
	ctx := rootContext()

	v, err := buildEmulatedVolume(*unmountUser, *unmountPath, *unmountUUID, !*unmountNoFuse)
	if err != nil {
		return err
	}

	v.SetMountFlags(mountFlags(*unmountPrimary, *unmountVisible))
	v.AdoptMountedState()

	err = withMountLock(func() error {
		return v.Unmount(ctx)
	})
	if err != nil {
		return err
	}

	color.Green("%v unmounted", v.ID())

	return nil
}

func init() {
	unmountCommand.Action(runUnmountCommand)
}
