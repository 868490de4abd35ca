package cli

import (
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/penguin-xe/android-system-vold/internal/sdcardfs"
)

var filesystemsCommand = app.Command("filesystems", "Show overlay filesystem support of the running kernel.")

func runFilesystemsCommand(pc *kingpin.ParseContext) error {
	fmt.Printf("sdcardfs: %v\n", sdcardfs.Supported())
	return nil
}

func init() {
	filesystemsCommand.Action(runFilesystemsCommand)
}
