// Package procutil kills processes holding open references under a
// filesystem path, so that the path can be unmounted without leaving
// broken handles behind.
package procutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/penguin-xe/android-system-vold/logging"
)

var log = logging.GetContextLoggerFunc("procutil")

const procRoot = "/proc"

// Killer scans the process table and kills processes using a path.
type Killer struct {
	procRoot string
}

// NewKiller returns a Killer scanning the real process table.
func NewKiller() *Killer {
	return &Killer{procRoot: procRoot}
}

// KillProcessesUsingPath sends SIGKILL to every process whose working
// directory, root, executable or any open descriptor lives under path.
// Fire and forget: scan and kill failures are logged, never returned.
func (k *Killer) KillProcessesUsingPath(ctx context.Context, path string) {
	if path == "" {
		return
	}

	entries, err := os.ReadDir(k.procRoot)
	if err != nil {
		log(ctx).Warnf("unable to scan %v: %v", k.procRoot, err)
		return
	}

	self := os.Getpid()

	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid == self {
			continue
		}

		if !k.processUsesPath(pid, path) {
			continue
		}

		log(ctx).Infof("killing pid %v with open references under %v", pid, path)

		if err := syscall.Kill(pid, syscall.SIGKILL); err != nil {
			log(ctx).Warnf("unable to kill pid %v: %v", pid, err)
		}
	}
}

func (k *Killer) processUsesPath(pid int, path string) bool {
	pidDir := filepath.Join(k.procRoot, strconv.Itoa(pid))

	for _, link := range []string{"cwd", "root", "exe"} {
		if target, err := os.Readlink(filepath.Join(pidDir, link)); err == nil && pathHasPrefix(target, path) {
			return true
		}
	}

	fds, err := os.ReadDir(filepath.Join(pidDir, "fd"))
	if err != nil {
		return false
	}

	for _, fd := range fds {
		if target, err := os.Readlink(filepath.Join(pidDir, "fd", fd.Name())); err == nil && pathHasPrefix(target, path) {
			return true
		}
	}

	return false
}

// pathHasPrefix reports whether target equals prefix or lives under it.
func pathHasPrefix(target, prefix string) bool {
	if target == prefix {
		return true
	}

	return strings.HasPrefix(target, fmt.Sprintf("%s%c", prefix, filepath.Separator))
}
