package volume

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/penguin-xe/android-system-vold/internal/waitfor"
	"github.com/penguin-xe/android-system-vold/logging"
)

var log = logging.GetContextLoggerFunc("volume/emulated")

const (
	emulatedLabel = "emulated"

	runtimeRoot   = "/mnt/runtime"
	userRoot      = "/mnt/user"
	installerRoot = "/mnt/installer"
	storageRoot   = "/storage"

	aidRoot    = 0
	aidMediaRW = 1023
)

// overridable in tests
// The driver normally hands the filesystem off to the kernel well
// within a second.
const (
	overlayPollInterval   = 50 * time.Millisecond
	overlayStartupTimeout = 5000 * time.Millisecond
)

// waitForOverlay polls until the kernel takes over the full view.
// Overridden in tests.
var waitForOverlay = func(ctx context.Context, changed func() bool) error {
	return waitfor.Condition(ctx, changed, overlayPollInterval, overlayStartupTimeout)
}

// Config carries everything an EmulatedVolume needs. RawPath, Mounter
// and Procs are always required; Overlay is required when the sdcardfs
// overlay will be driven by this instance, Bridge when the fuse bridge
// is enabled.
type Config struct {
	RawPath string
	UserID  int

	// FsUUID is the stored display label. Empty means the volume lives
	// on internal storage and is labeled "emulated".
	FsUUID string

	// Device optionally identifies the backing block device.
	Device uint64

	// OwningContext is true for the user session that manages
	// volume-wide mount points (user 0). Computed by the orchestrator.
	OwningContext bool

	// UseSdcardfs reflects kernel support for the sdcardfs overlay,
	// probed once at construction.
	UseSdcardfs bool

	// FuseEnabled reflects the device-wide fuse bridge toggle.
	FuseEnabled bool

	Mounter Mounter
	Overlay OverlayDriver
	Bridge  BridgeService
	Procs   ProcessKiller

	// OnChecking, when set, must confirm the bridge can serve the
	// volume before bind mounts are established.
	OnChecking CheckFunc
}

// EmulatedVolume manages the mount lifecycle of one emulated storage
// volume for one user, reconciling the sdcardfs overlay with the fuse
// bridge. Instances are not safe for concurrent use; the orchestrator
// serializes mount and unmount per volume.
type EmulatedVolume struct {
	Base

	rawPath       string
	label         string
	owningContext bool
	useSdcardfs   bool
	fuseEnabled   bool
	fuseMounted   bool

	sdcardfsDefault string
	sdcardfsRead    string
	sdcardfsWrite   string
	sdcardfsFull    string

	mounter Mounter
	overlay OverlayDriver
	bridge  BridgeService
	procs   ProcessKiller
	check   CheckFunc
}

// NewEmulatedVolume validates cfg and returns an unmounted volume.
func NewEmulatedVolume(cfg Config) (*EmulatedVolume, error) {
	if cfg.RawPath == "" {
		return nil, errors.New("raw path is required")
	}

	if cfg.Mounter == nil {
		return nil, errors.New("mounter is required")
	}

	if cfg.Procs == nil {
		return nil, errors.New("process killer is required")
	}

	if cfg.UseSdcardfs && cfg.OwningContext && cfg.Overlay == nil {
		return nil, errors.New("overlay driver is required for the owning context")
	}

	if cfg.FuseEnabled && cfg.Bridge == nil {
		return nil, errors.New("bridge service is required when fuse is enabled")
	}

	label := cfg.FsUUID
	if label == "" {
		label = emulatedLabel
	}

	v := &EmulatedVolume{
		rawPath:       cfg.RawPath,
		label:         label,
		owningContext: cfg.OwningContext,
		useSdcardfs:   cfg.UseSdcardfs,
		fuseEnabled:   cfg.FuseEnabled,
		mounter:       cfg.Mounter,
		overlay:       cfg.Overlay,
		bridge:        cfg.Bridge,
		procs:         cfg.Procs,
		check:         cfg.OnChecking,
	}

	v.setMountUserID(cfg.UserID)

	if cfg.Device != 0 {
		v.setID(fmt.Sprintf("emulated:%d,%d;%d", devMajor(cfg.Device), devMinor(cfg.Device), cfg.UserID))
	} else {
		v.setID(fmt.Sprintf("emulated;%d", cfg.UserID))
	}

	return v, nil
}

// Label returns the display label of the volume. Primary storage is
// always reported as "emulated", even after migration to an adopted
// volume, to avoid triggering media rescans in consumers.
func (v *EmulatedVolume) Label() string {
	if v.MountFlags()&MountFlagPrimary != 0 {
		return emulatedLabel
	}

	return v.label
}

// Mount brings the volume up: overlay views, fuse bridge and bind
// mounts, as applicable to this user context and feature set.
func (v *EmulatedVolume) Mount(ctx context.Context) error {
	if v.State() != StateUnmounted {
		return errors.Wrapf(ErrBadState, "mount in state %v", v.State())
	}

	v.setState(StateChecking)

	if err := v.doMount(ctx); err != nil {
		v.setState(StateUnmountable)
		return err
	}

	v.setState(StateMounted)

	return nil
}

// Unmount tears the volume down. Calling it on an unmounted volume is a
// no-op success.
func (v *EmulatedVolume) Unmount(ctx context.Context) error {
	if v.State() == StateUnmounted {
		return nil
	}

	v.setState(StateEjecting)

	if err := v.doUnmount(ctx); err != nil {
		v.setState(StateUnmountable)
		return err
	}

	v.setState(StateUnmounted)

	return nil
}

// populatePaths derives the view paths and external path from the
// current label.
func (v *EmulatedVolume) populatePaths() {
	label := v.Label()

	v.sdcardfsDefault = fmt.Sprintf("%s/default/%s", runtimeRoot, label)
	v.sdcardfsRead = fmt.Sprintf("%s/read/%s", runtimeRoot, label)
	v.sdcardfsWrite = fmt.Sprintf("%s/write/%s", runtimeRoot, label)
	v.sdcardfsFull = fmt.Sprintf("%s/full/%s", runtimeRoot, label)

	v.setInternalPath(v.rawPath)
	v.setPath(fmt.Sprintf("%s/%s", storageRoot, label))
}

// AdoptMountedState marks the volume as mounted without touching the
// mount table, so that an orchestrator recovering from a crash can
// unmount whatever a previous instance left behind.
func (v *EmulatedVolume) AdoptMountedState() {
	v.populatePaths()
	v.fuseMounted = v.fuseEnabled && v.MountFlags()&MountFlagVisible != 0
	v.setState(StateMounted)
}

func (v *EmulatedVolume) doMount(ctx context.Context) error {
	label := v.Label()

	v.populatePaths()

	for _, p := range []string{v.sdcardfsDefault, v.sdcardfsRead, v.sdcardfsWrite, v.sdcardfsFull} {
		if err := v.mounter.PrepareDir(p, 0o700, aidRoot, aidRoot); err != nil {
			log(ctx).Errorf("%v failed to create mount points: %v", v.ID(), err)
			return err
		}
	}

	before, err := v.mounter.DeviceID(v.sdcardfsFull)
	if err != nil {
		return errors.Wrap(err, "unable to query device identity")
	}

	// Mount sdcardfs regardless of FUSE, since we need it to bind-mount
	// on top of the FUSE volume for various reasons.
	if v.useSdcardfs && v.owningContext {
		if err := v.mountSdcardfs(ctx, label, before); err != nil {
			return err
		}
	}

	if v.fuseEnabled && v.MountFlags()&MountFlagVisible != 0 {
		return v.mountFuse(ctx, label)
	}

	return nil
}

// mountSdcardfs spawns the sdcardfs driver and waits for the overlay to
// appear over the full view.
func (v *EmulatedVolume) mountSdcardfs(ctx context.Context, label string, before uint64) error {
	log(ctx).Infof("executing sdcardfs for %v", v.ID())

	handoff, err := v.overlay.Spawn(ctx, v.rawPath, label)
	if err != nil {
		log(ctx).Errorf("%v failed to spawn sdcardfs: %v", v.ID(), err)
		return err
	}

	err = waitForOverlay(ctx, func() bool {
		dev, derr := v.mounter.DeviceID(v.sdcardfsFull)
		return derr == nil && dev != before
	})
	if err != nil {
		log(ctx).Warnf("timed out while waiting for sdcardfs to spin up")
		return errors.Wrap(err, "waiting for sdcardfs to spin up")
	}

	// The driver has already exited after handing the filesystem off to
	// the kernel; reap it so it does not linger as a zombie.
	if err := handoff.Reap(); err != nil {
		log(ctx).Warnf("unable to reap sdcardfs: %v", err)
	}

	return nil
}

// mountFuse starts the per-user bridge instance, confirms readiness and
// establishes the bind mounts.
func (v *EmulatedVolume) mountFuse(ctx context.Context, label string) error {
	log(ctx).Infof("mounting emulated fuse volume for %v", v.ID())

	handle, err := v.bridge.Start(ctx, v.MountUserID(), v.InternalPath(), label)
	if err != nil {
		return errors.Wrap(err, "unable to start fuse bridge")
	}

	v.fuseMounted = true

	handleOwned := true

	if v.check != nil {
		ready := v.check(ctx, handle, v.Path(), v.InternalPath())
		handleOwned = false

		if !ready {
			handle.Close() //nolint:errcheck
			v.rollback(ctx)
			return errors.Wrapf(ErrNotReady, "%v", v.ID())
		}
	}

	// Only establish the bind mounts once we know for sure the bridge
	// can resolve the path.
	if err := v.mountFuseBindMounts(ctx); err != nil {
		if handleOwned {
			handle.Close() //nolint:errcheck
		}

		v.rollback(ctx)

		return err
	}

	if handleOwned {
		// Nobody registered to receive the handle.
		handle.Close() //nolint:errcheck
	}

	return nil
}

// androidBindSource is where the per-user Android/ data directory lives
// on the lower filesystem.
func (v *EmulatedVolume) androidBindSource() string {
	if v.useSdcardfs {
		return fmt.Sprintf("%s/default/%s/%d/Android", runtimeRoot, v.Label(), v.MountUserID())
	}

	return fmt.Sprintf("%s/%d/Android", v.rawPath, v.MountUserID())
}

func (v *EmulatedVolume) androidBindTarget() string {
	return fmt.Sprintf("%s/%d/%s/%d/Android", userRoot, v.MountUserID(), v.Label(), v.MountUserID())
}

func (v *EmulatedVolume) installerBindSource() string {
	return fmt.Sprintf("%s/write/%s/%d/Android/obb", runtimeRoot, v.Label(), v.MountUserID())
}

func (v *EmulatedVolume) installerBindTarget() string {
	return fmt.Sprintf("%s/%d/%s/%d/Android/obb", installerRoot, v.MountUserID(), v.Label(), v.MountUserID())
}

func (v *EmulatedVolume) mountFuseBindMounts(ctx context.Context) error {
	if err := v.bindMountCreatingSource(ctx, v.androidBindSource(), v.androidBindTarget()); err != nil {
		return err
	}

	// Installers get the same view as all other apps, with the sole
	// exception that the OBB dirs (Android/obb) are writable to them.
	// On sdcardfs devices this requires a separate bind mount, since
	// app-private and OBB dirs share the same GID and we only want to
	// give access to the latter.
	if !v.useSdcardfs {
		return nil
	}

	return v.bindMountCreatingSource(ctx, v.installerBindSource(), v.installerBindTarget())
}

// bindMountCreatingSource bind mounts source on target, first making
// sure the source (!) directory exists on the lower filesystem with
// media_rw ownership.
func (v *EmulatedVolume) bindMountCreatingSource(ctx context.Context, source, target string) error {
	// Source may not exist yet if the user has just been created.
	if err := v.mounter.PrepareDir(source, 0o771, aidMediaRW, aidMediaRW); err != nil {
		log(ctx).Errorf("failed to create %v: %v", source, err)
		return err
	}

	log(ctx).Infof("bind mounting %v on %v", source, target)

	return v.mounter.BindMount(ctx, source, target)
}

func (v *EmulatedVolume) doUnmount(ctx context.Context) error {
	v.killUsers(ctx)

	steps := v.fuseTeardownSteps()

	// sdcardfs views are shared by all users and are torn down exactly
	// once, by the owning context.
	tearDownViews := v.owningContext && v.useSdcardfs && v.sdcardfsDefault != ""
	if tearDownViews {
		steps = append(steps, v.viewTeardownSteps()...)
	}

	if err := runTeardown(ctx, steps); err != nil {
		return err
	}

	if tearDownViews {
		v.sdcardfsDefault = ""
		v.sdcardfsRead = ""
		v.sdcardfsWrite = ""
		v.sdcardfsFull = ""
	}

	return nil
}

// rollback undoes the bridge and bind mounts established by a failed
// mount attempt. The sdcardfs views stay mounted; they are torn down by
// the next explicit unmount from the owning context.
func (v *EmulatedVolume) rollback(ctx context.Context) {
	v.killUsers(ctx)

	if err := runTeardown(ctx, v.fuseTeardownSteps()); err != nil {
		log(ctx).Warnf("rollback of %v incomplete: %v", v.ID(), err)
	}
}

// killUsers kills all processes using the filesystem. This must happen
// before unmounting: unmounting first leaves surviving file handles
// returning ENOTCONN, an exotic error code that confuses applications.
func (v *EmulatedVolume) killUsers(ctx context.Context) {
	if v.fuseMounted {
		// There is a bridge instance per user, so only kill processes
		// using files from this particular user.
		userPath := fmt.Sprintf("%s/%d", v.Path(), v.MountUserID())
		log(ctx).Infof("killing all processes referencing %v", userPath)
		v.procs.KillProcessesUsingPath(ctx, userPath)
	} else {
		v.procs.KillProcessesUsingPath(ctx, v.Path())
	}
}

func (v *EmulatedVolume) fuseTeardownSteps() []teardownStep {
	if !v.fuseMounted {
		return nil
	}

	var steps []teardownStep

	if v.useSdcardfs {
		target := v.installerBindTarget()
		steps = append(steps, teardownStep{"unmount " + target, bestEffort, func(ctx context.Context) error {
			return v.mounter.UnmountTree(ctx, target)
		}})
	}

	target := v.androidBindTarget()
	steps = append(steps, teardownStep{"unmount " + target, bestEffort, func(ctx context.Context) error {
		return v.mounter.UnmountTree(ctx, target)
	}})

	return append(steps, teardownStep{"stop fuse bridge", mandatory, func(ctx context.Context) error {
		if err := v.bridge.Stop(ctx, v.MountUserID(), v.InternalPath(), v.Label()); err != nil {
			return err
		}

		v.fuseMounted = false

		return nil
	}})
}

func (v *EmulatedVolume) viewTeardownSteps() []teardownStep {
	views := []string{v.sdcardfsDefault, v.sdcardfsRead, v.sdcardfsWrite, v.sdcardfsFull}

	var steps []teardownStep

	for _, p := range views {
		p := p
		steps = append(steps, teardownStep{"force unmount " + p, bestEffort, func(ctx context.Context) error {
			return v.mounter.ForceUnmount(ctx, p)
		}})
	}

	for _, p := range views {
		p := p
		steps = append(steps, teardownStep{"remove " + p, bestEffort, func(ctx context.Context) error {
			return v.mounter.RemoveDir(p)
		}})
	}

	return steps
}

// linux dev_t encoding
func devMajor(dev uint64) uint32 {
	return uint32((dev >> 8) & 0xfff)
}

func devMinor(dev uint64) uint32 {
	return uint32((dev & 0xff) | ((dev >> 12) & 0xffffff00))
}
