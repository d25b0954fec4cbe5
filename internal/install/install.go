// Package install orchestrates one full run: template layering, disk and
// filesystem provisioning, the chroot container, the post-install
// pipeline, and the state dump export. It is the body of the installer
// binary invoked under --non-interactive.
package install

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/FyraLabs/readymade/internal/container"
	"github.com/FyraLabs/readymade/internal/crypt"
	"github.com/FyraLabs/readymade/internal/errs"
	"github.com/FyraLabs/readymade/internal/export"
	"github.com/FyraLabs/readymade/internal/mount"
	"github.com/FyraLabs/readymade/internal/partutil"
	"github.com/FyraLabs/readymade/internal/playbook"
	"github.com/FyraLabs/readymade/internal/postinstall"
	"github.com/FyraLabs/readymade/internal/provisioner/disk"
	"github.com/FyraLabs/readymade/internal/provisioner/fs"
	"github.com/FyraLabs/readymade/internal/template"
)

// DefaultDefinitionsDir is the template root used when READYMADE_REPART_DIR
// is unset.
const DefaultDefinitionsDir = "/usr/share/readymade/repart.d"

// LuksKeyFilePath is where the LUKS passphrase is staged for
// systemd-repart's --key-file. The Copy/Bootc provisioners' cryptsetup
// open calls do not read it; crypt.Decrypt writes its own temporary keyfile.
const LuksKeyFilePath = "/run/readymade-luks.key"

// Options carries the run-time knobs that do not belong in the playbook
// itself.
type Options struct {
	InstallerVersion string
	DebugBuild       bool
	// Status receives human-readable progress notifications; may be nil.
	Status func(string)
}

func (o Options) notify(msg string) {
	if o.Status != nil {
		o.Status(msg)
	}
}

// Run executes one install from a validated playbook.
func Run(pb *playbook.Playbook, opts Options) error {
	if err := pb.Validate(0); err != nil {
		return err
	}

	lock, err := container.AcquireSetupLock()
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logrus.Warnf("install: releasing setup lock: %v", err)
		}
	}()

	opts.notify("layering templates")
	definitionsDir := os.Getenv("READYMADE_REPART_DIR")
	if definitionsDir == "" {
		definitionsDir = DefaultDefinitionsDir
	}
	scratchDefs, meta, err := template.Layer(definitionsDir, template.ScratchDir)
	if err != nil {
		return err
	}
	if meta.Label != "" {
		logrus.Infof("install: using partition template set %q", meta.Label)
	}

	var keyFilePath string
	if pb.Encryption != nil {
		if err := template.EnableEncryption(scratchDefs, pb.Encryption.UseTPM2); err != nil {
			return err
		}
		keyFilePath = LuksKeyFilePath
		if err := os.WriteFile(keyFilePath, []byte(pb.Encryption.Passphrase), 0o600); err != nil {
			return errs.Wrap(errs.IO, err, "writing LUKS keyfile %s", keyFilePath)
		}
	}
	removeKeyFile := func() {
		if keyFilePath == "" {
			return
		}
		if err := os.Remove(keyFilePath); err != nil && !os.IsNotExist(err) {
			logrus.Warnf("install: removing keyfile %s: %v", keyFilePath, err)
		}
	}

	opts.notify("provisioning disk")
	dp := disk.ForCopyMode(pb, disk.RepartOptions{
		DefinitionsDir: scratchDefs,
		KeyFilePath:    keyFilePath,
		DryRun:         disk.DryRunFromEnv(opts.DebugBuild),
	})
	ms, err := dp.Run(pb)
	if err != nil {
		return err
	}

	cache := crypt.GlobalMapperCache()
	defer cache.Clear()

	cryptData, err := crypt.GenerateCryptData(ms, crypt.LuksUUID)
	if err != nil {
		return err
	}

	opts.notify("deploying filesystem")
	fp := fs.ForCopyMode(pb, cache)
	if bootc, ok := fp.(*fs.Bootc); ok && cryptData != nil {
		bootc.CryptFragments = cryptData.KernelCmdlineFrags
	}
	if err := fp.Run(pb, ms); err != nil {
		removeKeyFile()
		return err
	}

	// The fstab generator reads /proc/mounts of the scratch-root context
	// before the chroot closure runs, per the two-phase chroot design: the
	// generator's output is passed into the closure as data, not re-read
	// from inside it.
	procMounts, err := os.ReadFile("/proc/mounts")
	if err != nil {
		removeKeyFile()
		_ = fp.Cleanup(pb, ms)
		return errs.Wrap(errs.IO, err, "reading /proc/mounts")
	}

	opts.notify("configuring system")
	c, runErr := runChroot(pb, ms, cryptData, string(procMounts))

	// c's bind mounts (/proc, /sys, /dev, ...) are nested under the
	// filesystem provisioner's own mounts and must come down first, or the
	// provisioner's unmount of "/" itself will find the mount point busy.
	if c != nil {
		c.Release()
	}
	cleanupErr := fp.Cleanup(pb, ms)
	if cleanupErr != nil && runErr == nil {
		runErr = cleanupErr
	}
	if c != nil {
		c.Destroy()
	}
	removeKeyFile()
	if runErr != nil {
		return runErr
	}

	opts.notify("exporting state")
	var templates []template.ParsedTemplate
	if pb.CopyMode.Kind == playbook.CopyModeRepart {
		if defs, err := template.ReadDefinitions(scratchDefs); err == nil {
			templates = defs
		}
	}
	dump := export.Build(pb, opts.InstallerVersion, opts.DebugBuild, templates)
	if err := export.Write(dump); err != nil {
		return err
	}

	return nil
}

// runChroot enters the container and runs the post-install pipeline inside
// it. The returned Container (even on error) still needs its bind mounts
// released by the caller, once the order described in Run is safe.
func runChroot(pb *playbook.Playbook, ms mount.MountSet, cryptData *crypt.CryptData, procMounts string) (*container.Container, error) {
	c, err := container.Enter(fs.ScratchRoot, ms)
	if err != nil {
		return nil, err
	}

	ctx := buildContext(pb, ms, cryptData)
	modules, err := buildModules(pb, procMounts)
	if err != nil {
		return c, err
	}
	pipeline := postinstall.Pipeline{Modules: modules}

	err = c.Run(func() error {
		return pipeline.Run(ctx)
	})
	return c, err
}

func buildContext(pb *playbook.Playbook, ms mount.MountSet, cryptData *crypt.CryptData) postinstall.Context {
	ctx := postinstall.Context{
		DestinationDisk: pb.DestinationDisk,
		UEFI:            isUEFI(),
		Locale:          pb.Locale,
		CryptData:       cryptData,
		DistroName:      pb.Distro.Name,
		Mounts:          ms,
		MapperCache:     crypt.GlobalMapperCache(),
	}
	for i, m := range ms {
		if strings.EqualFold(m.GptType, partutil.ESPTypeGUID) {
			esp := ms[i]
			ctx.ESPPartition = &esp
		}
		if strings.EqualFold(m.GptType, partutil.XBootldrTypeGUID) {
			xb := ms[i]
			ctx.XBootldrMount = &xb
		}
	}
	return ctx
}

// isUEFI reports whether the running system was booted via UEFI, the same
// signal the kernel exposes via /sys/firmware/efi.
func isUEFI() bool {
	_, err := os.Stat("/sys/firmware/efi")
	return err == nil
}

func buildModules(pb *playbook.Playbook, procMounts string) ([]postinstall.Module, error) {
	modules := make([]postinstall.Module, 0, len(pb.PostInstall))
	for _, entry := range pb.PostInstall {
		switch entry.Module {
		case playbook.ModuleGrub2:
			modules = append(modules, postinstall.Grub2{})
		case playbook.ModuleCleanupBoot:
			modules = append(modules, postinstall.CleanupBoot{})
		case playbook.ModuleReinstallKernel:
			modules = append(modules, postinstall.ReinstallKernel{BuildRescueImage: entry.BuildRescueImage})
		case playbook.ModuleDracut:
			modules = append(modules, postinstall.Dracut{})
		case playbook.ModuleFstab:
			modules = append(modules, postinstall.Fstab{ProcMounts: procMounts, CopyMode: pb.CopyMode.Kind})
		case playbook.ModuleSELinux:
			modules = append(modules, postinstall.SELinux{})
		case playbook.ModulePrepareFedora:
			modules = append(modules, postinstall.PrepareFedora{})
		case playbook.ModuleEfiStub:
			modules = append(modules, postinstall.EfiStub{})
		case playbook.ModuleScript:
			modules = append(modules, postinstall.Script{})
		case playbook.ModuleInitialSetup:
			modules = append(modules, postinstall.InitialSetup{})
		case playbook.ModuleLanguage:
			modules = append(modules, postinstall.Language{})
		default:
			return nil, errs.New(errs.ConfigShape, "unknown postinstall module %q", entry.Module)
		}
	}
	return modules, nil
}
