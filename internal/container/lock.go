package container

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/FyraLabs/readymade/internal/errs"
)

// setupLockPath guards a single concurrent install run.
const setupLockPath = "/var/run/readymade-setup.lock"

// SetupLock is held for the duration of one install run, from before disk
// provisioning until the run returns.
type SetupLock struct {
	f *os.File
}

// AcquireSetupLock takes an exclusive, non-blocking lock on
// /var/run/readymade-setup.lock. An already-held lock is not a transient
// condition to retry automatically — it means another install is already
// in progress — so it is surfaced as InvariantViolation.
func AcquireSetupLock() (*SetupLock, error) {
	f, err := os.OpenFile(setupLockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errs.Wrap(errs.IO, err, "opening %s", setupLockPath)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, errs.New(errs.InvariantViolation, "install already in progress (lock held on %s)", setupLockPath)
	}
	return &SetupLock{f: f}, nil
}

// Release drops the lock and returns the error from closing the lock file,
// if any; the unlock call's own error is ignored.
func (l *SetupLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	return l.f.Close()
}
