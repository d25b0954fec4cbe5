package disk

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/FyraLabs/readymade/internal/errs"
)

// deviceLock holds an exclusive fcntl range lock on bytes [0,1) of a block
// device, preventing a parallel probe from racing systemd-repart's
// partition-table reread.
type deviceLock struct {
	f *os.File
}

// lockDevice opens dev read-write and acquires the lock. Call Unlock when
// systemd-repart exits.
func lockDevice(dev string) (*deviceLock, error) {
	f, err := os.OpenFile(dev, os.O_RDWR, 0)
	if err != nil {
		return nil, errs.Wrap(errs.IO, err, "opening %s for locking", dev)
	}
	flock := unix.Flock_t{
		Type:   unix.F_WRLCK,
		Whence: 0,
		Start:  0,
		Len:    1,
	}
	if err := unix.FcntlFlock(f.Fd(), unix.F_SETLK, &flock); err != nil {
		f.Close()
		return nil, errs.Wrap(errs.IO, err, "locking %s", dev)
	}
	return &deviceLock{f: f}, nil
}

func (l *deviceLock) Unlock() {
	if l == nil || l.f == nil {
		return
	}
	flock := unix.Flock_t{Type: unix.F_UNLCK, Whence: 0, Start: 0, Len: 1}
	_ = unix.FcntlFlock(l.f.Fd(), unix.F_SETLK, &flock)
	l.f.Close()
}
