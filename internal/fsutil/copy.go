// Package fsutil implements the recursive tree-copy used by the Copy
// filesystem provisioner and the template-layering step: preserve mode,
// owner, mtime/atime and xattrs, store symlinks rather than following
// them. Two backends are supported, selected by READYMADE_COPY_METHOD
// ("recurse", the default, or "cp" for an external cp -a).
package fsutil

import (
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/pkg/xattr"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/FyraLabs/readymade/internal/errs"
)

// CopyMethodEnv selects the tree-copy backend.
const CopyMethodEnv = "READYMADE_COPY_METHOD"

// CopyTree copies the directory tree rooted at src into dst, creating dst
// if needed, using the backend named by READYMADE_COPY_METHOD (default
// "recurse").
func CopyTree(src, dst string) error {
	switch os.Getenv(CopyMethodEnv) {
	case "cp":
		return copyTreeCp(src, dst)
	default:
		return copyTreeRecurse(src, dst)
	}
}

func copyTreeCp(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return errs.Wrap(errs.IO, err, "creating destination %s", dst)
	}
	// Trailing "/." mirrors the upstream cp -a invocation: copy the
	// contents of src into dst rather than src itself under dst.
	cmd := exec.Command("cp", "-a", filepath.Clean(src)+"/.", dst)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errs.Tool(errs.ExternalToolFailed, "cp -a", exitCodeOf(err), string(out))
	}
	return nil
}

// copyTreeRecurse walks src concurrently (one goroutine per top-level
// entry fans out further via the same function) copying each entry into
// dst.
func copyTreeRecurse(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return errs.Wrap(errs.IO, err, "stat %s", src)
	}
	if !info.IsDir() {
		return errs.New(errs.IO, "%s is not a directory", src)
	}
	if err := os.MkdirAll(dst, info.Mode().Perm()); err != nil {
		return errs.Wrap(errs.IO, err, "creating destination %s", dst)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return errs.Wrap(errs.IO, err, "reading directory %s", src)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(entries))
	for _, e := range entries {
		e := e
		wg.Add(1)
		go func() {
			defer wg.Done()
			srcPath := filepath.Join(src, e.Name())
			dstPath := filepath.Join(dst, e.Name())
			if err := copyEntry(srcPath, dstPath); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return copyAttributes(src, dst)
}

func copyEntry(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return errs.Wrap(errs.IO, err, "stat %s", src)
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return errs.Wrap(errs.IO, err, "readlink %s", src)
		}
		if err := os.Symlink(target, dst); err != nil && !os.IsExist(err) {
			return errs.Wrap(errs.IO, err, "symlink %s", dst)
		}
		return nil
	case info.IsDir():
		return copyTreeRecurse(src, dst)
	default:
		return copyRegularFile(src, dst, info)
	}
}

func copyRegularFile(src, dst string, info os.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return errs.Wrap(errs.IO, err, "opening %s", src)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errs.Wrap(errs.IO, err, "creating %s", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errs.Wrap(errs.IO, err, "copying %s to %s", src, dst)
	}
	if err := out.Close(); err != nil {
		return errs.Wrap(errs.IO, err, "closing %s", dst)
	}
	return copyAttributes(src, dst)
}

// copyAttributes preserves mode, ownership, mtime/atime and xattrs from src
// to dst. Failures to preserve uid/gid (e.g. when unprivileged) are logged,
// not fatal, matching the teacher's pattern of surfacing non-essential
// cleanup/attribute failures as warnings.
func copyAttributes(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return errs.Wrap(errs.IO, err, "stat %s", src)
	}

	if info.Mode()&os.ModeSymlink == 0 {
		if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
			return errs.Wrap(errs.IO, err, "chmod %s", dst)
		}
	}

	atime := unix.NsecToTimespec(info.ModTime().UnixNano())
	mtime := atime
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		if err := os.Lchown(dst, int(stat.Uid), int(stat.Gid)); err != nil {
			logrus.Debugf("fsutil: preserving owner on %s: %v", dst, err)
		}
		atime = unix.Timespec{Sec: stat.Atim.Sec, Nsec: stat.Atim.Nsec}
		mtime = unix.Timespec{Sec: stat.Mtim.Sec, Nsec: stat.Mtim.Nsec}
	}
	if err := unix.UtimesNanoAt(unix.AT_FDCWD, dst, []unix.Timespec{atime, mtime}, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		logrus.Debugf("fsutil: preserving mtime on %s: %v", dst, err)
	}

	if info.Mode()&os.ModeSymlink == 0 {
		if names, err := xattr.List(src); err == nil {
			for _, name := range names {
				if val, err := xattr.Get(src, name); err == nil {
					if err := xattr.Set(dst, name, val); err != nil {
						logrus.Debugf("fsutil: preserving xattr %s on %s: %v", name, dst, err)
					}
				}
			}
		}
	}
	return nil
}

func exitCodeOf(err error) int {
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}
