//go:build linux

package guard

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

// FileLock implements Platform with flock(2) on <Dir>/<name>.lock.
// Notifications are written to Notify.
type FileLock struct {
	Dir    string
	Notify func(message string)
}

var _ Platform = (*FileLock)(nil)

// DefaultLockDir prefers /run/lock and falls back to the temp dir.
func DefaultLockDir() string {
	if info, err := os.Stat("/run/lock"); err == nil && info.IsDir() && unix.Access("/run/lock", unix.W_OK) == nil {
		return "/run/lock"
	}
	return os.TempDir()
}

func NewFileLock(dir string, notify func(string)) *FileLock {
	if dir == "" {
		dir = DefaultLockDir()
	}
	return &FileLock{Dir: dir, Notify: notify}
}

type fileHandle struct {
	file *os.File
}

func (h *fileHandle) Release() error {
	if h.file == nil {
		return nil
	}
	_ = unix.Flock(int(h.file.Fd()), unix.LOCK_UN)
	err := h.file.Close()
	h.file = nil
	return err
}

func (l *FileLock) AcquireNamedLock(name string) (Handle, error) {
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(l.Dir, name+".lock")
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrLockExists, path)
		}
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}

	// The pid is informational only; the flock is what matters.
	if err := file.Truncate(0); err == nil {
		_, _ = file.Seek(0, io.SeekStart)
		_, _ = file.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	}
	return &fileHandle{file: file}, nil
}

func (l *FileLock) NotifyUser(message string) {
	if l.Notify == nil {
		fmt.Fprintln(os.Stderr, message)
		return
	}
	l.Notify(message)
}
