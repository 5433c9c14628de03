//go:build !linux

package guard

import (
	"errors"
	"fmt"
	"os"
)

// FileLock is only functional on Linux; elsewhere the guard degrades to best effort.
type FileLock struct {
	Dir    string
	Notify func(message string)
}

var _ Platform = (*FileLock)(nil)

func DefaultLockDir() string {
	return os.TempDir()
}

func NewFileLock(dir string, notify func(string)) *FileLock {
	if dir == "" {
		dir = DefaultLockDir()
	}
	return &FileLock{Dir: dir, Notify: notify}
}

func (l *FileLock) AcquireNamedLock(_ string) (Handle, error) {
	return nil, errors.New("named locks are not supported on this platform")
}

func (l *FileLock) NotifyUser(message string) {
	if l.Notify == nil {
		fmt.Fprintln(os.Stderr, message)
		return
	}
	l.Notify(message)
}
