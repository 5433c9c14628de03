// Package guard keeps a second warden from running on the same host.
package guard

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning means another instance holds the lock.
	ErrAlreadyRunning = errors.New("another instance is already running")
	// ErrAcquire means the lock could not be created for some other reason.
	ErrAcquire = errors.New("cannot acquire single-instance lock")
	// ErrLockExists is returned by a Platform when the named lock is held elsewhere.
	ErrLockExists = errors.New("named lock already exists")
)

const DefaultLockName = "affinity-warden"

// Handle keeps the lock alive. Releasing it is optional; the OS drops the
// lock when the process exits.
type Handle interface {
	Release() error
}

// Platform provides a system-wide named lock and a way to alert the operator.
type Platform interface {
	AcquireNamedLock(name string) (Handle, error)
	// NotifyUser must not block or fail loudly.
	NotifyUser(message string)
}

// Guard ensures only one warden runs per lock name.
type Guard struct {
	platform Platform
	name     string
}

func New(platform Platform, name string) *Guard {
	if name == "" {
		name = DefaultLockName
	}
	return &Guard{platform: platform, name: name}
}

func (g *Guard) Name() string {
	return g.name
}

// Acquire takes the lock. On ErrAlreadyRunning the user has been notified
// and the caller should exit. ErrAcquire is advisory; the caller may continue.
func (g *Guard) Acquire() (Handle, error) {
	handle, err := g.platform.AcquireNamedLock(g.name)
	switch {
	case err == nil:
		return handle, nil
	case errors.Is(err, ErrLockExists):
		g.platform.NotifyUser("Another instance of the CPU affinity manager is already running.")
		return nil, fmt.Errorf("%w: lock %q", ErrAlreadyRunning, g.name)
	default:
		g.platform.NotifyUser(fmt.Sprintf("Error checking for another instance: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrAcquire, err)
	}
}
