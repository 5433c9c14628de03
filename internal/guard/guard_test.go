package guard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireNoOtherInstance(t *testing.T) {
	fake := NewFake(nil)
	handle, err := New(fake, "").Acquire()
	require.NoError(t, err)
	require.NotNil(t, handle)
	require.Empty(t, fake.Messages())
}

func TestAcquireOtherInstanceRunning(t *testing.T) {
	registry := NewRegistry()
	first := NewFake(registry)
	second := NewFake(registry)

	handle, err := New(first, "warden").Acquire()
	require.NoError(t, err)

	_, err = New(second, "warden").Acquire()
	require.ErrorIs(t, err, ErrAlreadyRunning)
	require.Len(t, second.Messages(), 1)
	require.Contains(t, second.Messages()[0], "already running")

	require.NoError(t, handle.Release())
	_, err = New(second, "warden").Acquire()
	require.NoError(t, err)
}

func TestAcquireUnexpectedFailure(t *testing.T) {
	fake := NewFake(nil)
	fake.Err = errors.New("permission denied")

	handle, err := New(fake, "warden").Acquire()
	require.ErrorIs(t, err, ErrAcquire)
	require.NotErrorIs(t, err, ErrAlreadyRunning)
	require.Nil(t, handle)
	require.Len(t, fake.Messages(), 1)
}

func TestDefaultName(t *testing.T) {
	require.Equal(t, DefaultLockName, New(NewFake(nil), "").Name())
}
