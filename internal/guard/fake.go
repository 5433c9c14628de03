package guard

import "sync"

// Fake is an in-memory Platform. Locks are shared between Fakes created
// from the same Registry, which lets tests simulate a second instance.
type Fake struct {
	registry *Registry
	// Err, when set, is returned by every AcquireNamedLock call.
	Err error

	mu       sync.Mutex
	messages []string
}

// Registry is the fake equivalent of the system-wide lock namespace.
type Registry struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{held: make(map[string]bool)}
}

func NewFake(registry *Registry) *Fake {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Fake{registry: registry}
}

var _ Platform = (*Fake)(nil)

type fakeHandle struct {
	registry *Registry
	name     string
}

func (h *fakeHandle) Release() error {
	h.registry.mu.Lock()
	defer h.registry.mu.Unlock()
	delete(h.registry.held, h.name)
	return nil
}

func (f *Fake) AcquireNamedLock(name string) (Handle, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	f.registry.mu.Lock()
	defer f.registry.mu.Unlock()
	if f.registry.held[name] {
		return nil, ErrLockExists
	}
	f.registry.held[name] = true
	return &fakeHandle{registry: f.registry, name: name}, nil
}

func (f *Fake) NotifyUser(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
}

func (f *Fake) Messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.messages))
	copy(out, f.messages)
	return out
}
