// ABOUTME: Signed-in user identity and the provider that announces identity changes.
// ABOUTME: Watchers are notified synchronously whenever the current identity changes.

package identity

import "sync"

// ID is an opaque, stable identifier for a signed-in user.
// The zero value means no user is signed in.
type ID string

// None is the absent identity.
const None ID = ""

// IsZero reports whether the identity is absent.
func (id ID) IsZero() bool {
	return id == None
}

func (id ID) String() string {
	return string(id)
}

// Provider holds the current identity and notifies watchers on change.
type Provider struct {
	mu       sync.Mutex
	current  ID
	watchers map[int]func(ID)
	nextID   int
}

// NewProvider creates a provider seeded with the given identity (None for signed out).
func NewProvider(initial ID) *Provider {
	return &Provider{
		current:  initial,
		watchers: make(map[int]func(ID)),
	}
}

// Current returns the current identity and whether one is present.
func (p *Provider) Current() (ID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, !p.current.IsZero()
}

// Set changes the current identity. Watchers run synchronously on the
// caller's goroutine, and only when the identity actually changed.
func (p *Provider) Set(id ID) {
	p.mu.Lock()
	if p.current == id {
		p.mu.Unlock()
		return
	}
	p.current = id
	fns := make([]func(ID), 0, len(p.watchers))
	for _, fn := range p.watchers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(id)
	}
}

// Clear signs the current user out.
func (p *Provider) Clear() {
	p.Set(None)
}

// Watch registers fn to be called on every identity change.
// The returned function removes the watcher and is safe to call more than once.
func (p *Provider) Watch(fn func(ID)) func() {
	p.mu.Lock()
	key := p.nextID
	p.nextID++
	p.watchers[key] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.watchers, key)
		p.mu.Unlock()
	}
}
