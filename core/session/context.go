// Package session holds the identity of the person using the portal.
//
// A Context is created once per view (an HTTP exchange, a CLI invocation, a live screen)
// and passed down to everything that needs the current user. It starts Resolving, reads the
// CredentialStore once, decodes the token with a Resolver and settles on ResolvedWithUser or
// ResolvedWithoutUser. Login and Logout are the only other transitions.
package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/user"
)

// ErrClosed is returned by Login once the Context is closed.
var ErrClosed = errors.New("session closed")

// State is the loading state of a Context.
type State int

const (
	Resolving State = iota
	ResolvedWithUser
	ResolvedWithoutUser
)

func (s State) String() string {
	switch s {
	case Resolving:
		return "resolving"
	case ResolvedWithUser:
		return "resolved-with-user"
	case ResolvedWithoutUser:
		return "resolved-without-user"
	default:
		return "unknown"
	}
}

// Snapshot is what consumers observe. User is nil unless State is ResolvedWithUser.
type Snapshot struct {
	State State
	User  *user.User
}

func (s Snapshot) Resolved() bool      { return s.State != Resolving }
func (s Snapshot) Authenticated() bool { return s.State == ResolvedWithUser && s.User != nil }

// Listener is notified of every state transition.
// Listeners run synchronously and must not call Login or Logout.
type Listener func(Snapshot)

type (
	Option func(*Context)

	Context struct {
		store    CredentialStore
		resolver Resolver
		logger   core.Logger

		// transitions serializes state changes and their notification, so that every
		// listener observes the same sequence.
		transitions sync.Mutex

		mu        sync.RWMutex
		snap      Snapshot
		listeners map[int]Listener
		order     []int
		nextID    int
		closed    bool

		initOnce   sync.Once
		settleOnce sync.Once
		resolved   chan struct{}
	}
)

// WithLogger logs storage and decoding failures.
func WithLogger(logger core.Logger) Option {
	return func(c *Context) { c.logger = logger }
}

// New returns a Context in the Resolving state. Call Init to resolve it.
func New(store CredentialStore, resolver Resolver, opts ...Option) *Context {
	c := &Context{
		store:     store,
		resolver:  resolver,
		snap:      Snapshot{State: Resolving},
		listeners: make(map[int]Listener),
		resolved:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init resolves the stored token into the current user. Only the first call does any work;
// every caller returns once resolution is over.
func (c *Context) Init() Snapshot {
	c.initOnce.Do(c.resolve)
	return c.Current()
}

func (c *Context) resolve() {
	defer c.settle()
	if c.Current().Resolved() {
		return // Login or Logout got there first
	}

	next := Snapshot{State: ResolvedWithoutUser}
	if token, ok := c.store.Load(); ok {
		usr, err := c.resolver.Resolve(token)
		if err == nil {
			next = Snapshot{State: ResolvedWithUser, User: &usr}
		} else {
			c.warn("resolving session token", err)
		}
	}

	// a Login/Logout while resolving, or a closed view, wins over the stale result
	c.apply(next, func(curr Snapshot) bool { return curr.State == Resolving })
}

// settle releases Wait callers.
func (c *Context) settle() {
	c.settleOnce.Do(func() { close(c.resolved) })
}

// Wait blocks until the Context left the Resolving state, or ctx is done.
func (c *Context) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-c.resolved:
		return c.Current(), nil
	case <-ctx.Done():
		return c.Current(), ctx.Err()
	}
}

// Current returns the latest snapshot.
func (c *Context) Current() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// User returns the current user, if any.
func (c *Context) User() (user.User, bool) {
	snap := c.Current()
	if !snap.Authenticated() {
		return user.User{}, false
	}
	return *snap.User, true
}

// Login stores a freshly issued token and makes usr the current user, without re-resolving.
func (c *Context) Login(usr user.User, token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	c.transitions.Lock()
	defer c.transitions.Unlock()

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	if err := c.store.Save(token); err != nil {
		return errors.Wrap(err, "saving session token")
	}
	c.applyLocked(Snapshot{State: ResolvedWithUser, User: &usr}, nil)
	c.settle()
	return nil
}

// Logout forgets the current user. The stored token is cleared first; the session ends even if that fails.
func (c *Context) Logout() error {
	c.transitions.Lock()
	defer c.transitions.Unlock()

	err := c.store.Clear()
	if err != nil {
		c.warn("clearing session token", err)
	}
	c.applyLocked(Snapshot{State: ResolvedWithoutUser}, nil)
	c.settle()
	return errors.Wrap(err, "clearing session token")
}

// Subscribe registers l for every future transition and returns a function that unregisters it.
func (c *Context) Subscribe(l Listener) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	c.order = append(c.order, id)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.listeners, id)
			for i, lid := range c.order {
				if lid == id {
					c.order = append(c.order[:i], c.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Watch calls l with the current snapshot and then with every transition, in order.
// No transition can happen between the two.
func (c *Context) Watch(l Listener) (unsubscribe func()) {
	c.transitions.Lock()
	defer c.transitions.Unlock()

	unsubscribe = c.Subscribe(l)
	l(c.Current())
	return unsubscribe
}

// Close tears the Context down: listeners are dropped and a pending resolution is discarded.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.listeners = make(map[int]Listener)
	c.order = nil
}

func (c *Context) apply(next Snapshot, cond func(curr Snapshot) bool) {
	c.transitions.Lock()
	defer c.transitions.Unlock()
	c.applyLocked(next, cond)
}

// applyLocked must be called with c.transitions held.
func (c *Context) applyLocked(next Snapshot, cond func(curr Snapshot) bool) {
	c.mu.Lock()
	if c.closed || (cond != nil && !cond(c.snap)) {
		c.mu.Unlock()
		return
	}
	c.snap = next
	listeners := make([]Listener, 0, len(c.order))
	for _, id := range c.order {
		listeners = append(listeners, c.listeners[id])
	}
	c.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
}

func (c *Context) warn(msg string, err error) {
	if c.logger != nil {
		c.logger.Warn(msg, err)
	}
}
