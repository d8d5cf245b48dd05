// Package guard decides whether a screen may be shown to the current session.
//
// Decisions are only made once the session is resolved: while it is Resolving, screens show a
// neutral placeholder and nobody is redirected. An anonymous visitor is sent to the login page;
// an authenticated user lacking the screen's role is sent to their own landing page.
package guard

import (
	"sync"

	"github.com/trezcool/masomo/portal/core/nav"
	"github.com/trezcool/masomo/portal/core/session"
	"github.com/trezcool/masomo/portal/core/user"
)

// AnyRole marks screens open to every authenticated user.
const AnyRole user.Role = ""

type Action int

const (
	ActionWait Action = iota
	ActionRender
	ActionRedirect
)

func (a Action) String() string {
	switch a {
	case ActionWait:
		return "wait"
	case ActionRender:
		return "render"
	case ActionRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Reason explains a redirect.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonRoleMismatch    Reason = "role_mismatch"
)

type Decision struct {
	Action Action
	Target string // redirect target
	Reason Reason
	User   *user.User
}

// Decide applies the guard rules to snap.
func Decide(snap session.Snapshot, required user.Role, loginPath string) Decision {
	switch {
	case !snap.Resolved():
		return Decision{Action: ActionWait}
	case !snap.Authenticated():
		return Decision{Action: ActionRedirect, Target: loginPath, Reason: ReasonUnauthenticated}
	case required != AnyRole && snap.User.Role != required:
		return Decision{
			Action: ActionRedirect,
			Target: nav.LandingPath(snap.User.Role),
			Reason: ReasonRoleMismatch,
			User:   snap.User,
		}
	default:
		return Decision{Action: ActionRender, User: snap.User}
	}
}

// Navigator performs client-side redirects.
type Navigator interface {
	Navigate(path string)
}

// Screen is a view protected by a Guard.
type Screen struct {
	// Role required to see the screen; AnyRole for any authenticated user.
	Role user.Role
	// Placeholder is shown while the session is resolving.
	Placeholder func()
	// Render shows the screen to usr.
	Render func(usr user.User)
}

// Guard keeps a Screen in line with a live session.Context.
type Guard struct {
	sess      *session.Context
	screen    Screen
	navigator Navigator
	loginPath string
	observe   func(Decision)

	mu           sync.Mutex
	lastRedirect string
}

type Option func(*Guard)

// WithObserver is called with every decision, e.g. to record metrics.
func WithObserver(fn func(Decision)) Option {
	return func(g *Guard) { g.observe = fn }
}

func New(sess *session.Context, screen Screen, navigator Navigator, loginPath string, opts ...Option) *Guard {
	g := &Guard{
		sess:      sess,
		screen:    screen,
		navigator: navigator,
		loginPath: loginPath,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Mount evaluates the current snapshot and then every transition until the returned unmount is called.
func (g *Guard) Mount() (unmount func()) {
	return g.sess.Watch(g.apply)
}

func (g *Guard) apply(snap session.Snapshot) {
	d := Decide(snap, g.screen.Role, g.loginPath)
	if g.observe != nil {
		g.observe(d)
	}

	switch d.Action {
	case ActionWait:
		if g.screen.Placeholder != nil {
			g.screen.Placeholder()
		}
	case ActionRedirect:
		g.mu.Lock()
		repeated := d.Target == g.lastRedirect
		g.lastRedirect = d.Target
		g.mu.Unlock()
		if !repeated {
			g.navigator.Navigate(d.Target)
		}
	case ActionRender:
		g.mu.Lock()
		g.lastRedirect = ""
		g.mu.Unlock()
		if g.screen.Render != nil {
			g.screen.Render(*d.User)
		}
	}
}
