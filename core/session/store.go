package session

import "errors"

// ErrEmptyToken is returned when saving an empty token.
var ErrEmptyToken = errors.New("empty session token")

// CredentialStore persists the opaque session token.
// It must be readable by the edge guard, i.e. before any per-screen code runs.
type CredentialStore interface {
	// Save persists token so that it survives a full page reload.
	Save(token string) error
	// Load returns the stored token. ok is false when no token is stored or the
	// storage could not be read: a storage failure is never reported as a session.
	Load() (token string, ok bool)
	// Clear removes the stored token.
	Clear() error
}
