package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/session"
	"github.com/trezcool/masomo/portal/core/user"
)

// SigningKey signs test tokens. The portal never verifies it.
var SigningKey = []byte("secret")

// MakeToken issues a session token for usr the way the identity service does.
func MakeToken(t *testing.T, usr user.User, expiresIn ...time.Duration) string {
	t.Helper()
	now := time.Now()
	exp := time.Hour
	if len(expiresIn) > 0 {
		exp = expiresIn[0]
	}
	claims := session.Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.New().String(),
			Issuer:    "Masomo",
			Subject:   usr.ID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(exp).Unix(),
		},
		Email:      usr.Email,
		GivenName:  usr.GivenName,
		FamilyName: usr.FamilyName,
		Role:       string(usr.Role),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(SigningKey)
	if err != nil {
		t.Fatalf("MakeToken() failed: %v", err)
	}
	return token
}

func NewUser(id string, role user.Role) user.User {
	return user.User{
		ID:         id,
		Email:      string(role) + id + "@test.cd",
		GivenName:  "Given" + id,
		FamilyName: "Family" + id,
		Role:       role,
	}
}

// BlockingStore is a CredentialStore whose Load blocks until Release is called.
type BlockingStore struct {
	Token   string
	release chan struct{}
	once    sync.Once

	mu      sync.Mutex
	loads   int
	entered chan struct{}
}

func NewBlockingStore(token string) *BlockingStore {
	return &BlockingStore{Token: token, release: make(chan struct{}), entered: make(chan struct{}, 1)}
}

// Entered is signalled when Load starts.
func (s *BlockingStore) Entered() <-chan struct{} { return s.entered }

func (s *BlockingStore) Release() { s.once.Do(func() { close(s.release) }) }

func (s *BlockingStore) Loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

func (s *BlockingStore) Load() (string, bool) {
	s.mu.Lock()
	s.loads++
	s.mu.Unlock()
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.release

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Token, s.Token != ""
}

func (s *BlockingStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Token = token
	return nil
}

func (s *BlockingStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Token = ""
	return nil
}

var _ session.CredentialStore = (*BlockingStore)(nil)

// Logger records log calls.
type Logger struct {
	mu       sync.Mutex
	Messages []string
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, level+": "+msg)
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("debug", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("info", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("warn", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("error", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.log("fatal", msg) }

// Logged returns a copy of the recorded messages.
func (l *Logger) Logged() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.Messages...)
}

// NewConfig returns a configuration suitable for tests.
func NewConfig(backendURL string) *core.Config {
	return &core.Config{
		AppName:  "Masomo",
		Env:      "TEST",
		Build:    "test",
		TestMode: true,
		Server: core.ServerConfig{
			Address:         ":0",
			Host:            "localhost",
			ShutdownTimeout: time.Second,
		},
		Session: core.SessionConfig{
			CookieName:        "masomo_session",
			MaxAge:            time.Hour,
			LoginPath:         "/auth/login",
			ProtectedPrefixes: []string{"/dashboard"},
		},
		Backend: core.BackendConfig{
			BaseURL: backendURL,
			Timeout: 5 * time.Second,
		},
	}
}
