package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/trezcool/masomo/portal/core/session"
	"github.com/trezcool/masomo/portal/core/user"
)

type account struct {
	password string
	user     user.User
}

// FakeAPI mimics the Masomo API endpoints the portal calls.
type FakeAPI struct {
	*httptest.Server
	t *testing.T

	mu           sync.Mutex
	accounts     map[string]account // by username/email
	revoked      map[string]bool    // tokens the API rejects
	tokenOnly    bool
	resetEmails  []string
	registered   []user.NewAccount
	profileCalls int
}

func NewFakeAPI(t *testing.T) *FakeAPI {
	api := &FakeAPI{
		t:        t,
		accounts: make(map[string]account),
		revoked:  make(map[string]bool),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/users/login", api.login)
	mux.HandleFunc("/v1/users/register", api.register)
	mux.HandleFunc("/v1/users/password-reset", api.passwordReset)
	mux.HandleFunc("/v1/users/", api.profile)
	api.Server = httptest.NewServer(mux)
	t.Cleanup(api.Close)
	return api
}

// AddAccount registers usr with a password under its email.
func (api *FakeAPI) AddAccount(usr user.User, password string) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.accounts[usr.Email] = account{password: password, user: usr}
}

// Revoke makes every call authenticated with token fail with a 401.
func (api *FakeAPI) Revoke(token string) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.revoked[token] = true
}

// SetTokenOnly makes login answer {"token": ...} without the user, like older API versions.
func (api *FakeAPI) SetTokenOnly(tokenOnly bool) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.tokenOnly = tokenOnly
}

// ResetEmails returns the addresses password resets were requested for.
func (api *FakeAPI) ResetEmails() []string {
	api.mu.Lock()
	defer api.mu.Unlock()
	return append([]string(nil), api.resetEmails...)
}

// Registered returns the accounts created through the API.
func (api *FakeAPI) Registered() []user.NewAccount {
	api.mu.Lock()
	defer api.mu.Unlock()
	return append([]user.NewAccount(nil), api.registered...)
}

func (api *FakeAPI) ProfileCalls() int {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.profileCalls
}

func (api *FakeAPI) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.t.Errorf("FakeAPI: encoding response: %v", err)
	}
}

func (api *FakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var creds user.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		api.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}
	api.mu.Lock()
	acc, ok := api.accounts[creds.Username]
	tokenOnly := api.tokenOnly
	api.mu.Unlock()
	if !ok || acc.password != creds.Password {
		api.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "authentication failed"})
		return
	}

	token := MakeToken(api.t, acc.user)
	if tokenOnly {
		api.writeJSON(w, http.StatusOK, map[string]string{"token": token})
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]interface{}{"token": token, "user": acc.user})
}

func (api *FakeAPI) register(w http.ResponseWriter, r *http.Request) {
	var na user.NewAccount
	if err := json.NewDecoder(r.Body).Decode(&na); err != nil {
		api.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	if _, exists := api.accounts[na.Email]; exists {
		api.writeJSON(w, http.StatusBadRequest, map[string]string{"email": "a user with this email already exists"})
		return
	}
	api.registered = append(api.registered, na)
	api.writeJSON(w, http.StatusCreated, map[string]string{"email": na.Email})
}

func (api *FakeAPI) passwordReset(w http.ResponseWriter, r *http.Request) {
	var pr user.PasswordResetRequest
	_ = json.NewDecoder(r.Body).Decode(&pr)
	api.mu.Lock()
	api.resetEmails = append(api.resetEmails, pr.Email)
	api.mu.Unlock()
	api.writeJSON(w, http.StatusOK, map[string]string{"success": "ok"})
}

func (api *FakeAPI) profile(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	api.mu.Lock()
	api.profileCalls++
	revoked := api.revoked[token]
	api.mu.Unlock()
	usr, err := session.NewJWTResolver().Resolve(token)
	if token == "" || revoked || err != nil {
		api.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired jwt"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	if id != usr.ID {
		api.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	api.writeJSON(w, http.StatusOK, usr)
}
