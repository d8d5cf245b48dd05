package credential

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo/portal/core/session"
)

var cookieOpts = CookieOptions{Name: "masomo_session", MaxAge: time.Hour}

func TestCookieStore(t *testing.T) {
	t.Run("absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		store := NewCookieStore(cookieOpts, req, httptest.NewRecorder())
		_, ok := store.Load()
		assert.False(t, ok)
		assert.False(t, HasToken(cookieOpts, req))
	})

	t.Run("empty cookie is absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.AddCookie(&http.Cookie{Name: cookieOpts.Name, Value: " "})
		_, ok := NewCookieStore(cookieOpts, req, httptest.NewRecorder()).Load()
		assert.False(t, ok)
		assert.False(t, HasToken(cookieOpts, req))
	})

	t.Run("present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.AddCookie(&http.Cookie{Name: cookieOpts.Name, Value: "tok"})
		token, ok := NewCookieStore(cookieOpts, req, httptest.NewRecorder()).Load()
		assert.True(t, ok)
		assert.Equal(t, "tok", token)
		assert.True(t, HasToken(cookieOpts, req))
	})

	t.Run("save then load in the same exchange", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		rec := httptest.NewRecorder()
		store := NewCookieStore(cookieOpts, req, rec)

		require.NoError(t, store.Save("tok"))
		token, ok := store.Load()
		assert.True(t, ok)
		assert.Equal(t, "tok", token)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		c := cookies[0]
		assert.Equal(t, cookieOpts.Name, c.Name)
		assert.Equal(t, "tok", c.Value)
		assert.Equal(t, "/", c.Path)
		assert.Equal(t, 3600, c.MaxAge)
		assert.True(t, c.HttpOnly)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	})

	t.Run("clear", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		req.AddCookie(&http.Cookie{Name: cookieOpts.Name, Value: "tok"})
		rec := httptest.NewRecorder()
		store := NewCookieStore(cookieOpts, req, rec)

		require.NoError(t, store.Clear())
		_, ok := store.Load()
		assert.False(t, ok)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "", cookies[0].Value)
		assert.True(t, cookies[0].MaxAge < 0)
	})

	t.Run("empty token rejected", func(t *testing.T) {
		store := NewCookieStore(cookieOpts, nil, httptest.NewRecorder())
		assert.Equal(t, session.ErrEmptyToken, store.Save(""))
	})

	t.Run("no response writer", func(t *testing.T) {
		store := NewCookieStore(cookieOpts, nil, nil)
		assert.Equal(t, ErrUnavailable, store.Save("tok"))
		assert.Equal(t, ErrUnavailable, store.Clear())
		_, ok := store.Load()
		assert.False(t, ok)
	})
}

func TestFileStore(t *testing.T) {
	dir, err := ioutil.TempDir("", "masomo-credentials")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "nested", "session")
	store := NewFileStore(path, nil)

	_, ok := store.Load()
	assert.False(t, ok, "absent before save")

	require.NoError(t, store.Save(" tok \n"))
	token, ok := store.Load()
	assert.True(t, ok)
	assert.Equal(t, "tok", token)

	if runtime.GOOS != "windows" {
		fi, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
	}

	require.NoError(t, store.Clear())
	_, ok = store.Load()
	assert.False(t, ok, "absent after clear")
	assert.NoError(t, store.Clear(), "clearing twice is fine")

	assert.Equal(t, session.ErrEmptyToken, store.Save("  "))
}

func TestFileStore_unreadable(t *testing.T) {
	dir, err := ioutil.TempDir("", "masomo-credentials")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	// a directory where the file should be: reading fails, which must look like "no session"
	path := filepath.Join(dir, "session")
	require.NoError(t, os.Mkdir(path, 0o700))

	_, ok := NewFileStore(path, nil).Load()
	assert.False(t, ok)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	_, ok := store.Load()
	assert.False(t, ok)

	require.NoError(t, store.Save("tok"))
	token, ok := store.Load()
	assert.True(t, ok)
	assert.Equal(t, "tok", token)

	store.Fail = true
	_, ok = store.Load()
	assert.False(t, ok, "unavailable storage is absent")
	assert.Equal(t, ErrUnavailable, store.Save("tok"))
	assert.Equal(t, ErrUnavailable, store.Clear())

	store.Fail = false
	require.NoError(t, store.Clear())
	_, ok = store.Load()
	assert.False(t, ok)
}
