package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/session"
	"github.com/trezcool/masomo/portal/core/user"
	"github.com/trezcool/masomo/portal/tests"
)

func setup(t *testing.T, opts ...Option) (*Client, *testutil.FakeAPI) {
	api := testutil.NewFakeAPI(t)
	conf := testutil.NewConfig(api.URL + "/")
	return NewClient(conf, new(testutil.Logger), session.NewJWTResolver(), opts...), api
}

func TestClient_Login(t *testing.T) {
	ctx := context.Background()
	teacher := testutil.NewUser("11", user.RoleTeacher)

	tests := []struct {
		name      string
		tokenOnly bool
		creds     user.Credentials
		wantErr   error
	}{
		{name: "valid", creds: user.Credentials{Username: teacher.Email, Password: "pwd"}},
		{name: "token only response", tokenOnly: true, creds: user.Credentials{Username: teacher.Email, Password: "pwd"}},
		{name: "wrong password", creds: user.Credentials{Username: teacher.Email, Password: "nope"}, wantErr: ErrAuthenticationFailed},
		{name: "unknown user", creds: user.Credentials{Username: "who@test.cd", Password: "pwd"}, wantErr: ErrAuthenticationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, api := setup(t)
			api.AddAccount(teacher, "pwd")
			api.SetTokenOnly(tt.tokenOnly)

			res, err := client.Login(ctx, tt.creds)
			assert.Equal(t, tt.wantErr, err)
			if tt.wantErr != nil {
				assert.Empty(t, res.Token)
				return
			}
			assert.NotEmpty(t, res.Token)
			assert.Equal(t, teacher, res.User)
		})
	}
}

func TestClient_Login_shapes(t *testing.T) {
	respond := func(code int, body string) *httptest.Server {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
			_, _ = w.Write([]byte(body))
		}))
		t.Cleanup(srv.Close)
		return srv
	}
	creds := user.Credentials{Username: "u", Password: "p"}
	token := testutil.MakeToken(t, testutil.NewUser("1", user.RoleStudent))

	tests := []struct {
		name     string
		code     int
		body     string
		wantUser user.User
		wantErr  error
		wantAny  bool // any non-nil error
	}{
		{
			name:     "numeric id and roles list",
			code:     http.StatusOK,
			body:     `{"token":"` + token + `","user":{"id":42,"email":"t@test.cd","roles":["teacher:"]}}`,
			wantUser: user.User{ID: "42", Email: "t@test.cd", Role: user.RoleTeacher},
		},
		{name: "no token", code: http.StatusOK, body: `{"user":{"id":"1"}}`, wantErr: ErrAuthenticationFailed},
		{name: "undecodable token only", code: http.StatusOK, body: `{"token":"lol"}`, wantErr: ErrAuthenticationFailed},
		{name: "forbidden", code: http.StatusForbidden, body: `{"error":"account deactivated"}`, wantErr: ErrAuthenticationFailed},
		{name: "server error", code: http.StatusInternalServerError, body: `oops`, wantAny: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := respond(tt.code, tt.body)
			client := NewClient(testutil.NewConfig(srv.URL), new(testutil.Logger), session.NewJWTResolver())

			res, err := client.Login(context.Background(), creds)
			switch {
			case tt.wantAny:
				assert.Error(t, err)
				assert.NotEqual(t, ErrAuthenticationFailed, err, "server errors are not credential errors")
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantUser, res.User)
			}
		})
	}
}

func TestClient_Register(t *testing.T) {
	ctx := context.Background()
	client, api := setup(t)
	existing := testutil.NewUser("1", user.RoleGuardian)
	api.AddAccount(existing, "pwd")

	na := user.NewAccount{GivenName: "A", FamilyName: "B", Email: "new@test.cd", Password: "s3cretpwd", PasswordConfirm: "s3cretpwd"}
	require.NoError(t, client.Register(ctx, na))
	assert.Equal(t, []user.NewAccount{na}, api.Registered())

	na.Email = existing.Email
	err := client.Register(ctx, na)
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "got %v", err)
	assert.Equal(t, ErrRegistrationFailed, vErr.Err)
	assert.Equal(t, map[string]string{"email": "a user with this email already exists"}, vErr.FieldMap())
}

func TestClient_RequestPasswordReset(t *testing.T) {
	client, api := setup(t)
	require.NoError(t, client.RequestPasswordReset(context.Background(), "who@test.cd"))
	assert.Equal(t, []string{"who@test.cd"}, api.ResetEmails())
}

func TestClient_expiredSession(t *testing.T) {
	var expired []context.Context
	client, api := setup(t, OnExpired(func(ctx context.Context) { expired = append(expired, ctx) }))

	student := testutil.NewUser("5", user.RoleStudent)
	token := testutil.MakeToken(t, student)
	other := testutil.MakeToken(t, student)
	require.NotEqual(t, token, other, "every token is unique")

	usr, err := client.Profile(context.Background(), token, student.ID)
	require.NoError(t, err)
	assert.Equal(t, student, usr)
	assert.Empty(t, expired)

	api.Revoke(token)
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "req")
	_, err = client.Profile(ctx, token, student.ID)
	assert.Equal(t, ErrSessionExpired, errors.Cause(err))
	require.Len(t, expired, 1, "one expiry event per rejected call")
	assert.Equal(t, "req", expired[0].Value(key{}))

	// not found is not an expiry
	_, err = client.Profile(context.Background(), other, "6")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "not found", apiErr.Message)
	assert.Len(t, expired, 1)
}

func TestFlexibleID(t *testing.T) {
	var wu wireUser
	require.NoError(t, json.Unmarshal([]byte(`{"id":"abc"}`), &wu))
	assert.Equal(t, flexibleID("abc"), wu.ID)
	require.NoError(t, json.Unmarshal([]byte(`{"id":12}`), &wu))
	assert.Equal(t, flexibleID("12"), wu.ID)
	assert.Error(t, json.Unmarshal([]byte(`{"id":{}}`), &wu))
}
