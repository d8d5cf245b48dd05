// Package backend talks to the Masomo API on behalf of the portal.
//
// Every authenticated call goes through Client.do, the single place where an expired or
// revoked session token is detected: a 401 becomes ErrSessionExpired and fires the
// OnExpired hook, so screens never handle token expiry themselves.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/session"
	"github.com/trezcool/masomo/portal/core/user"
)

var (
	// ErrAuthenticationFailed is deliberately vague: it never says which credential was wrong.
	ErrAuthenticationFailed = errors.New("invalid credentials")
	ErrRegistrationFailed   = errors.New("registration failed")
	ErrSessionExpired       = errors.New("session expired")
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (err *APIError) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("api: %d %s", err.Status, http.StatusText(err.Status))
	}
	return fmt.Sprintf("api: %d %s", err.Status, err.Message)
}

type (
	Option func(*Client)

	Client struct {
		baseURL   string
		http      *http.Client
		resolver  session.Resolver
		logger    core.Logger
		onExpired func(ctx context.Context)
	}
)

// OnExpired is called once for every authenticated call rejected with a 401.
func OnExpired(fn func(ctx context.Context)) Option {
	return func(c *Client) { c.onExpired = fn }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func NewClient(conf *core.Config, logger core.Logger, resolver session.Resolver, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(conf.Backend.BaseURL, "/"),
		http:     &http.Client{Timeout: conf.Backend.Timeout},
		resolver: resolver,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoginResult is what a successful login yields.
type LoginResult struct {
	Token string
	User  user.User
}

type (
	loginResponse struct {
		Token string    `json:"token"`
		User  *wireUser `json:"user"`
	}

	wireUser struct {
		ID         flexibleID `json:"id"`
		Email      string     `json:"email"`
		GivenName  string     `json:"given_name"`
		FamilyName string     `json:"family_name"`
		Role       string     `json:"role"`
		Roles      []string   `json:"roles"`
	}

	// flexibleID accepts both string and numeric ids.
	flexibleID string

	messageResponse struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
)

func (id *flexibleID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Wrap(err, "decoding id")
	}
	*id = flexibleID(n.String())
	return nil
}

func (wu wireUser) user() user.User {
	rawRole := wu.Role
	if rawRole == "" && len(wu.Roles) > 0 {
		rawRole = wu.Roles[0]
	}
	role, _ := user.ParseRole(rawRole)
	return user.User{
		ID:         string(wu.ID),
		Email:      wu.Email,
		GivenName:  wu.GivenName,
		FamilyName: wu.FamilyName,
		Role:       role,
	}
}

// Login exchanges credentials for a session token and the user it belongs to.
// Any rejection is reported as ErrAuthenticationFailed.
func (c *Client) Login(ctx context.Context, creds user.Credentials) (LoginResult, error) {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, "/v1/users/login", "", creds, &resp)
	if err != nil {
		if isRejection(err) {
			return LoginResult{}, ErrAuthenticationFailed
		}
		return LoginResult{}, errors.Wrap(err, "logging in")
	}
	if resp.Token == "" {
		return LoginResult{}, ErrAuthenticationFailed
	}

	// older API versions only return the token
	if resp.User == nil || resp.User.ID == "" {
		usr, err := c.resolver.Resolve(resp.Token)
		if err != nil {
			c.logger.Warn("login returned an undecodable token", err)
			return LoginResult{}, ErrAuthenticationFailed
		}
		return LoginResult{Token: resp.Token, User: usr}, nil
	}
	return LoginResult{Token: resp.Token, User: resp.User.user()}, nil
}

// Register creates an account. Field errors reported by the API are returned as a core.ValidationError.
func (c *Client) Register(ctx context.Context, na user.NewAccount) error {
	err := c.do(ctx, http.MethodPost, "/v1/users/register", "", na, nil)
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
		if len(apiErr.Fields) > 0 {
			flds := make([]core.FieldError, 0, len(apiErr.Fields))
			for fld, msg := range apiErr.Fields {
				flds = append(flds, core.FieldError{Field: fld, Error: msg})
			}
			return core.NewValidationError(ErrRegistrationFailed, flds...)
		}
		return core.NewValidationError(ErrRegistrationFailed)
	}
	return errors.Wrap(err, "registering")
}

// RequestPasswordReset asks the API to email a reset link. Unknown addresses are not an error.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	err := c.do(ctx, http.MethodPost, "/v1/users/password-reset", "", user.PasswordResetRequest{Email: email}, nil)
	if err != nil && !isRejection(err) {
		return errors.Wrap(err, "requesting password reset")
	}
	return nil
}

// Profile fetches the account behind token.
func (c *Client) Profile(ctx context.Context, token, id string) (user.User, error) {
	var wu wireUser
	if err := c.Get(ctx, token, "/v1/users/"+id, &wu); err != nil {
		return user.User{}, errors.Wrap(err, "fetching profile")
	}
	return wu.user(), nil
}

// Get fetches an authenticated resource into out.
func (c *Client) Get(ctx context.Context, token, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, token, nil, out)
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, method+" "+path)
	}
	defer resp.Body.Close()

	if token != "" && resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(ioutil.Discard, resp.Body)
		if c.onExpired != nil {
			c.onExpired(ctx)
		}
		return ErrSessionExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(ioutil.Discard, resp.Body)
		return nil
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decoding response")
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	data, err := ioutil.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil || len(data) == 0 {
		return apiErr
	}

	var msg messageResponse
	if json.Unmarshal(data, &msg) == nil && (msg.Error != "" || msg.Message != "") {
		apiErr.Message = msg.Error
		if apiErr.Message == "" {
			apiErr.Message = msg.Message
		}
		return apiErr
	}
	// validation errors come as {"field": "message"}
	var fields map[string]string
	if json.Unmarshal(data, &fields) == nil {
		apiErr.Fields = fields
		return apiErr
	}
	apiErr.Message = strconv.Quote(strings.TrimSpace(string(data)))
	return apiErr
}

// isRejection reports whether the API answered with a client error.
func isRejection(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500
}
