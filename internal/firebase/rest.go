package firebase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"artify/internal/session"

	"github.com/go-resty/resty/v2"
)

// Default REST endpoints.
const (
	DefaultAuthBaseURL  = "https://identitytoolkit.googleapis.com/v1"
	DefaultTokenBaseURL = "https://securetoken.googleapis.com/v1"
)

// authResponse is returned by the accounts:* endpoints.
type authResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
}

// tokenResponse is returned by the Secure Token endpoint.
type tokenResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Messages look like "WEAK_PASSWORD : Password should be at least 6 characters".
func (b *errorBody) code() string {
	msg := b.Error.Message
	if i := strings.Index(msg, " : "); i >= 0 {
		msg = msg[:i]
	}
	return strings.TrimSpace(msg)
}

var codeKinds = map[string]error{
	"EMAIL_NOT_FOUND":                session.ErrInvalidCredentials,
	"INVALID_PASSWORD":               session.ErrInvalidCredentials,
	"INVALID_LOGIN_CREDENTIALS":      session.ErrInvalidCredentials,
	"INVALID_EMAIL":                  session.ErrInvalidCredentials,
	"USER_DISABLED":                  session.ErrUserDisabled,
	"EMAIL_EXISTS":                   session.ErrEmailExists,
	"WEAK_PASSWORD":                  session.ErrWeakPassword,
	"TOKEN_EXPIRED":                  session.ErrSessionExpired,
	"INVALID_REFRESH_TOKEN":          session.ErrSessionExpired,
	"INVALID_ID_TOKEN":               session.ErrSessionExpired,
	"USER_NOT_FOUND":                 session.ErrSessionExpired,
	"CREDENTIAL_TOO_OLD_LOGIN_AGAIN": session.ErrSessionExpired,
}

// restClient talks to the Identity Toolkit and Secure Token REST APIs.
type restClient struct {
	accounts *resty.Client
	tokens   *resty.Client
}

func newRESTClient(apiKey, authBaseURL, tokenBaseURL string, timeout time.Duration) *restClient {
	if authBaseURL == "" {
		authBaseURL = DefaultAuthBaseURL
	}
	if tokenBaseURL == "" {
		tokenBaseURL = DefaultTokenBaseURL
	}
	mk := func(base string) *resty.Client {
		return resty.New().
			SetBaseURL(strings.TrimRight(base, "/")).
			SetTimeout(timeout).
			SetQueryParam("key", apiKey).
			SetHeader("Accept", "application/json")
	}
	return &restClient{accounts: mk(authBaseURL), tokens: mk(tokenBaseURL)}
}

func (c *restClient) signInWithPassword(ctx context.Context, email, password string) (*authResponse, error) {
	var out authResponse
	err := c.postJSON(ctx, "/accounts:signInWithPassword", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &out)
	return &out, err
}

func (c *restClient) signUp(ctx context.Context, email, password string) (*authResponse, error) {
	var out authResponse
	err := c.postJSON(ctx, "/accounts:signUp", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &out)
	return &out, err
}

func (c *restClient) sendPasswordReset(ctx context.Context, email string) error {
	return c.postJSON(ctx, "/accounts:sendOobCode", map[string]interface{}{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}, nil)
}

func (c *restClient) sendEmailVerification(ctx context.Context, idToken string) error {
	return c.postJSON(ctx, "/accounts:sendOobCode", map[string]interface{}{
		"requestType": "VERIFY_EMAIL",
		"idToken":     idToken,
	}, nil)
}

func (c *restClient) updatePassword(ctx context.Context, idToken, password string) (*authResponse, error) {
	var out authResponse
	err := c.postJSON(ctx, "/accounts:update", map[string]interface{}{
		"idToken":           idToken,
		"password":          password,
		"returnSecureToken": true,
	}, &out)
	return &out, err
}

func (c *restClient) refresh(ctx context.Context, refreshToken string) (*tokenResponse, error) {
	var out tokenResponse
	var apiErr errorBody
	resp, err := c.tokens.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": refreshToken,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/token")
	if err := checkResponse(resp, err, &apiErr); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *restClient) postJSON(ctx context.Context, path string, body map[string]interface{}, out interface{}) error {
	var apiErr errorBody
	req := c.accounts.R().
		SetContext(ctx).
		SetBody(body).
		SetError(&apiErr)
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Post(path)
	return checkResponse(resp, err, &apiErr)
}

func checkResponse(resp *resty.Response, err error, apiErr *errorBody) error {
	if err != nil {
		return &session.StoreError{Code: "NETWORK_ERROR", Cause: err}
	}
	if !resp.IsError() {
		return nil
	}
	code := apiErr.code()
	if code == "" {
		code = "HTTP_" + strconv.Itoa(resp.StatusCode())
	}
	return &session.StoreError{
		Code:  code,
		Kind:  codeKinds[code],
		Cause: fmt.Errorf("identity toolkit returned %d", resp.StatusCode()),
	}
}

func expiresInSeconds(s string) time.Duration {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return time.Hour
	}
	return time.Duration(n) * time.Second
}
