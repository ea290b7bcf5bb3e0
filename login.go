package scopeauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// LoginPassword authenticates with email and password, installs the
// returned token pair, and resolves the profile. The session is established
// as soon as the server accepts the credentials; a failed profile resolution
// is logged and leaves the returned profile nil without tearing the session
// down.
func (c *Client) LoginPassword(ctx context.Context, email, password string) (*Profile, error) {
	form := url.Values{
		"username":   {email},
		"password":   {password},
		"login_type": {"normal"},
	}
	return c.login(ctx, form)
}

// LoginGoogle authenticates with a Google-issued ID token. Accounts created
// this way have no password yet; the session's extra-credential flag is set
// from the server's requires_password field.
func (c *Client) LoginGoogle(ctx context.Context, email, idToken string) (*Profile, error) {
	form := url.Values{
		"username":   {email},
		"login_type": {"google"},
		"token":      {idToken},
	}
	return c.login(ctx, form)
}

func (c *Client) login(ctx context.Context, form url.Values) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.cfg.Endpoints.Login, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("scopeauth: build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		c.metricInc(MetricLoginFailure)
		return nil, fmt.Errorf("scopeauth: login: %w", err)
	}
	defer drainBody(resp)

	if resp.StatusCode != http.StatusOK {
		detail := decodeDetail(resp)
		c.metricInc(MetricLoginFailure)
		c.emitEvent(ctx, eventLoginFailure, false, nil, func() map[string]string {
			return map[string]string{"status": resp.Status, "detail": detail}
		})
		if resp.StatusCode == http.StatusUnauthorized {
			if detail != "" {
				return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, detail)
			}
			return nil, ErrInvalidCredentials
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Detail: detail}
	}

	var tokens tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		c.metricInc(MetricLoginFailure)
		return nil, fmt.Errorf("scopeauth: decode login response: %w", err)
	}
	if tokens.AccessToken == "" {
		c.metricInc(MetricLoginFailure)
		return nil, fmt.Errorf("scopeauth: login response carried no access token")
	}

	requiresPassword := false
	if tokens.RequiresPassword != nil {
		requiresPassword = *tokens.RequiresPassword
	}
	c.applyTokens(ctx, tokens.AccessToken, tokens.RefreshToken, requiresPassword)
	c.metricInc(MetricLoginSuccess)
	c.emitEvent(ctx, eventLoginSuccess, true, nil, func() map[string]string {
		return map[string]string{"email": tokens.Email}
	})

	profile, err := c.RefreshUser(ctx)
	if err != nil {
		c.logger.Warn("profile resolution after login failed", zap.Error(err))
		return nil, nil
	}
	return profile, nil
}

// SignupInput is the registration payload.
type SignupInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup registers a new account. It does not log in; call
// [Client.LoginPassword] afterwards.
func (c *Client) Signup(ctx context.Context, input SignupInput) error {
	payload, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("scopeauth: encode signup request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.cfg.Endpoints.Signup, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("scopeauth: build signup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("scopeauth: signup: %w", err)
	}
	defer drainBody(resp)

	switch {
	case resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusConflict:
		return ErrAccountExists
	default:
		return &APIError{StatusCode: resp.StatusCode, Detail: decodeDetail(resp)}
	}
}

// decodeDetail extracts the server's {"detail": "..."} error message, if the
// body carried one.
func decodeDetail(resp *http.Response) string {
	var body apiErrorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ""
	}
	return body.Detail
}
