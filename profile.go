package scopeauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/insiderscope/scopeauth/store"
)

// RefreshUser re-fetches the profile under the current session. The request
// goes through the wrapped-request path, so a stale access token triggers a
// rotation-retry instead of spuriously logging the user out while a valid
// refresh token is available.
//
// A 401 that survives the retry means rotation failed and the session is
// already cleared; any other failure sets the cached profile to nil but
// leaves the tokens untouched.
func (c *Client) RefreshUser(ctx context.Context) (*Profile, error) {
	if c.sess.access() == "" {
		return nil, ErrNotAuthenticated
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.cfg.Endpoints.Profile, nil)
	if err != nil {
		return nil, fmt.Errorf("scopeauth: build profile request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		c.sess.setUser(nil)
		c.metricInc(MetricProfileRefreshFailure)
		return nil, fmt.Errorf("scopeauth: fetch profile: %w", err)
	}
	defer drainBody(resp)

	if resp.StatusCode == http.StatusUnauthorized {
		c.sess.setUser(nil)
		c.metricInc(MetricProfileRefreshFailure)
		return nil, ErrNotAuthenticated
	}
	if resp.StatusCode != http.StatusOK {
		c.sess.setUser(nil)
		c.metricInc(MetricProfileRefreshFailure)
		return nil, &APIError{StatusCode: resp.StatusCode, Detail: decodeDetail(resp)}
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		c.sess.setUser(nil)
		c.metricInc(MetricProfileRefreshFailure)
		return nil, fmt.Errorf("scopeauth: decode profile: %w", err)
	}

	c.sess.setUser(&profile)
	c.metricInc(MetricProfileRefreshSuccess)
	return &profile, nil
}

// UpdateProfile changes the account's display name and/or password through
// the wrapped-request path. Setting a password on a federated account clears
// the extra-credential flag.
func (c *Client) UpdateProfile(ctx context.Context, input UpdateProfileInput) error {
	if c.sess.access() == "" {
		return ErrNotAuthenticated
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("scopeauth: encode profile update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+c.cfg.Endpoints.UpdateProfile, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("scopeauth: build profile update request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("scopeauth: update profile: %w", err)
	}
	defer drainBody(resp)

	switch {
	case resp.StatusCode == http.StatusOK:
		if input.Password != "" {
			c.sess.setRequiresPassword(false)
			if err := c.store.Clear(ctx, store.KeyRequiresExtraCredential); err != nil {
				c.storeDegraded(ctx, store.KeyRequiresExtraCredential, err)
			}
		}
		if input.Name != "" {
			// Keep the cached profile in step without a second round-trip;
			// the next RefreshUser re-resolves authoritatively.
			if user := c.sess.snapshot().User; user != nil {
				updated := *user
				updated.Name = input.Name
				c.sess.setUser(&updated)
			}
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, decodeDetail(resp))
	default:
		return &APIError{StatusCode: resp.StatusCode, Detail: decodeDetail(resp)}
	}
}
