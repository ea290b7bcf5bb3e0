package scopeauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// rotationFlightKey is the sole singleflight key: rotation is exclusive
// system-wide, not per-caller.
const rotationFlightKey = "rotate"

// rotate exchanges the current refresh token for a new access/refresh pair.
// Concurrent callers — wrapped requests that 401ed together, the watchdog,
// anything else — share one in-flight exchange and resume with its result.
//
// Returning [ErrNoRefreshToken] means "cannot rotate, caller must log in";
// no network call was made. Any other error means the exchange failed and
// the session has been cleared.
func (c *Client) rotate(ctx context.Context) (string, error) {
	if c.sess.refresh() == "" {
		return "", ErrNoRefreshToken
	}

	token, err, shared := c.flight.Do(rotationFlightKey, func() (interface{}, error) {
		// The exchange outlives its first caller: a rotation that has
		// started always settles the session, so cancellation of any one
		// waiter must not abort it.
		return c.exchange(context.WithoutCancel(ctx))
	})
	if shared {
		c.metricInc(MetricRotationCoalesced)
	}
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// exchange performs the rotation network call. It runs inside the
// singleflight, so at most one execution is in flight at any time.
func (c *Client) exchange(ctx context.Context) (string, error) {
	// Re-read under the flight: a previous rotation may have replaced the
	// refresh token between the caller's check and this execution.
	refresh := c.sess.refresh()
	if refresh == "" {
		return "", ErrNoRefreshToken
	}

	payload, err := json.Marshal(rotationRequest{RefreshToken: refresh})
	if err != nil {
		return "", fmt.Errorf("scopeauth: encode rotation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.cfg.Endpoints.Refresh, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("scopeauth: build rotation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", c.rotationFailed(ctx, fmt.Errorf("%w: %v", ErrRotationRejected, err))
	}
	defer drainBody(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", c.rotationFailed(ctx, fmt.Errorf("%w: status %d", ErrRotationRejected, resp.StatusCode))
	}

	var tokens tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return "", c.rotationFailed(ctx, fmt.Errorf("%w: decode response: %v", ErrRotationRejected, err))
	}
	if tokens.AccessToken == "" {
		return "", c.rotationFailed(ctx, fmt.Errorf("%w: empty access token", ErrRotationRejected))
	}

	// A server in fixed-rotation mode omits refresh_token; keep the old one.
	// A server that rotates it has invalidated the old one, so the new value
	// must be persisted before any waiter resumes.
	newRefresh := tokens.RefreshToken
	if newRefresh == "" {
		newRefresh = refresh
	}
	requiresPassword := c.sess.snapshot().RequiresPassword
	if tokens.RequiresPassword != nil {
		requiresPassword = *tokens.RequiresPassword
	}

	c.applyTokens(ctx, tokens.AccessToken, newRefresh, requiresPassword)
	c.metricInc(MetricRotationSuccess)
	c.emitEvent(ctx, eventRotationSuccess, true, nil, nil)

	return tokens.AccessToken, nil
}

// rotationFailed collapses every exchange failure — rejection and transport
// error alike — to a full local logout. The client cannot tell a revoked
// refresh token from an unreachable server without extra backend signaling.
func (c *Client) rotationFailed(ctx context.Context, err error) error {
	c.clearSession(ctx)
	c.metricInc(MetricRotationFailure)
	c.emitEvent(ctx, eventRotationFailure, false, err, nil)
	return err
}
