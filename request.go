package scopeauth

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Do performs one logical request under the current session: it attaches the
// bearer token (unless the caller already set an Authorization header),
// stamps an X-Request-ID, and on a 401 rotates the token pair and re-issues
// the request exactly once with the rotated token.
//
// The response is returned as-is for every status other than a retryable
// 401 — inspecting it is the caller's job; Do never turns an HTTP error
// status into a Go error. At most two request attempts are made, and at most
// one rotation exchange happens even when many wrapped requests fail at the
// same moment.
//
// Requests with a body are only retried when req.GetBody is set (true for
// requests built by http.NewRequest with common body types).
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithToken(req, "")
}

// DoWithToken is [Client.Do] with an explicit bearer token for the first
// attempt, overriding the session token. The rotation-retry contract is
// unchanged.
func (c *Client) DoWithToken(req *http.Request, token string) (*http.Response, error) {
	return c.doAuthorized(req, token, c.http.Do)
}

// doAuthorized is the shared core of Do and Transport.RoundTrip. send is
// the underlying delivery mechanism; the caller's request is never mutated.
func (c *Client) doAuthorized(req *http.Request, token string, send func(*http.Request) (*http.Response, error)) (*http.Response, error) {
	start := time.Now()

	bearer := token
	if bearer == "" {
		bearer = c.sess.access()
	}

	attempt := cloneRequest(req)
	if attempt.Header.Get("Authorization") == "" && bearer != "" {
		attempt.Header.Set("Authorization", "Bearer "+bearer)
	}
	if attempt.Header.Get("X-Request-ID") == "" {
		attempt.Header.Set("X-Request-ID", uuid.NewString())
	}

	resp, err := send(attempt)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || !c.cfg.Retry.RetryUnauthorized {
		c.observeLatency(start)
		return resp, nil
	}

	// The body, if any, must be replayable for a second attempt.
	if req.Body != nil && req.GetBody == nil {
		c.observeLatency(start)
		return resp, nil
	}

	rotated, rotateErr := c.rotate(req.Context())
	if rotateErr != nil {
		// Cannot rotate: hand the original 401 back. The caller treats it
		// as "must log out".
		c.observeLatency(start)
		return resp, nil
	}
	drainBody(resp)

	retry := cloneRequest(attempt)
	retry.Header.Set("Authorization", "Bearer "+rotated)
	c.metricInc(MetricUnauthorizedRetry)

	resp2, err2 := send(retry)
	if err2 == nil && resp2.StatusCode == http.StatusUnauthorized {
		c.metricInc(MetricRetryStillUnauthorized)
	}
	c.observeLatency(start)
	return resp2, err2
}

func (c *Client) observeLatency(start time.Time) {
	if c.metrics != nil {
		c.metrics.Observe(MetricRequestLatency, time.Since(start))
	}
}

// cloneRequest deep-copies headers and rewinds the body via GetBody where
// available.
func cloneRequest(req *http.Request) *http.Request {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		if body, err := req.GetBody(); err == nil {
			clone.Body = body
		}
	}
	return clone
}

// Transport is an http.RoundTripper that applies the [Client.Do] contract —
// bearer attachment plus a single rotation-retry cycle — to every request
// passing through it. Hand it to feature code that expects a plain
// *http.Client.
type Transport struct {
	client *Client
	base   http.RoundTripper
}

// Transport returns a RoundTripper bound to this client. A nil base falls
// back to http.DefaultTransport.
func (c *Client) Transport(base http.RoundTripper) *Transport {
	return &Transport{client: c, base: base}
}

// HTTPClient returns an *http.Client whose transport routes everything
// through the session.
func (c *Client) HTTPClient() *http.Client {
	return &http.Client{Transport: c.Transport(nil)}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return t.client.doAuthorized(req, "", base.RoundTrip)
}
