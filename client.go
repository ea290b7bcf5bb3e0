package scopeauth

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/insiderscope/scopeauth/store"
)

// Client is the session façade. It owns the token pair, the rotation
// coordinator, the persistent store, and the expiry watchdog. UI code and
// feature packages consume it through two calls: the token getters and the
// wrapped-request methods.
type Client struct {
	cfg     Config
	baseURL string
	http    *http.Client
	store   store.Store
	logger  *zap.Logger
	metrics *Metrics
	events  *eventDispatcher

	sess   *session
	flight singleflight.Group

	watchdogDone chan struct{}
	watchdogWG   sync.WaitGroup
	closeOnce    sync.Once
}

// Token returns the current bearer credential, or "" when logged out.
func (c *Client) Token() string {
	return c.sess.access()
}

// User returns the last resolved profile, or nil. It is derived state and
// may lag the server; [Client.RefreshUser] re-resolves it.
func (c *Client) User() *Profile {
	return c.sess.snapshot().User
}

// RequiresPassword reports whether the authenticated identity signed in
// through a method that has not yet set a password. Meaningful only while
// a token is present.
func (c *Client) RequiresPassword() bool {
	return c.sess.snapshot().RequiresPassword
}

// Snapshot returns a consistent copy of the session: either entirely the
// state before a rotation/login, or entirely the state after — never a mix.
func (c *Client) Snapshot() SessionInfo {
	return c.sess.snapshot()
}

// SetToken assigns a new access token obtained outside the client (an
// embedded login page, a test harness) with a fresh issuance time, keeping
// the current refresh token, then re-resolves the profile. An empty token
// performs a full logout.
func (c *Client) SetToken(ctx context.Context, token string) {
	if token == "" {
		c.Logout(ctx)
		return
	}

	snap := c.sess.snapshot()
	c.applyTokens(ctx, token, c.sess.refresh(), snap.RequiresPassword)

	if _, err := c.RefreshUser(ctx); err != nil {
		c.logger.Warn("profile resolution after SetToken failed", zap.Error(err))
	}
}

// SetTokens assigns a complete credential batch, typically relayed from a
// login performed elsewhere, and re-resolves the profile.
func (c *Client) SetTokens(ctx context.Context, access, refresh string, requiresPassword bool) {
	if access == "" {
		c.Logout(ctx)
		return
	}

	c.applyTokens(ctx, access, refresh, requiresPassword)

	if _, err := c.RefreshUser(ctx); err != nil {
		c.logger.Warn("profile resolution after SetTokens failed", zap.Error(err))
	}
}

// Logout revokes the server-side session best-effort, then clears the local
// session. The local clear proceeds regardless of the revoke outcome.
func (c *Client) Logout(ctx context.Context) {
	token := c.sess.access()
	if token != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.cfg.Endpoints.Logout, nil)
		if err == nil {
			req.Header.Set("Authorization", "Bearer "+token)
			resp, err := c.http.Do(req)
			if err != nil {
				c.logger.Warn("server-side logout failed", zap.Error(err))
			} else {
				drainBody(resp)
			}
		}
	}

	c.clearSession(ctx)
	c.metricInc(MetricLogout)
	c.emitEvent(ctx, eventLogout, true, nil, nil)
}

// Close stops the watchdog and the event dispatcher. The session itself is
// left as-is: a subsequent process start hydrates it from the store.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		c.stopWatchdog()
		c.events.Close()
	})
}

// MetricsSnapshot returns a copy of the client-side counters. It satisfies
// the source interface of the exporters under metrics/export.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

// EventsDropped reports session events dropped due to dispatcher
// backpressure.
func (c *Client) EventsDropped() uint64 {
	if c == nil {
		return 0
	}
	return c.events.Dropped()
}

func (c *Client) metricInc(id MetricID) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Inc(id)
}

// hydrate restores the session from the persistent store. Read failures
// leave the session empty; they are not fatal.
func (c *Client) hydrate(ctx context.Context) {
	read := func(key string) string {
		value, err := c.store.Read(ctx, key)
		if err != nil {
			c.logger.Warn("session store read failed", zap.String("key", key), zap.Error(err))
			return ""
		}
		return value
	}

	access := read(store.KeyAccessToken)
	if access == "" {
		return
	}
	refresh := read(store.KeyRefreshToken)
	requiresPassword := read(store.KeyRequiresExtraCredential) == "true"

	issuedAt := time.Now()
	if raw := read(store.KeyIssuedAt); raw != "" {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			issuedAt = time.UnixMilli(ms)
		}
	}

	c.sess.apply(access, refresh, issuedAt, requiresPassword)
	c.emitEvent(ctx, eventHydrated, true, nil, nil)
}

// applyTokens is the single write path for token assignment: one atomic
// in-memory batch, then best-effort persistence. The batch is visible to
// readers (and to rotation waiters) only as a whole.
func (c *Client) applyTokens(ctx context.Context, access, refresh string, requiresPassword bool) {
	issuedAt := time.Now()
	c.sess.apply(access, refresh, issuedAt, requiresPassword)
	c.persistSession(ctx, access, refresh, issuedAt, requiresPassword)
}

// clearSession wipes the in-memory batch and the persisted keys. Store
// failures are swallowed: an empty in-memory session already means logged
// out, durability of the clear is best-effort.
func (c *Client) clearSession(ctx context.Context) {
	c.sess.clear()
	if err := c.store.Clear(ctx, store.SessionKeys()...); err != nil {
		c.storeDegraded(ctx, "clear", err)
	}
}

func (c *Client) persistSession(ctx context.Context, access, refresh string, issuedAt time.Time, requiresPassword bool) {
	write := func(key, value string) {
		if err := c.store.Write(ctx, key, value); err != nil {
			c.storeDegraded(ctx, key, err)
		}
	}

	write(store.KeyAccessToken, access)
	if refresh != "" {
		write(store.KeyRefreshToken, refresh)
	} else if err := c.store.Clear(ctx, store.KeyRefreshToken); err != nil {
		c.storeDegraded(ctx, store.KeyRefreshToken, err)
	}
	write(store.KeyIssuedAt, strconv.FormatInt(issuedAt.UnixMilli(), 10))
	if requiresPassword {
		write(store.KeyRequiresExtraCredential, "true")
	} else if err := c.store.Clear(ctx, store.KeyRequiresExtraCredential); err != nil {
		c.storeDegraded(ctx, store.KeyRequiresExtraCredential, err)
	}
}

func (c *Client) storeDegraded(ctx context.Context, key string, err error) {
	c.metricInc(MetricStoreWriteFailure)
	c.logger.Warn("session store write failed, value kept in-memory only",
		zap.String("key", key), zap.Error(err))
	c.emitEvent(ctx, eventStoreDegraded, false, err, func() map[string]string {
		return map[string]string{"key": key}
	})
}

func drainBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
