package scopeauth

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// The watchdog rotates proactively once the session window has elapsed, so
// the user's next action does not pay for a 401 round-trip plus a rotation.
// It is additive: the reactive retry in the request wrapper is sufficient on
// its own.
//
// One long-lived goroutine idles over an empty session, which subsumes the
// stop-on-failure rule: a failed rotation clears the session, leaving
// nothing to rotate until a new login repopulates it.

func (c *Client) startWatchdog() {
	if !c.cfg.Watchdog.Enabled {
		return
	}

	c.watchdogDone = make(chan struct{})
	c.watchdogWG.Add(1)
	go c.runWatchdog()
}

func (c *Client) stopWatchdog() {
	if c.watchdogDone == nil {
		return
	}
	close(c.watchdogDone)
	c.watchdogWG.Wait()
}

func (c *Client) runWatchdog() {
	defer c.watchdogWG.Done()

	ticker := time.NewTicker(c.cfg.Watchdog.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.watchdogDone:
			return
		case <-ticker.C:
			c.watchdogTick()
		}
	}
}

func (c *Client) watchdogTick() {
	snap := c.sess.snapshot()
	if snap.AccessToken == "" || c.sess.refresh() == "" {
		return
	}
	if time.Since(snap.IssuedAt) <= c.cfg.Session.Window {
		return
	}

	ctx := context.Background()
	if _, err := c.rotate(ctx); err != nil {
		// exchange already cleared the session and counted the failure.
		c.logger.Warn("proactive rotation failed, session cleared", zap.Error(err))
		return
	}
	c.metricInc(MetricWatchdogRotation)
	c.emitEvent(ctx, eventWatchdogRotated, true, nil, nil)
}
