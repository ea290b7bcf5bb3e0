package scopeauth

import (
	"errors"
	"strings"
	"time"
)

// Config defines the behavior of a [Client]. Construct it with
// [DefaultConfig] and override fields before handing it to
// [Builder.WithConfig]; it is validated once at [Builder.Build] and treated
// as immutable afterwards.
type Config struct {
	Endpoints EndpointConfig
	Session   SessionConfig
	Watchdog  WatchdogConfig
	Retry     RetryConfig
	Metrics   MetricsConfig
	Events    EventConfig
}

/*
====================================
ENDPOINT CONFIG
====================================
*/

// EndpointConfig holds the backend paths, relative to the base URL.
type EndpointConfig struct {
	Login         string
	Refresh       string
	Logout        string
	Profile       string
	Signup        string
	UpdateProfile string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig governs proactive expiry handling. Window is how long an
// access token is considered fresh after issuance; once it elapses the
// watchdog rotates ahead of the next user action.
type SessionConfig struct {
	Window time.Duration
}

/*
====================================
WATCHDOG CONFIG
====================================
*/

// WatchdogConfig controls the background rotation timer. The watchdog is
// purely additive: reactive 401 handling in the request wrapper is sufficient
// for correctness, the watchdog only avoids a doubled round-trip on the first
// action after expiry.
type WatchdogConfig struct {
	Enabled      bool
	PollInterval time.Duration
}

/*
====================================
RETRY CONFIG
====================================
*/

// RetryConfig controls the single rotation-retry cycle of the request
// wrapper. When RetryUnauthorized is false a 401 is returned to the caller
// untouched.
type RetryConfig struct {
	RetryUnauthorized bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig enables the in-process counters exposed through
// [Client.MetricsSnapshot] and the exporters under metrics/export.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
EVENT CONFIG
====================================
*/

// EventConfig controls the asynchronous session-event dispatcher. Events are
// only dispatched when a sink is installed via [Builder.WithEventSink].
type EventConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// DefaultConfig returns the configuration used against a stock InsiderScope
// backend deployment.
func DefaultConfig() Config {
	return Config{
		Endpoints: EndpointConfig{
			Login:         "/auth/token",
			Refresh:       "/auth/refresh",
			Logout:        "/auth/logout",
			Profile:       "/auth/me",
			Signup:        "/auth/signup",
			UpdateProfile: "/auth/me/update",
		},
		Session: SessionConfig{
			Window: 45 * time.Minute,
		},
		Watchdog: WatchdogConfig{
			Enabled:      true,
			PollInterval: time.Minute,
		},
		Retry: RetryConfig{
			RetryUnauthorized: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Events: EventConfig{
			Enabled:    true,
			BufferSize: 64,
			DropIfFull: true,
		},
	}
}

func validateConfig(cfg Config) error {
	for _, p := range []string{
		cfg.Endpoints.Login,
		cfg.Endpoints.Refresh,
		cfg.Endpoints.Logout,
		cfg.Endpoints.Profile,
		cfg.Endpoints.Signup,
		cfg.Endpoints.UpdateProfile,
	} {
		if p == "" {
			return errors.New("scopeauth: endpoint path must not be empty")
		}
		if !strings.HasPrefix(p, "/") {
			return errors.New("scopeauth: endpoint path must start with '/'")
		}
	}
	if cfg.Session.Window <= 0 {
		return errors.New("scopeauth: session window must be positive")
	}
	if cfg.Watchdog.Enabled {
		if cfg.Watchdog.PollInterval <= 0 {
			return errors.New("scopeauth: watchdog poll interval must be positive")
		}
		if cfg.Watchdog.PollInterval > cfg.Session.Window {
			return errors.New("scopeauth: watchdog poll interval exceeds session window")
		}
	}
	if cfg.Events.Enabled && cfg.Events.BufferSize < 0 {
		return errors.New("scopeauth: event buffer size must not be negative")
	}
	return nil
}
