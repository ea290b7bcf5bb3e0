package scopeauth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/insiderscope/scopeauth/store"
)

// Builder assembles a [Client]. Construction is allocation-only; the sole
// I/O in [Builder.Build] is hydrating the session from the configured store.
type Builder struct {
	config   Config
	baseURL  string
	http     *http.Client
	store    store.Store
	logger   *zap.Logger
	sink     EventSink
	built    bool
}

func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the default configuration wholesale.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithBaseURL sets the backend origin, e.g. "https://api.insiderscope.io".
// Required.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.baseURL = baseURL
	return b
}

// WithHTTPClient sets the underlying HTTP client used for every network
// call. Its timeout (if any) is the only timeout the session layer observes.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.http = client
	return b
}

// WithStore sets the persistent session store. Defaults to [store.Memory].
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithLogger sets the logger for swallowed best-effort failures. Defaults
// to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithEventSink installs a session-event sink and enables dispatching.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.sink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, hydrates the session from the store,
// and starts the expiry watchdog. A Builder must not be reused.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("scopeauth: builder already used")
	}
	b.built = true

	if err := validateConfig(b.config); err != nil {
		return nil, err
	}
	if b.baseURL == "" {
		return nil, errors.New("scopeauth: base URL is required")
	}
	parsed, err := url.Parse(b.baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.New("scopeauth: base URL must be absolute")
	}

	httpClient := b.http
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	sessionStore := b.store
	if sessionStore == nil {
		sessionStore = store.NewMemory()
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		cfg:     b.config,
		baseURL: strings.TrimSuffix(b.baseURL, "/"),
		http:    httpClient,
		store:   sessionStore,
		logger:  logger,
		metrics: NewMetrics(b.config.Metrics),
		events:  newEventDispatcher(b.config.Events, b.sink),
		sess:    &session{},
	}

	c.hydrate(context.Background())
	c.startWatchdog()

	return c, nil
}
