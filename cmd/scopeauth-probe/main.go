// Command scopeauth-probe exercises a live InsiderScope backend: it logs in,
// resolves the profile, fires a batch of authenticated requests through the
// session wrapper, forces a rotation, and prints the resulting client
// metrics in Prometheus text format.
//
// The session is persisted between runs; point -store-file at the same path
// twice and the second run starts from the hydrated session without logging
// in again. With -redis-addr the session lives in Redis instead.
//
// Run:
//
//	go run ./cmd/scopeauth-probe \
//	  -base-url https://api.insiderscope.example \
//	  -email student@example.com -password s3cret \
//	  -probe-path /api/holdings -rounds 5
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	scopeauth "github.com/insiderscope/scopeauth"
	"github.com/insiderscope/scopeauth/metrics/export/prometheus"
	"github.com/insiderscope/scopeauth/store"
)

func main() {
	var (
		baseURL   = flag.String("base-url", "", "backend origin, e.g. https://api.insiderscope.example")
		email     = flag.String("email", "", "account email; omit to reuse a persisted session")
		password  = flag.String("password", "", "account password")
		probePath = flag.String("probe-path", "/auth/me", "authenticated path to probe")
		rounds    = flag.Int("rounds", 3, "number of probe requests")
		storeFile = flag.String("store-file", "", "session file path; empty keeps the session in memory")
		redisAddr = flag.String("redis-addr", "", "redis address for session storage; overrides -store-file")
		timeout   = flag.Duration("timeout", 10*time.Second, "per-request timeout")
	)
	flag.Parse()

	if *baseURL == "" {
		fmt.Fprintln(os.Stderr, "-base-url is required")
		os.Exit(2)
	}
	if *rounds <= 0 {
		fmt.Fprintln(os.Stderr, "-rounds must be > 0")
		os.Exit(2)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	sessionStore, cleanup, err := buildStore(*storeFile, *redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "store: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	client, err := scopeauth.New().
		WithBaseURL(*baseURL).
		WithHTTPClient(&http.Client{Timeout: *timeout}).
		WithStore(sessionStore).
		WithLogger(logger).
		WithEventSink(scopeauth.NewJSONWriterSink(os.Stderr)).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx := context.Background()

	if client.Token() == "" {
		if *email == "" || *password == "" {
			fmt.Fprintln(os.Stderr, "no persisted session; -email and -password are required")
			os.Exit(2)
		}
		profile, err := client.LoginPassword(ctx, *email, *password)
		if err != nil {
			fmt.Fprintf(os.Stderr, "login: %v\n", err)
			os.Exit(1)
		}
		if profile != nil {
			fmt.Printf("logged in as %s (%s)\n", profile.Name, profile.Email)
		}
	} else {
		fmt.Println("reusing persisted session")
		if profile, err := client.RefreshUser(ctx); err == nil && profile != nil {
			fmt.Printf("session belongs to %s\n", profile.Email)
		}
	}

	for i := 0; i < *rounds; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, *baseURL+*probePath, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "build probe request: %v\n", err)
			os.Exit(1)
		}
		start := time.Now()
		resp, err := client.Do(req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "probe %d: %v\n", i+1, err)
			os.Exit(1)
		}
		_ = resp.Body.Close()
		fmt.Printf("probe %d: %s %s -> %d (%s)\n",
			i+1, http.MethodGet, *probePath, resp.StatusCode, time.Since(start).Round(time.Millisecond))
	}

	fmt.Println("---- metrics ----")
	fmt.Print(prometheus.NewPrometheusExporter(client).Render())
}

func buildStore(filePath, redisAddr string) (store.Store, func(), error) {
	switch {
	case redisAddr != "":
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{redisAddr},
		})
		s, err := store.NewRedis(client, "scopeauth-probe")
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return s, func() { _ = client.Close() }, nil
	case filePath != "":
		s, err := store.NewFile(filePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	default:
		return store.NewMemory(), func() {}, nil
	}
}
