package scopeauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/insiderscope/scopeauth/store"
)

const (
	testEmail    = "student@example.com"
	testPassword = "s3cret-pass"
	testName     = "Student User"
)

// fakeBackend is an in-process stand-in for the dashboard API. It mints real
// HS256 access tokens the way the backend does, keeps one valid refresh
// token at a time, and counts every network call so tests can assert exact
// request budgets.
type fakeBackend struct {
	t      *testing.T
	srv    *httptest.Server
	secret []byte

	mu             sync.Mutex
	validAccess    map[string]bool
	currentRefresh string
	requiresPW     bool
	failRefresh    bool
	omitRefresh    bool
	dataAuths      []string

	// refreshGate, when set, blocks the refresh handler until closed. Used
	// to hold a rotation in flight while more callers pile on.
	refreshGate chan struct{}

	loginCalls   atomic.Int64
	refreshCalls atomic.Int64
	profileCalls atomic.Int64
	logoutCalls  atomic.Int64
	dataCalls    atomic.Int64
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	b := &fakeBackend{
		t:           t,
		secret:      []byte("router-test-secret"),
		validAccess: map[string]bool{},
	}

	mux := http.NewServeMux()
	// Method-qualified ServeMux patterns need Go 1.22; enforce the method
	// by hand so the backend behaves the same on older toolchains.
	handle := func(method, path string, h http.HandlerFunc) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != method {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			h(w, r)
		})
	}
	handle(http.MethodPost, "/auth/token", b.handleLogin)
	handle(http.MethodPost, "/auth/refresh", b.handleRefresh)
	handle(http.MethodGet, "/auth/me", b.handleProfile)
	handle(http.MethodPost, "/auth/logout", b.handleLogout)
	handle(http.MethodPost, "/auth/signup", b.handleSignup)
	handle(http.MethodPut, "/auth/me/update", b.handleUpdate)
	handle(http.MethodGet, "/api/holdings", b.handleData)

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) mintAccess() string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": testEmail,
		"jti": uuid.NewString(),
	}).SignedString(b.secret)
	if err != nil {
		b.t.Fatalf("mint access token: %v", err)
	}
	return token
}

// issuePair registers a fresh access/refresh pair as the only valid one.
func (b *fakeBackend) issuePair() (string, string) {
	access := b.mintAccess()
	refresh := "refresh-" + uuid.NewString()

	b.mu.Lock()
	b.validAccess[access] = true
	b.currentRefresh = refresh
	b.mu.Unlock()

	return access, refresh
}

func (b *fakeBackend) revokeAccess(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.validAccess, token)
}

func (b *fakeBackend) setRefreshGate(gate chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshGate = gate
}

func (b *fakeBackend) authorized(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return false
	}
	token := strings.TrimPrefix(header, "Bearer ")

	b.mu.Lock()
	valid := b.validAccess[token]
	b.mu.Unlock()
	if !valid {
		return false
	}

	_, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) {
		return b.secret, nil
	})
	return err == nil
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

func (b *fakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	b.loginCalls.Add(1)

	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed form")
		return
	}
	if r.PostFormValue("username") != testEmail {
		writeDetail(w, http.StatusUnauthorized, "User not found. Please sign up to access our services.")
		return
	}

	requiresPW := false
	switch r.PostFormValue("login_type") {
	case "normal":
		if r.PostFormValue("password") != testPassword {
			writeDetail(w, http.StatusUnauthorized, "Incorrect password.")
			return
		}
	case "google":
		if r.PostFormValue("token") == "" {
			writeDetail(w, http.StatusBadRequest, "Google token is required for Google login.")
			return
		}
		requiresPW = true
	default:
		writeDetail(w, http.StatusBadRequest, "Invalid login type.")
		return
	}

	access, refresh := b.issuePair()
	b.mu.Lock()
	b.requiresPW = requiresPW
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":      access,
		"refresh_token":     refresh,
		"token_type":        "bearer",
		"email":             testEmail,
		"requires_password": requiresPW,
	})
}

func (b *fakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	gate := b.refreshGate
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}

	b.refreshCalls.Add(1)

	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed body")
		return
	}

	b.mu.Lock()
	rejected := b.failRefresh || body.RefreshToken == "" || body.RefreshToken != b.currentRefresh
	omit := b.omitRefresh
	requiresPW := b.requiresPW
	b.mu.Unlock()

	if rejected {
		writeDetail(w, http.StatusUnauthorized, "Invalid refresh token.")
		return
	}

	access, refresh := b.issuePair()
	response := map[string]any{
		"access_token":      access,
		"token_type":        "bearer",
		"requires_password": requiresPW,
	}
	if omit {
		// Fixed-rotation mode: the old refresh token stays valid.
		b.mu.Lock()
		b.currentRefresh = body.RefreshToken
		b.mu.Unlock()
	} else {
		response["refresh_token"] = refresh
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

func (b *fakeBackend) handleProfile(w http.ResponseWriter, r *http.Request) {
	b.profileCalls.Add(1)

	if !b.authorized(r) {
		writeDetail(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"email":       testEmail,
		"name":        testName,
		"first_name":  "Student",
		"family_name": "User",
		"login_type":  "normal",
		"created_at":  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})
}

func (b *fakeBackend) handleLogout(w http.ResponseWriter, r *http.Request) {
	b.logoutCalls.Add(1)

	if !b.authorized(r) {
		writeDetail(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (b *fakeBackend) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed body")
		return
	}
	if body.Email == testEmail {
		writeDetail(w, http.StatusConflict, "Email already exists")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "User created successfully"})
}

func (b *fakeBackend) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(r) {
		writeDetail(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	var body UpdateProfileInput
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed body")
		return
	}
	if body.Password != "" {
		b.mu.Lock()
		b.requiresPW = false
		b.mu.Unlock()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "User information updated successfully"})
}

// handleData guards a representative dashboard endpoint. A query param
// "always401=1" simulates a resource-level revocation that no token fixes.
func (b *fakeBackend) handleData(w http.ResponseWriter, r *http.Request) {
	b.dataCalls.Add(1)

	if r.URL.Query().Get("always401") == "1" {
		writeDetail(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	if !b.authorized(r) {
		writeDetail(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	b.mu.Lock()
	b.dataAuths = append(b.dataAuths, r.Header.Get("Authorization"))
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Watchdog.Enabled = false
	cfg.Events.Enabled = false
	return cfg
}

func newTestClient(t *testing.T, b *fakeBackend, mutate ...func(*Builder)) (*Client, *store.Memory) {
	t.Helper()

	mem := store.NewMemory()
	builder := New().
		WithConfig(testConfig()).
		WithBaseURL(b.srv.URL).
		WithStore(mem)
	for _, m := range mutate {
		m(builder)
	}

	client, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(client.Close)
	return client, mem
}

// mustLogin establishes a session and returns the issued pair as stored.
func mustLogin(t *testing.T, c *Client, mem *store.Memory) (string, string) {
	t.Helper()

	if _, err := c.LoginPassword(context.Background(), testEmail, testPassword); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	access := readKey(t, mem, store.KeyAccessToken)
	refresh := readKey(t, mem, store.KeyRefreshToken)
	if access == "" || refresh == "" {
		t.Fatalf("login did not persist tokens: access=%q refresh=%q", access, refresh)
	}
	return access, refresh
}

func readKey(t *testing.T, s store.Store, key string) string {
	t.Helper()
	value, err := s.Read(context.Background(), key)
	if err != nil {
		t.Fatalf("store read %s failed: %v", key, err)
	}
	return value
}
