package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *Redis {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s, err := NewRedis(client, "sess")
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	return s
}

// exerciseStore runs the shared contract: absent keys read as "", writes
// read back, Clear removes without error, clearing absent keys is a no-op.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if got, err := s.Read(ctx, KeyAccessToken); err != nil || got != "" {
		t.Fatalf("absent key: got (%q, %v), want (\"\", nil)", got, err)
	}

	if err := s.Write(ctx, KeyAccessToken, "tok-1"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Write(ctx, KeyRefreshToken, "ref-1"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got, _ := s.Read(ctx, KeyAccessToken); got != "tok-1" {
		t.Fatalf("read back: got %q", got)
	}

	if err := s.Write(ctx, KeyAccessToken, "tok-2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got, _ := s.Read(ctx, KeyAccessToken); got != "tok-2" {
		t.Fatalf("overwrite read back: got %q", got)
	}

	if err := s.Clear(ctx, SessionKeys()...); err != nil {
		t.Fatalf("clear: %v", err)
	}
	for _, key := range SessionKeys() {
		if got, _ := s.Read(ctx, key); got != "" {
			t.Fatalf("key %s survived clear: %q", key, got)
		}
	}

	if err := s.Clear(ctx, KeyIssuedAt); err != nil {
		t.Fatalf("clear absent key: %v", err)
	}
}

func TestMemoryStoreContract(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestFileStoreContract(t *testing.T) {
	f, err := NewFile(filepath.Join(t.TempDir(), "session.json"))
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	exerciseStore(t, f)
}

func TestRedisStoreContract(t *testing.T) {
	exerciseStore(t, newTestRedis(t))
}

func TestFileStoreCreatesParentAndRestrictsPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "session.json")
	f, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	if err := f.Write(context.Background(), KeyAccessToken, "tok"); err != nil {
		t.Fatalf("write: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("session file mode = %o, want 600", perm)
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	ctx := context.Background()

	first, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if err := first.Write(ctx, KeyRefreshToken, "ref-xyz"); err != nil {
		t.Fatalf("write: %v", err)
	}

	second, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if got, _ := second.Read(ctx, KeyRefreshToken); got != "ref-xyz" {
		t.Fatalf("reopened store read = %q", got)
	}
}

func TestFileStoreRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	f, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if _, err := f.Read(context.Background(), KeyAccessToken); err == nil {
		t.Fatal("expected decode error for corrupt document")
	}
}

func TestRedisStorePrefixesKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s, err := NewRedis(client, "dash")
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	if err := s.Write(context.Background(), KeyAccessToken, "tok"); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got, err := mr.Get("dash:" + KeyAccessToken); err != nil || got != "tok" {
		t.Fatalf("raw key lookup: (%q, %v)", got, err)
	}
}

func TestNewRedisRejectsNilClient(t *testing.T) {
	if _, err := NewRedis(nil, "x"); err == nil {
		t.Fatal("expected error for nil client")
	}
}
