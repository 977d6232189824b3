package testsupport

import (
	"context"
	"testing"

	"segue/internal/config"
	"segue/internal/queue"
)

// MustOpenStore opens a session store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewSession queues a fresh session for tests using the provided store.
func NewSession(t testing.TB, store *queue.Store, trackAPath, trackBPath, bundleJSON string) *queue.Session {
	t.Helper()

	session, err := store.NewSession(context.Background(), trackAPath, trackBPath, bundleJSON, "")
	if err != nil {
		t.Fatalf("store.NewSession: %v", err)
	}
	return session
}
