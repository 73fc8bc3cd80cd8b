package http

import (
	"testing"
	"time"

	"github.com/mdelcroix/courier/internal/auth"
	"github.com/mdelcroix/courier/internal/store"
	"github.com/mdelcroix/courier/internal/store/sqlite"
)

// createTestStore creates an in-memory SQLite store.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// createTestAuthService builds an auth service with a fixed test secret.
func createTestAuthService(t *testing.T, st store.Store, secret string) *auth.Service {
	t.Helper()

	return auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(secret),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	})
}
