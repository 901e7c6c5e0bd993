package database

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/victorivanov/accord/internal/models"
)

// testPool returns a pgxpool.Pool connected to the test database.
// It skips the test if DATABASE_URL is not set.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

// testIDCounter provides unique IDs across all tests in the package.
// Starts well above zero to avoid conflicts with any existing data.
var testIDCounter int64 = 100000

func nextID() int64 {
	return atomic.AddInt64(&testIDCounter, 1)
}

// createTestServer inserts a server and registers a cleanup that removes
// it; the schema cascades to categories, channels, roles, and assignments.
func createTestServer(t *testing.T, repo ServerRepository) *models.Server {
	t.Helper()
	ctx := context.Background()
	server := &models.Server{
		ID:        nextID(),
		Name:      "Test Server",
		OwnerID:   nextID(),
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.Create(ctx, server); err != nil {
		t.Fatalf("creating test server: %v", err)
	}
	t.Cleanup(func() { _ = repo.Delete(ctx, server.ID) })
	return server
}
