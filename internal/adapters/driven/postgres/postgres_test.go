package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-docqa/internal/adapters/driven/storetest"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
)

// testDB connects to DOCQA_TEST_POSTGRES_URL and empties every table in
// the docqa_test schema.
// Tests are skipped when it is unset.
func testDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("DOCQA_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("DOCQA_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	cfg := DefaultConfig(url)
	cfg.Schema = "docqa_test"
	db, err := Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.InitSchema(ctx))
	_, err = db.ExecContext(ctx, `TRUNCATE documents, chunks, tasks`)
	require.NoError(t, err)
	return db
}

func TestDocumentStore(t *testing.T) {
	storetest.RunDocumentStore(t, func(t *testing.T) driven.DocumentStore {
		return NewDocumentStore(testDB(t))
	})
}

func TestTaskStore(t *testing.T) {
	storetest.RunTaskStore(t, func(t *testing.T) driven.TaskStore {
		return NewTaskStore(testDB(t))
	})
}

func TestInitSchema_Idempotent(t *testing.T) {
	db := testDB(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, db.InitSchema(context.Background()))
	}
	assert.NoError(t, db.Ping(context.Background()))

	var table string
	require.NoError(t, db.QueryRowContext(context.Background(),
		`SELECT to_regclass('docqa_test.documents')::text`).Scan(&table))
	assert.Equal(t, "docqa_test.documents", table)
}

func TestPing_UninitializedSchema(t *testing.T) {
	url := os.Getenv("DOCQA_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("DOCQA_TEST_POSTGRES_URL not set")
	}
	cfg := DefaultConfig(url)
	cfg.Schema = "docqa_never_initialized"
	db, err := Connect(context.Background(), cfg)
	require.NoError(t, err)
	defer db.Close()

	err = db.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docqa_never_initialized")
}

func TestAdvisoryLock(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	first := NewAdvisoryLock(db)
	second := NewAdvisoryLock(db)

	ok, err := first.Acquire(ctx, "task-cleanup", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx, "task-cleanup", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held on another session")

	require.NoError(t, first.Release(ctx, "task-cleanup"))
	ok, err = second.Acquire(ctx, "task-cleanup", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Release(ctx, "task-cleanup"))

	assert.NoError(t, first.Release(ctx, "never-held"))
}

func TestHashLockName(t *testing.T) {
	assert.Equal(t, hashLockName("a"), hashLockName("a"))
	assert.NotEqual(t, hashLockName("a"), hashLockName("b"))
}
