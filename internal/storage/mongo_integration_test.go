package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestMongo(t *testing.T) (*MongoBackend, func()) {
	if testing.Short() {
		t.Skip("skipping mongo integration test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb", 10*time.Second)
	require.NoError(t, err)

	cleanup := func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return NewMongoBackend(db, "carts"), cleanup
}

func TestConnectMongoDB_UnreachableHost(t *testing.T) {
	_, err := ConnectMongoDB(context.Background(), "mongodb://127.0.0.1:1", "testdb", 200*time.Millisecond)
	require.Error(t, err)
}

func TestMongoBackend_RoundTrip(t *testing.T) {
	backend, cleanup := setupTestMongo(t)
	defer cleanup()
	ctx := context.Background()

	_, err := backend.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, backend.Set(ctx, "sess-1", `{"version":2,"items":[]}`))

	value, err := backend.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, `{"version":2,"items":[]}`, value)

	// second set upserts, not duplicates
	require.NoError(t, backend.Set(ctx, "sess-1", "updated"))
	value, err = backend.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "updated", value)

	require.NoError(t, backend.Remove(ctx, "sess-1"))
	_, err = backend.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
