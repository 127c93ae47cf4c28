package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisStore starts a miniredis instance and connects a store to it
func setupRedisStore(t *testing.T, opts Options) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), "redis://"+mr.Addr(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestRedisStore(t *testing.T) {
	s, _ := setupRedisStore(t, Options{History: 3})
	testStoreContract(t, s)
}

func TestRedisStore_TTL(t *testing.T) {
	s, mr := setupRedisStore(t, Options{History: 3, TTL: time.Hour})
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testReport("checkout", 1)))
	assert.Equal(t, time.Hour, mr.TTL("eventlens:report:checkout:latest"))
	assert.Equal(t, time.Hour, mr.TTL("eventlens:report:checkout:runs"))

	mr.FastForward(2 * time.Hour)
	_, err := s.Latest(ctx, "checkout")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_CorruptLatest(t *testing.T) {
	s, mr := setupRedisStore(t, Options{})
	require.NoError(t, mr.Set("eventlens:report:checkout:latest", "{broken"))

	_, err := s.Latest(context.Background(), "checkout")
	assert.Error(t, err)
	assert.False(t, mr.Exists("eventlens:report:checkout:latest"))
}

func TestNewRedisStore_Errors(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr string
	}{
		{"invalid URL", "invalid://url", "invalid redis URL"},
		{"connection failure", "redis://127.0.0.1:1", "failed to connect to redis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRedisStore(context.Background(), tt.url, Options{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
