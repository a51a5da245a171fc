package database

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryBackoff_ExponentialWithJitter(t *testing.T) {
	for attempt := 0; attempt < 3; attempt++ {
		base := defaultRetryBaseWait << attempt
		lo := time.Duration(float64(base) * (1 - retryJitterFraction))
		hi := time.Duration(float64(base) * (1 + retryJitterFraction))

		for i := 0; i < 20; i++ {
			d := retryBackoff(attempt)
			assert.GreaterOrEqual(t, d, lo)
			assert.LessOrEqual(t, d, hi)
		}
	}
	assert.Positive(t, retryBackoff(0))
	assert.LessOrEqual(t, retryBackoff(-3), time.Duration(float64(defaultRetryBaseWait)*(1+retryJitterFraction)))
}

func TestIsConnectionError(t *testing.T) {
	assert.False(t, isConnectionError(nil))
	assert.True(t, isConnectionError(errors.New("dial tcp 127.0.0.1:5432: connection refused")))
	assert.True(t, isConnectionError(errors.New("connection reset by peer")))
	assert.True(t, isConnectionError(errors.New("unexpected EOF")))
	assert.False(t, isConnectionError(errors.New("syntax error at or near \"TABLE\"")))
	assert.False(t, isConnectionError(errors.New("duplicate key value violates unique constraint")))
}

func TestSleepCtx_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))
}

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := DefaultPostgresConfig()
	cfg.Host = "db"
	assert.Equal(t, "postgres://storefront:storefront@db:5432/storefront?sslmode=disable", cfg.DSN())
}

func TestNewPostgresPool_InvalidDSN(t *testing.T) {
	cfg := DefaultPostgresConfig()
	cfg.Port = -1
	cfg.Host = "%%"
	_, err := NewPostgresPool(context.Background(), &cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse postgres config")
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	cfg := DefaultRedisConfig()
	cfg.Host = mr.Host()
	cfg.Port = port

	client, err := NewRedisClient(context.Background(), cfg)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	port, _ := strconv.Atoi(mr.Port())
	mr.Close()

	cfg := DefaultRedisConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = port
	cfg.DialTimeout = 200 * time.Millisecond

	_, err := NewRedisClient(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis")
}
