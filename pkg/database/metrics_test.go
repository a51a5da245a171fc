package database

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolStatsCollector_Describe(t *testing.T) {
	c := newPoolStatsCollector(nil, "storefront")

	ch := make(chan *prometheus.Desc, 16)
	c.Describe(ch)
	close(ch)

	var names []string
	for d := range ch {
		names = append(names, d.String())
	}
	assert.Len(t, names, 8)
	for _, n := range names {
		assert.True(t, strings.Contains(n, "storefront_db_pool_"), n)
	}
}

func TestPoolStatsCollector_CollectFromLazyPool(t *testing.T) {
	// No connection is attempted until the first acquire.
	pool, err := pgxpool.New(context.Background(), "postgres://u:p@127.0.0.1:1/db?sslmode=disable")
	require.NoError(t, err)
	defer pool.Close()

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, RegisterPoolMetrics(reg, pool, "storefront"))

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 8, count)
}
