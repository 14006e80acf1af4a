package ranking

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/model"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/postgres"
)

func TestRankDefaultsToWorst(t *testing.T) {
	r := New(map[int]int{1: 0, 2: 300, 3: -4})
	assert.Equal(t, 0, r.Rank(1))
	assert.Equal(t, model.MaxRank, r.Rank(2))
	assert.Equal(t, 0, r.Rank(3))
	assert.Equal(t, model.MaxRank, r.Rank(99))

	var nilRankings *DomainRankings
	assert.Equal(t, model.MaxRank, nilRankings.Rank(1))
	assert.Equal(t, 0, nilRankings.Size())
}

func TestBias(t *testing.T) {
	r := New(map[int]int{7: 5})
	id := model.EncodeDocID(7, 42)
	biased := r.Bias(id)
	assert.Equal(t, 5, model.Rank(biased))
	assert.Equal(t, id, model.RemoveRank(biased))
}

func TestLoadFromPostgres(t *testing.T) {
	port, _ := strconv.Atoi(envOrDefault("TEST_POSTGRES_PORT", "5432"))
	// Temp tables live on a single connection.
	client, err := postgres.New(config.PostgresConfig{
		Host:         envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:         port,
		Database:     envOrDefault("TEST_POSTGRES_DB", "edgeindex_test"),
		User:         envOrDefault("TEST_POSTGRES_USER", "edgeindex"),
		Password:     envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:      "disable",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	_, err = client.DB.ExecContext(ctx, `CREATE TEMP TABLE domain_ranking (domain_id INT PRIMARY KEY, rank INT NOT NULL)`)
	require.NoError(t, err)
	_, err = client.DB.ExecContext(ctx, `INSERT INTO domain_ranking VALUES (1, 3), (2, 90)`)
	require.NoError(t, err)

	r, err := LoadFromPostgres(ctx, client.DB)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Size())
	assert.Equal(t, 90, r.Rank(2))
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
