package neo4j

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincrime_engine/internal/domain"
	"fincrime_engine/internal/repository"
)

func TestCycleFromRecord(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	accounts := []any{"ACC_0001", "ACC_0002", "ACC_0001"}
	transfers := []any{
		map[string]any{"id": "t1", "amount": 75000.0, "currency": "USD", "timestamp": ts},
		map[string]any{"id": "t2", "amount": int64(74000), "currency": "EUR", "timestamp": ts.Add(time.Hour)},
	}

	path, err := cycleFromRecord(accounts, transfers)
	require.NoError(t, err)

	assert.Equal(t, []string{"ACC_0001", "ACC_0002", "ACC_0001"}, path.Accounts)
	require.Len(t, path.Transfers, 2)
	assert.Equal(t, "ACC_0002", path.Transfers[1].SourceID)
	assert.Equal(t, "ACC_0001", path.Transfers[1].TargetID)
	assert.Equal(t, 74000.0, path.Transfers[1].Amount)
	assert.Equal(t, domain.CurrencyEUR, path.Transfers[1].Currency)
}

func TestCycleFromRecord_Malformed(t *testing.T) {
	_, err := cycleFromRecord([]any{"ACC_0001"}, []any{map[string]any{}})
	assert.True(t, errors.Is(err, repository.ErrStore))

	_, err = cycleFromRecord([]any{"ACC_0001", "ACC_0002"}, []any{map[string]any{"id": "t1", "amount": "lots"}})
	assert.True(t, errors.Is(err, repository.ErrStore))
}

func TestToFloats(t *testing.T) {
	got, err := toFloats([]any{1.5, int64(2)})
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2}, got)

	_, err = toFloats([]any{"x"})
	assert.Error(t, err)
}

func TestCycleCypher(t *testing.T) {
	q := cycleCypher(4, true)
	assert.Contains(t, q, "[:TRANSFER*1..4]")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(q), "LIMIT $limit"))
	assert.NotContains(t, cycleCypher(3, false), "LIMIT")
}
