package seed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincrime_engine/internal/processor"
	"fincrime_engine/internal/repository/memory"
)

var seedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestGenerator() *Generator {
	return NewGenerator(42, func() time.Time { return seedNow })
}

func TestGenerator_Deterministic(t *testing.T) {
	a := NewGenerator(7, func() time.Time { return seedNow }).Dataset(DefaultCounts())
	b := NewGenerator(7, func() time.Time { return seedNow }).Dataset(DefaultCounts())
	assert.Equal(t, a, b)
}

func TestGenerator_Normal(t *testing.T) {
	g := newTestGenerator()
	for range 200 {
		tr := g.Normal()
		assert.NotEqual(t, tr.SourceID, tr.TargetID)
		assert.GreaterOrEqual(t, tr.Amount, 1000.0)
		assert.LessOrEqual(t, tr.Amount, 50000.0)
		assert.True(t, tr.Timestamp.Before(seedNow))
		assert.False(t, tr.Timestamp.Before(seedNow.Add(-24*time.Hour)))
	}
}

func TestGenerator_CircularClosesLoop(t *testing.T) {
	g := newTestGenerator()
	for n := 3; n <= 5; n++ {
		legs := g.Circular(n)
		require.Len(t, legs, n)
		for i, leg := range legs {
			assert.Equal(t, leg.TargetID, legs[(i+1)%n].SourceID)
			assert.GreaterOrEqual(t, leg.Amount, 75000*0.95)
			assert.LessOrEqual(t, leg.Amount, 150000*1.05)
		}
	}
}

func TestGenerator_Layering(t *testing.T) {
	g := newTestGenerator()
	legs := g.Layering()

	// 2 + 4 + 8 transfers at least.
	require.GreaterOrEqual(t, len(legs), 14)
	targets := make(map[string]bool)
	for _, leg := range legs {
		assert.False(t, targets[leg.TargetID], "account %s receives twice", leg.TargetID)
		targets[leg.TargetID] = true
	}
}

func TestGenerator_StructuringStaysBelowThreshold(t *testing.T) {
	g := newTestGenerator()
	legs := g.Structuring()

	require.NotEmpty(t, legs)
	for _, leg := range legs {
		assert.LessOrEqual(t, leg.Amount, structuringCeiling)
		assert.Greater(t, leg.Amount, 0.0)
		assert.Equal(t, legs[0].SourceID, leg.SourceID)
	}
}

func TestApply(t *testing.T) {
	g := newTestGenerator()
	reqs := g.Dataset(Counts{Normal: 20, Circular: 2})

	graph := memory.NewGraphStore()
	tp := processor.NewTransferProcessor(graph, memory.NewCacheStore(), nil, nil, nil)

	created, failed := Apply(context.Background(), tp, reqs, nil)
	assert.Equal(t, len(reqs), created)
	assert.Zero(t, failed)

	f := processor.NewCycleFinder(graph, nil)
	patterns, err := f.FindCircularPatterns(context.Background(), 70000, 5, 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(patterns), 2)
}
