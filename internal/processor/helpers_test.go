package processor

import (
	"context"
	"math"
	"testing"
	"time"

	"fincrime_engine/internal/domain"
	"fincrime_engine/internal/repository/memory"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return baseTime }

func addTransfer(t *testing.T, g *memory.GraphStore, src, dst string, amount float64, ts time.Time) *domain.Transfer {
	t.Helper()
	tr := domain.NewTransfer(src, dst, amount, domain.CurrencyUSD, ts)
	if err := g.CreateTransfer(context.Background(), tr); err != nil {
		t.Fatalf("failed to create transfer %s->%s: %v", src, dst, err)
	}
	return tr
}

// triangle adds ACC_0001 -> ACC_0002 -> ACC_0003 -> ACC_0001.
func triangle(t *testing.T, g *memory.GraphStore, amount float64) {
	t.Helper()
	addTransfer(t, g, "ACC_0001", "ACC_0002", amount, baseTime.Add(-3*time.Hour))
	addTransfer(t, g, "ACC_0002", "ACC_0003", amount, baseTime.Add(-2*time.Hour))
	addTransfer(t, g, "ACC_0003", "ACC_0001", amount, baseTime.Add(-1*time.Hour))
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}
