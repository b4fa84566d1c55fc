// Package seed generates synthetic transfer datasets mixing ordinary
// activity with typical laundering shapes.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"fincrime_engine/internal/domain"
	"fincrime_engine/internal/processor"
)

const (
	accountCount       = 100
	structuringCeiling = 9000.0
	structuringFloor   = 100.0
)

// Counts sizes a dataset.
type Counts struct {
	Normal      int
	Circular    int
	Layering    int
	Structuring int
}

func DefaultCounts() Counts {
	return Counts{Normal: 1000, Circular: 3, Layering: 2, Structuring: 5}
}

type Generator struct {
	rng      *rand.Rand
	accounts []string
	now      func() time.Time
}

// NewGenerator returns a deterministic generator for seed.
func NewGenerator(seed uint64, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	accounts := make([]string, accountCount)
	for i := range accounts {
		accounts[i] = fmt.Sprintf("ACC_%04d", i)
	}
	return &Generator{
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		accounts: accounts,
		now:      now,
	}
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func (g *Generator) currency() domain.Currency {
	return domain.Currencies[g.rng.IntN(len(domain.Currencies))]
}

// timestamp falls within the last 24 hours.
func (g *Generator) timestamp() time.Time {
	return g.now().Add(-time.Duration(1+g.rng.IntN(24*60)) * time.Minute).UTC()
}

// sample picks n distinct accounts not in exclude.
func (g *Generator) sample(n int, exclude map[string]bool) []string {
	pool := make([]string, 0, len(g.accounts))
	for _, a := range g.accounts {
		if !exclude[a] {
			pool = append(pool, a)
		}
	}
	g.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool[:min(n, len(pool))]
}

func (g *Generator) transfer(src, dst string, amount float64) processor.TransferRequest {
	return processor.TransferRequest{
		SourceID:  src,
		TargetID:  dst,
		Amount:    round2(amount),
		Currency:  g.currency(),
		Timestamp: g.timestamp(),
	}
}

func (g *Generator) Normal() processor.TransferRequest {
	pair := g.sample(2, nil)
	return g.transfer(pair[0], pair[1], g.uniform(1000, 50000))
}

// Circular moves roughly the same amount around n distinct accounts.
func (g *Generator) Circular(n int) []processor.TransferRequest {
	accounts := g.sample(n, nil)
	base := g.uniform(75000, 150000)

	out := make([]processor.TransferRequest, 0, len(accounts))
	for i := range accounts {
		out = append(out, g.transfer(accounts[i], accounts[(i+1)%len(accounts)], base*g.uniform(0.95, 1.05)))
	}
	return out
}

// Layering fans one source out into a binary tree of 3 to 5 layers.
func (g *Generator) Layering() []processor.TransferRequest {
	amount := g.uniform(200000, 500000)
	layers := 3 + g.rng.IntN(3)

	var out []processor.TransferRequest
	current := g.sample(1, nil)
	used := map[string]bool{current[0]: true}

	for layer := 0; layer < layers; layer++ {
		next := g.sample(len(current)*2, used)
		if len(next) < len(current)*2 {
			break
		}
		perTransfer := amount / float64(len(next))

		for i, src := range current {
			for _, dst := range next[2*i : 2*i+2] {
				out = append(out, g.transfer(src, dst, perTransfer*g.uniform(0.9, 1.1)))
			}
		}
		for _, a := range next {
			used[a] = true
		}
		current = next
		amount = perTransfer
	}
	return out
}

// Structuring splits a large sum into chunks below the reporting threshold.
func (g *Generator) Structuring() []processor.TransferRequest {
	pair := g.sample(2, nil)
	remaining := g.uniform(100000, 200000)

	var out []processor.TransferRequest
	for remaining >= structuringFloor {
		chunk := min(structuringCeiling, remaining*g.uniform(0.1, 0.3))
		chunk = max(chunk, structuringFloor)
		remaining -= chunk
		out = append(out, g.transfer(pair[0], pair[1], chunk))
	}
	return out
}

// Dataset builds a shuffled mix of every pattern.
func (g *Generator) Dataset(c Counts) []processor.TransferRequest {
	var out []processor.TransferRequest
	for range c.Normal {
		out = append(out, g.Normal())
	}
	for range c.Circular {
		out = append(out, g.Circular(3+g.rng.IntN(3))...)
	}
	for range c.Layering {
		out = append(out, g.Layering()...)
	}
	for range c.Structuring {
		out = append(out, g.Structuring()...)
	}
	g.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Apply ingests reqs and reports how many were accepted.
func Apply(ctx context.Context, tp *processor.TransferProcessor, reqs []processor.TransferRequest, logger *slog.Logger) (created, failed int) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, req := range reqs {
		if ctx.Err() != nil {
			break
		}
		if _, err := tp.CreateTransfer(ctx, req); err != nil {
			failed++
			logger.WarnContext(ctx, "Seed transfer rejected",
				slog.String("source_id", req.SourceID),
				slog.String("target_id", req.TargetID),
				slog.String("error", err.Error()))
			continue
		}
		created++
	}
	logger.InfoContext(ctx, "Seeding finished", slog.Int("created", created), slog.Int("failed", failed))
	return created, failed
}
