package processor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"fincrime_engine/internal/domain"
	"fincrime_engine/internal/repository"
	"fincrime_engine/internal/repository/memory"
	"fincrime_engine/pkg/metrics"
	"fincrime_engine/pkg/validator"
)

func newTransferProcessor() (*TransferProcessor, *memory.GraphStore) {
	g := memory.NewGraphStore()
	return NewTransferProcessor(g, memory.NewCacheStore(), metrics.NewMetricsCollector(nil), fixedNow, nil), g
}

func TestTransferProcessor_CreateTransfer(t *testing.T) {
	p, g := newTransferProcessor()
	ctx := context.Background()

	tr, err := p.CreateTransfer(ctx, TransferRequest{
		SourceID: "ACC_0001",
		TargetID: "ACC_0002",
		Amount:   1500,
		Currency: domain.CurrencyEUR,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.ID == "" {
		t.Error("expected generated id")
	}
	if !tr.Timestamp.Equal(baseTime) {
		t.Errorf("expected timestamp to default to now, got %v", tr.Timestamp)
	}

	stored, err := p.GetTransfer(ctx, tr.ID)
	if err != nil || stored.Amount != 1500 {
		t.Fatalf("expected stored transfer, got %+v err=%v", stored, err)
	}
	if _, err := g.AccountTransferSummary(ctx, "ACC_0002"); err != nil {
		t.Fatalf("expected target account to be created, got %v", err)
	}

	recent, err := p.RecentTransfers(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != tr.ID {
		t.Fatalf("expected transfer in recent feed, got %+v", recent)
	}
}

func TestTransferProcessor_Rejections(t *testing.T) {
	p, _ := newTransferProcessor()
	ctx := context.Background()

	tests := []struct {
		name string
		req  TransferRequest
		want error
	}{
		{"self transfer", TransferRequest{SourceID: "ACC_0001", TargetID: "ACC_0001", Amount: 10, Currency: domain.CurrencyUSD}, validator.ErrSelfTransfer},
		{"zero amount", TransferRequest{SourceID: "ACC_0001", TargetID: "ACC_0002", Amount: 0, Currency: domain.CurrencyUSD}, validator.ErrInvalidAmount},
		{"bad currency", TransferRequest{SourceID: "ACC_0001", TargetID: "ACC_0002", Amount: 10, Currency: "JPY"}, validator.ErrInvalidCurrency},
		{"bad account", TransferRequest{SourceID: "acc1", TargetID: "ACC_0002", Amount: 10, Currency: domain.CurrencyUSD}, validator.ErrInvalidAccountID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.CreateTransfer(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	recent, err := p.RecentTransfers(ctx, 10)
	if err != nil || len(recent) != 0 {
		t.Fatalf("expected rejected transfers to stay out of the feed, got %d err=%v", len(recent), err)
	}
}

func TestTransferProcessor_GetMissing(t *testing.T) {
	p, _ := newTransferProcessor()
	if _, err := p.GetTransfer(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransferProcessor_SearchTransfers(t *testing.T) {
	p, g := newTransferProcessor()
	ctx := context.Background()

	for i := 0; i < 120; i++ {
		addTransfer(t, g, "ACC_0001", "ACC_0002", float64(100+i), baseTime.Add(-time.Duration(120-i)*time.Minute))
	}

	all, err := p.SearchTransfers(ctx, domain.TransferFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != MaxSearchResults {
		t.Fatalf("expected %d results, got %d", MaxSearchResults, len(all))
	}
	if all[0].Amount != 219 {
		t.Fatalf("expected newest first, got amount %v", all[0].Amount)
	}

	big, err := p.SearchTransfers(ctx, domain.TransferFilter{MinAmount: 210})
	if err != nil || len(big) != 10 {
		t.Fatalf("expected 10 transfers >= 210, got %d err=%v", len(big), err)
	}

	_, err = p.SearchTransfers(ctx, domain.TransferFilter{Start: baseTime, End: baseTime.Add(-time.Hour)})
	if !errors.Is(err, validator.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter for inverted range, got %v", err)
	}
}

func TestTransferProcessor_RecentFeedIsCapped(t *testing.T) {
	p, _ := newTransferProcessor()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := p.CreateTransfer(ctx, TransferRequest{
			SourceID:  "ACC_0001",
			TargetID:  fmt.Sprintf("ACC_%04d", i+2),
			Amount:    float64(i + 1),
			Currency:  domain.CurrencyUSD,
			Timestamp: baseTime.Add(-time.Duration(5-i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	recent, err := p.RecentTransfers(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recent) != 3 || recent[0].Amount != 5 {
		t.Fatalf("expected 3 newest transfers, got %+v", recent)
	}
}

func TestTransferProcessor_BuildNetwork(t *testing.T) {
	p, g := newTransferProcessor()
	ctx := context.Background()

	addTransfer(t, g, "ACC_0001", "ACC_0002", 60000, baseTime.Add(-3*time.Hour))
	addTransfer(t, g, "ACC_0001", "ACC_0002", 70000, baseTime.Add(-2*time.Hour))
	addTransfer(t, g, "ACC_0002", "ACC_0003", 80000, baseTime.Add(-1*time.Hour))
	addTransfer(t, g, "ACC_0003", "ACC_0004", 100, baseTime.Add(-1*time.Hour))

	n, err := p.BuildNetwork(ctx, DefaultNetworkMinAmount)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(n.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %v", n.Nodes)
	}
	if len(n.Edges) != 2 {
		t.Fatalf("expected 2 edges, got %+v", n.Edges)
	}
	first := n.Edges[0]
	if first.SourceID != "ACC_0001" || first.Amount != 130000 || first.Transfers != 2 {
		t.Fatalf("expected merged parallel edge, got %+v", first)
	}
}
