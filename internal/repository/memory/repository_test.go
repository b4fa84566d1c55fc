package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"fincrime_engine/internal/domain"
	"fincrime_engine/internal/repository"
	"fincrime_engine/pkg/validator"
)

func mustTransfer(t *testing.T, s *GraphStore, id, src, dst string, amount float64, ts time.Time) {
	t.Helper()
	tr := &domain.Transfer{ID: id, SourceID: src, TargetID: dst, Amount: amount, Currency: domain.CurrencyUSD, Timestamp: ts}
	if err := s.CreateTransfer(context.Background(), tr); err != nil {
		t.Fatalf("create transfer %s failed: %v", id, err)
	}
}

func TestGraphStore_CreateAndGetTransfer(t *testing.T) {
	s := NewGraphStore()
	now := time.Now().UTC()

	mustTransfer(t, s, "t1", "ACC_0001", "ACC_0002", 150, now)

	got, err := s.GetTransfer(context.Background(), "t1")
	if err != nil {
		t.Fatalf("unexpected error on GetTransfer: %v", err)
	}
	if got.SourceID != "ACC_0001" || got.TargetID != "ACC_0002" || got.Amount != 150 {
		t.Errorf("unexpected transfer %+v", got)
	}

	if _, err := s.AccountTransferSummary(context.Background(), "ACC_0002"); err != nil {
		t.Errorf("expected target account to be created implicitly, got %v", err)
	}
}

func TestGraphStore_CreateTransferValidation(t *testing.T) {
	s := NewGraphStore()
	tr := &domain.Transfer{ID: "t1", SourceID: "ACC_0001", TargetID: "ACC_0001", Amount: 10, Currency: domain.CurrencyUSD, Timestamp: time.Now()}

	err := s.CreateTransfer(context.Background(), tr)

	if !errors.Is(err, validator.ErrSelfTransfer) {
		t.Fatalf("expected self transfer error, got %v", err)
	}
	if _, err := s.GetTransfer(context.Background(), "t1"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("rejected transfer must not be stored, got %v", err)
	}
}

func TestGraphStore_DuplicateTransfer(t *testing.T) {
	s := NewGraphStore()
	mustTransfer(t, s, "t1", "ACC_0001", "ACC_0002", 10, time.Now())

	err := s.CreateTransfer(context.Background(), &domain.Transfer{
		ID: "t1", SourceID: "ACC_0003", TargetID: "ACC_0004", Amount: 10, Currency: domain.CurrencyEUR, Timestamp: time.Now(),
	})

	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestGraphStore_GetTransferNotFound(t *testing.T) {
	s := NewGraphStore()

	_, err := s.GetTransfer(context.Background(), "missing")

	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGraphStore_UpsertAccountIsIdempotent(t *testing.T) {
	s := NewGraphStore()
	ctx := context.Background()

	first, err := s.UpsertAccount(ctx, "ACC_0007")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := s.UpsertAccount(ctx, "ACC_0007")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first.CreatedAt.Equal(second.CreatedAt) {
		t.Errorf("expected upsert to keep the original account")
	}

	if _, err := s.UpsertAccount(ctx, "bogus"); !errors.Is(err, validator.ErrInvalidAccountID) {
		t.Errorf("expected invalid account id, got %v", err)
	}
}

func TestGraphStore_AccountTransferSummary(t *testing.T) {
	s := NewGraphStore()
	now := time.Now()
	mustTransfer(t, s, "t1", "ACC_0001", "ACC_0002", 100, now)
	mustTransfer(t, s, "t2", "ACC_0002", "ACC_0001", 40, now)
	mustTransfer(t, s, "t3", "ACC_0001", "ACC_0003", 60, now)

	summary, err := s.AccountTransferSummary(context.Background(), "ACC_0001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.TotalOutgoing() != 160 || summary.TotalIncoming() != 40 {
		t.Errorf("expected out=160 in=40, got out=%v in=%v", summary.TotalOutgoing(), summary.TotalIncoming())
	}
	if _, err := s.AccountTransferSummary(context.Background(), "ACC_0099"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected not found for unknown account, got %v", err)
	}
}

func TestGraphStore_AggregateWindowIsHalfOpen(t *testing.T) {
	s := NewGraphStore()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	mustTransfer(t, s, "t1", "ACC_0001", "ACC_0002", 100, start)
	mustTransfer(t, s, "t2", "ACC_0001", "ACC_0002", 300, start.Add(30*time.Minute))
	mustTransfer(t, s, "t3", "ACC_0001", "ACC_0002", 999, end)
	mustTransfer(t, s, "t4", "ACC_0001", "ACC_0002", 999, start.Add(-time.Second))

	agg, err := s.AggregateWindow(context.Background(), start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if agg.Count != 2 || agg.Total != 400 || agg.Mean != 200 {
		t.Errorf("expected count=2 total=400 mean=200, got %+v", agg)
	}
}

func TestGraphStore_SearchTransfers(t *testing.T) {
	s := NewGraphStore()
	base := time.Now().Add(-time.Hour)
	mustTransfer(t, s, "small", "ACC_0001", "ACC_0002", 10, base)
	mustTransfer(t, s, "old", "ACC_0001", "ACC_0002", 5000, base.Add(time.Minute))
	mustTransfer(t, s, "new", "ACC_0002", "ACC_0003", 7000, base.Add(2*time.Minute))

	got, err := s.SearchTransfers(context.Background(), domain.TransferFilter{MinAmount: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "new" || got[1].ID != "old" {
		t.Fatalf("expected [new old], got %v", ids(got))
	}

	limited, _ := s.SearchTransfers(context.Background(), domain.TransferFilter{Limit: 1})
	if len(limited) != 1 || limited[0].ID != "new" {
		t.Errorf("expected newest transfer only, got %v", ids(limited))
	}
}

func TestGraphStore_FindCycles(t *testing.T) {
	s := NewGraphStore()
	now := time.Now()
	mustTransfer(t, s, "t1", "ACC_0002", "ACC_0003", 50000, now)
	mustTransfer(t, s, "t2", "ACC_0003", "ACC_0001", 50000, now)
	mustTransfer(t, s, "t3", "ACC_0001", "ACC_0002", 50000, now)

	paths, err := s.FindCycles(context.Background(), repository.CycleQuery{MinAmount: 10000, MaxDepth: 4, Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected exactly one cycle, got %d", len(paths))
	}
	if paths[0].Accounts[0] != "ACC_0001" || paths[0].Transfers[0].ID != "t3" {
		t.Errorf("expected cycle rooted at ACC_0001, got %+v", paths[0].Accounts)
	}

	through, _ := s.FindCycles(context.Background(), repository.CycleQuery{MaxDepth: 4, Limit: 10, Through: "ACC_0003"})
	if len(through) != 1 || through[0].Accounts[0] != "ACC_0003" {
		t.Errorf("expected cycle rooted at ACC_0003, got %+v", through)
	}
}

func ids(ts []*domain.Transfer) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}
