package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"fincrime_engine/internal/domain"
	"fincrime_engine/internal/graph"
	"fincrime_engine/internal/repository"
	"fincrime_engine/pkg/validator"
)

// GraphStore keeps the transfer graph in process memory.
type GraphStore struct {
	mu        sync.RWMutex
	accounts  map[string]*domain.Account
	transfers map[string]*domain.Transfer
	order     []string
	index     map[string][]string
	validator *validator.TransferValidator
}

func NewGraphStore() *GraphStore {
	return &GraphStore{
		accounts:  make(map[string]*domain.Account),
		transfers: make(map[string]*domain.Transfer),
		index:     make(map[string][]string),
		validator: validator.NewTransferValidator(),
	}
}

func (s *GraphStore) UpsertAccount(ctx context.Context, id string) (*domain.Account, error) {
	if err := s.validator.ValidateAccountID(id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc := *s.upsertLocked(id)
	return &acc, nil
}

func (s *GraphStore) upsertLocked(id string) *domain.Account {
	acc, exists := s.accounts[id]
	if !exists {
		acc = &domain.Account{ID: id, CreatedAt: time.Now().UTC()}
		s.accounts[id] = acc
	}
	return acc
}

func (s *GraphStore) CreateTransfer(ctx context.Context, t *domain.Transfer) error {
	if err := s.validator.ValidateTransfer(t); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transfers[t.ID]; exists {
		return fmt.Errorf("%w: transfer %s", repository.ErrDuplicate, t.ID)
	}

	s.upsertLocked(t.SourceID)
	s.upsertLocked(t.TargetID)

	stored := *t
	s.transfers[t.ID] = &stored
	s.order = append(s.order, t.ID)
	s.index[t.SourceID] = append(s.index[t.SourceID], t.ID)
	s.index[t.TargetID] = append(s.index[t.TargetID], t.ID)

	return nil
}

func (s *GraphStore) GetTransfer(ctx context.Context, id string) (*domain.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.transfers[id]
	if !exists {
		return nil, fmt.Errorf("%w: transfer %s", repository.ErrNotFound, id)
	}
	out := *t
	return &out, nil
}

func (s *GraphStore) SearchTransfers(ctx context.Context, f domain.TransferFilter) ([]*domain.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transfer
	for _, id := range s.order {
		t := s.transfers[id]
		if !f.Start.IsZero() && t.Timestamp.Before(f.Start) {
			continue
		}
		if !f.End.IsZero() && t.Timestamp.After(f.End) {
			continue
		}
		if t.Amount < f.MinAmount {
			continue
		}
		out := *t
		result = append(result, &out)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}

	return result, nil
}

func (s *GraphStore) FindCycles(ctx context.Context, q repository.CycleQuery) ([]domain.CyclePath, error) {
	s.mu.RLock()
	edges := make([]graph.EdgeInfo, 0, len(s.order))
	for i, id := range s.order {
		t := s.transfers[id]
		edges = append(edges, graph.EdgeInfo{ID: t.ID, Source: t.SourceID, Target: t.TargetID, Amount: t.Amount, Index: i})
	}
	s.mu.RUnlock()

	cycles := graph.NewSnapshot(edges).Cycles(graph.CycleOptions{
		MinAmount: q.MinAmount,
		MaxDepth:  q.MaxDepth,
		Limit:     q.Limit,
		Through:   q.Through,
	})

	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]domain.CyclePath, 0, len(cycles))
	for _, c := range cycles {
		path := domain.CyclePath{Accounts: c.Accounts}
		for _, e := range c.Edges {
			t := *s.transfers[e.ID]
			path.Transfers = append(path.Transfers, &t)
		}
		paths = append(paths, path)
	}

	return paths, nil
}

func (s *GraphStore) AccountTransferSummary(ctx context.Context, accountID string) (*domain.TransferSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.accounts[accountID]; !exists {
		return nil, fmt.Errorf("%w: account %s", repository.ErrNotFound, accountID)
	}

	summary := &domain.TransferSummary{AccountID: accountID}
	for _, id := range s.index[accountID] {
		t := s.transfers[id]
		if t.SourceID == accountID {
			summary.Outgoing = append(summary.Outgoing, t.Amount)
		}
		if t.TargetID == accountID {
			summary.Incoming = append(summary.Incoming, t.Amount)
		}
	}

	return summary, nil
}

func (s *GraphStore) AggregateWindow(ctx context.Context, start, end time.Time) (*domain.WindowAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var amounts []float64
	for _, id := range s.order {
		t := s.transfers[id]
		if !t.Timestamp.Before(start) && t.Timestamp.Before(end) {
			amounts = append(amounts, t.Amount)
		}
	}

	return domain.NewWindowAggregate(amounts), nil
}

func (s *GraphStore) Ping(ctx context.Context) error {
	return nil
}

func (s *GraphStore) Close() error {
	return nil
}
