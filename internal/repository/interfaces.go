package repository

import (
	"context"
	"errors"
	"time"

	"fincrime_engine/internal/domain"
)

// CycleQuery selects closed transfer paths. Every transfer on a returned
// path has Amount >= MinAmount and the path has 1..MaxDepth transfers.
// When Through is set only cycles starting and ending at that account are
// returned; otherwise each cycle is reported once, starting at its
// lexicographically smallest account.
type CycleQuery struct {
	MinAmount float64
	MaxDepth  int
	Limit     int
	Through   string
}

// GraphStore is the only component that talks to the transfer graph.
type GraphStore interface {
	UpsertAccount(ctx context.Context, id string) (*domain.Account, error)
	CreateTransfer(ctx context.Context, transfer *domain.Transfer) error
	GetTransfer(ctx context.Context, id string) (*domain.Transfer, error)
	SearchTransfers(ctx context.Context, filter domain.TransferFilter) ([]*domain.Transfer, error)
	// FindCycles returns paths ordered by ascending length.
	FindCycles(ctx context.Context, query CycleQuery) ([]domain.CyclePath, error)
	AccountTransferSummary(ctx context.Context, accountID string) (*domain.TransferSummary, error)
	// AggregateWindow covers transfers with start <= timestamp < end.
	AggregateWindow(ctx context.Context, start, end time.Time) (*domain.WindowAggregate, error)
	Ping(ctx context.Context) error
	Close() error
}

// CacheStore is a key/value store with expiry, string sets and capped lists.
type CacheStore interface {
	// Get returns ErrCacheMiss for absent or expired keys.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value; ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetAdd(ctx context.Context, set, member string) error
	SetMembers(ctx context.Context, set string) ([]string, error)
	SetIsMember(ctx context.Context, set, member string) (bool, error)
	// Scan returns every live key starting with prefix.
	Scan(ctx context.Context, prefix string) ([]string, error)
	// ListPush prepends value and trims the list to maxLen entries.
	ListPush(ctx context.Context, key string, value []byte, maxLen int) error
	ListRange(ctx context.Context, key string, n int) ([][]byte, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
	ErrStore     = errors.New("graph store failure")
	ErrCache     = errors.New("cache store failure")
	ErrCacheMiss = errors.New("cache miss")
)
