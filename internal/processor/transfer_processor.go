package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"fincrime_engine/internal/domain"
	"fincrime_engine/internal/repository"
	"fincrime_engine/pkg/metrics"
	"fincrime_engine/pkg/validator"
)

const (
	recentTransfersKey = "recent_transfers"
	// RecentTransfersCap bounds the recent transfers feed.
	RecentTransfersCap = 1000
	// MaxSearchResults bounds a transfer search.
	MaxSearchResults = 100
)

// TransferRequest is the input of CreateTransfer. A zero Timestamp means now.
type TransferRequest struct {
	SourceID  string
	TargetID  string
	Amount    float64
	Currency  domain.Currency
	Timestamp time.Time
}

// TransferProcessor ingests transfers into the graph and keeps the recent
// transfers feed.
type TransferProcessor struct {
	graph     repository.GraphStore
	cache     repository.CacheStore
	validator *validator.TransferValidator
	metrics   *metrics.MetricsCollector
	now       func() time.Time
	logger    *slog.Logger
}

func NewTransferProcessor(
	graph repository.GraphStore,
	cache repository.CacheStore,
	collector *metrics.MetricsCollector,
	now func() time.Time,
	logger *slog.Logger,
) *TransferProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &TransferProcessor{
		graph:     graph,
		cache:     cache,
		validator: validator.NewTransferValidator(),
		metrics:   collector,
		now:       now,
		logger:    logger,
	}
}

func (p *TransferProcessor) recordTransfer(success bool) {
	if p.metrics != nil {
		p.metrics.RecordTransfer(success)
	}
}

// CreateTransfer validates and stores a transfer. Both accounts are created
// on first use.
func (p *TransferProcessor) CreateTransfer(ctx context.Context, req TransferRequest) (*domain.Transfer, error) {
	ts := req.Timestamp
	if ts.IsZero() {
		ts = p.now()
	}
	t := domain.NewTransfer(req.SourceID, req.TargetID, req.Amount, req.Currency, ts)

	if err := p.validator.ValidateTransfer(t); err != nil {
		p.recordTransfer(false)
		return nil, err
	}

	if err := p.graph.CreateTransfer(ctx, t); err != nil {
		p.recordTransfer(false)
		return nil, fmt.Errorf("failed to store transfer: %w", err)
	}
	p.recordTransfer(true)

	// The feed is best effort: the transfer is already durable.
	if raw, err := json.Marshal(t); err == nil {
		if err := p.cache.ListPush(ctx, recentTransfersKey, raw, RecentTransfersCap); err != nil {
			p.logger.WarnContext(ctx, "Failed to update recent transfers feed",
				slog.String("transfer_id", t.ID),
				slog.Any("error", err))
		}
	}

	p.logger.InfoContext(ctx, "Transfer created",
		slog.String("transfer_id", t.ID),
		slog.String("source_id", t.SourceID),
		slog.String("target_id", t.TargetID),
		slog.Float64("amount", t.Amount),
		slog.String("currency", string(t.Currency)))

	return t, nil
}

func (p *TransferProcessor) GetTransfer(ctx context.Context, id string) (*domain.Transfer, error) {
	return p.graph.GetTransfer(ctx, id)
}

// SearchTransfers returns matching transfers, newest first. The limit is
// forced into 1..MaxSearchResults.
func (p *TransferProcessor) SearchTransfers(ctx context.Context, filter domain.TransferFilter) ([]*domain.Transfer, error) {
	if err := validator.NonNegative("min_amount", filter.MinAmount); err != nil {
		return nil, err
	}
	if !filter.Start.IsZero() && !filter.End.IsZero() && filter.End.Before(filter.Start) {
		return nil, fmt.Errorf("%w: end_date precedes start_date", validator.ErrInvalidParameter)
	}
	if filter.Limit <= 0 || filter.Limit > MaxSearchResults {
		filter.Limit = MaxSearchResults
	}

	transfers, err := p.graph.SearchTransfers(ctx, filter)
	if err != nil {
		return nil, err
	}
	if transfers == nil {
		transfers = []*domain.Transfer{}
	}
	return transfers, nil
}

// RecentTransfers returns up to n transfers from the feed, newest first.
func (p *TransferProcessor) RecentTransfers(ctx context.Context, n int) ([]*domain.Transfer, error) {
	if n <= 0 || n > RecentTransfersCap {
		n = MaxSearchResults
	}

	raws, err := p.cache.ListRange(ctx, recentTransfersKey, n)
	if err != nil {
		return nil, err
	}

	transfers := make([]*domain.Transfer, 0, len(raws))
	for _, raw := range raws {
		var t domain.Transfer
		if err := json.Unmarshal(raw, &t); err != nil {
			p.logger.WarnContext(ctx, "Skipping undecodable feed entry", slog.Any("error", err))
			continue
		}
		transfers = append(transfers, &t)
	}
	return transfers, nil
}
