package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"fincrime_engine/internal/domain"
	"fincrime_engine/internal/repository"
	"fincrime_engine/pkg/validator"
)

const (
	blacklistSet        = "blacklisted_entities"
	blacklistInfoPrefix = "blacklist_info:"
)

// BlacklistRegistry keeps the set of flagged entities and a record per
// entity in the cache store. Entries never expire.
type BlacklistRegistry struct {
	store     repository.CacheStore
	validator *validator.TransferValidator
	now       func() time.Time
	logger    *slog.Logger
}

func NewBlacklistRegistry(store repository.CacheStore, now func() time.Time, logger *slog.Logger) *BlacklistRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &BlacklistRegistry{
		store:     store,
		validator: validator.NewTransferValidator(),
		now:       now,
		logger:    logger,
	}
}

// Add flags entityID. Adding an entity twice overwrites its record.
func (r *BlacklistRegistry) Add(ctx context.Context, entityID, reason string, riskScore float64) (*domain.BlacklistEntry, error) {
	if err := r.validator.ValidateAccountID(entityID); err != nil {
		return nil, err
	}
	if riskScore < 0 || riskScore > 100 {
		return nil, fmt.Errorf("%w: risk_score must be within [0, 100], got %v", validator.ErrInvalidParameter, riskScore)
	}
	if strings.TrimSpace(reason) == "" {
		reason = domain.DefaultBlacklistReason
	}

	entry := &domain.BlacklistEntry{
		EntityID:  entityID,
		Reason:    reason,
		RiskScore: riskScore,
		FlaggedAt: r.now().UTC(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encode blacklist entry: %w", err)
	}

	if err := r.store.SetAdd(ctx, blacklistSet, entityID); err != nil {
		return nil, err
	}
	if err := r.store.Set(ctx, blacklistInfoPrefix+entityID, raw, 0); err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "Entity blacklisted",
		slog.String("entity_id", entityID),
		slog.String("reason", reason),
		slog.Float64("risk_score", riskScore))

	return entry, nil
}

func (r *BlacklistRegistry) IsBlacklisted(ctx context.Context, entityID string) (bool, error) {
	return r.store.SetIsMember(ctx, blacklistSet, entityID)
}

// List returns the flagged entity ids in ascending order.
func (r *BlacklistRegistry) List(ctx context.Context) ([]string, error) {
	members, err := r.store.SetMembers(ctx, blacklistSet)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []string{}
	}
	slices.Sort(members)
	return members, nil
}

// Get returns the record of a flagged entity, or ErrNotFound.
func (r *BlacklistRegistry) Get(ctx context.Context, entityID string) (*domain.BlacklistEntry, error) {
	raw, err := r.store.Get(ctx, blacklistInfoPrefix+entityID)
	if errors.Is(err, repository.ErrCacheMiss) {
		return nil, fmt.Errorf("%w: blacklist entry %s", repository.ErrNotFound, entityID)
	}
	if err != nil {
		return nil, err
	}

	var entry domain.BlacklistEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("%w: decode blacklist entry %s: %w", repository.ErrCache, entityID, err)
	}
	return &entry, nil
}
