// Package postgres stores the transfer graph in PostgreSQL and runs the
// bounded cycle search as a recursive CTE.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"

	"fincrime_engine/internal/domain"
	"fincrime_engine/internal/repository"
	"fincrime_engine/migrations"
	"fincrime_engine/pkg/validator"
)

var _ repository.GraphStore = (*GraphStore)(nil)

const uniqueViolation = "23505"

type GraphStore struct {
	db        *sql.DB
	validator *validator.TransferValidator
	logger    *slog.Logger
}

// Open connects to databaseURL and verifies the connection.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*GraphStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", repository.ErrStore, err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: connect to database: %w", repository.ErrStore, err)
	}

	return NewGraphStore(db, logger), nil
}

func NewGraphStore(db *sql.DB, logger *slog.Logger) *GraphStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphStore{
		db:        db,
		validator: validator.NewTransferValidator(),
		logger:    logger,
	}
}

// Migrate applies every pending schema migration.
func (s *GraphStore) Migrate(ctx context.Context) error {
	return s.RunMigration(ctx, "up")
}

// RunMigration runs a goose command such as "status" or "down".
func (s *GraphStore) RunMigration(ctx context.Context, command string, args ...string) error {
	return migrations.Run(ctx, s.db, command, args...)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", repository.ErrStore, op, err)
}

func (s *GraphStore) UpsertAccount(ctx context.Context, id string) (*domain.Account, error) {
	if err := s.validator.ValidateAccountID(id); err != nil {
		return nil, err
	}

	var acc domain.Account
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (id) VALUES ($1)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING id, created_at
	`, id).Scan(&acc.ID, &acc.CreatedAt)
	if err != nil {
		return nil, storeErr("upsert account", err)
	}
	return &acc, nil
}

func (s *GraphStore) CreateTransfer(ctx context.Context, t *domain.Transfer) error {
	if err := s.validator.ValidateTransfer(t); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id) VALUES ($1), ($2)
		ON CONFLICT (id) DO NOTHING
	`, t.SourceID, t.TargetID); err != nil {
		return storeErr("upsert accounts", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transfers (id, source_id, target_id, amount, currency, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, t.ID, t.SourceID, t.TargetID, t.Amount, string(t.Currency), t.Timestamp.UTC())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: transfer %s", repository.ErrDuplicate, t.ID)
		}
		return storeErr("insert transfer", err)
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit transfer", err)
	}
	return nil
}

const transferColumns = `id, source_id, target_id, amount, currency, occurred_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransfer(row rowScanner) (*domain.Transfer, error) {
	var t domain.Transfer
	var currency string
	if err := row.Scan(&t.ID, &t.SourceID, &t.TargetID, &t.Amount, &currency, &t.Timestamp); err != nil {
		return nil, err
	}
	t.Currency = domain.Currency(currency)
	t.Timestamp = t.Timestamp.UTC()
	return &t, nil
}

func (s *GraphStore) GetTransfer(ctx context.Context, id string) (*domain.Transfer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id)
	t, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transfer %s", repository.ErrNotFound, id)
	}
	if err != nil {
		return nil, storeErr("get transfer", err)
	}
	return t, nil
}

func (s *GraphStore) SearchTransfers(ctx context.Context, f domain.TransferFilter) ([]*domain.Transfer, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if !f.Start.IsZero() {
		add("occurred_at >= $%d", f.Start.UTC())
	}
	if !f.End.IsZero() {
		add("occurred_at <= $%d", f.End.UTC())
	}
	if f.MinAmount > 0 {
		add("amount >= $%d", f.MinAmount)
	}

	query := `SELECT ` + transferColumns + ` FROM transfers`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY occurred_at DESC, seq`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("search transfers", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*domain.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, storeErr("scan transfer", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("search transfers", err)
	}
	return result, nil
}

// cycleQuery walks simple paths from every qualifying transfer and keeps
// the walks that return to their origin. Without a pinned origin only
// walks whose accounts all sort at or after the origin are expanded, so
// each cycle is produced once.
const cycleQuery = `
WITH RECURSIVE walk (origin, head, accounts, transfer_ids, seqs, depth) AS (
    SELECT t.source_id::TEXT,
           t.target_id::TEXT,
           ARRAY[t.source_id, t.target_id]::TEXT[],
           ARRAY[t.id]::TEXT[],
           ARRAY[t.seq],
           1
    FROM transfers t
    WHERE t.amount >= $1
      AND ($3::TEXT = '' OR t.source_id = $3::TEXT)
      AND ($3::TEXT <> '' OR t.target_id >= t.source_id)
  UNION ALL
    SELECT w.origin,
           t.target_id::TEXT,
           w.accounts || t.target_id::TEXT,
           w.transfer_ids || t.id::TEXT,
           w.seqs || t.seq,
           w.depth + 1
    FROM walk w
    JOIN transfers t ON t.source_id = w.head
    WHERE w.head <> w.origin
      AND w.depth < $2
      AND t.amount >= $1
      AND (t.target_id = w.origin OR NOT t.target_id = ANY (w.accounts))
      AND ($3::TEXT <> '' OR t.target_id >= w.origin)
)
SELECT accounts, transfer_ids
FROM walk
WHERE head = origin
ORDER BY depth, origin, seqs
LIMIT $4`

func (s *GraphStore) FindCycles(ctx context.Context, q repository.CycleQuery) ([]domain.CyclePath, error) {
	limit := any(q.Limit)
	if q.Limit <= 0 {
		limit = nil // LIMIT NULL is no limit
	}

	rows, err := s.db.QueryContext(ctx, cycleQuery, q.MinAmount, q.MaxDepth, q.Through, limit)
	if err != nil {
		return nil, storeErr("find cycles", err)
	}
	defer func() { _ = rows.Close() }()

	type rawPath struct {
		accounts []string
		ids      []string
	}
	var (
		raw    []rawPath
		allIDs []string
	)
	for rows.Next() {
		var p rawPath
		if err := rows.Scan(pq.Array(&p.accounts), pq.Array(&p.ids)); err != nil {
			return nil, storeErr("scan cycle", err)
		}
		raw = append(raw, p)
		allIDs = append(allIDs, p.ids...)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("find cycles", err)
	}
	if len(raw) == 0 {
		return []domain.CyclePath{}, nil
	}

	byID, err := s.transfersByID(ctx, allIDs)
	if err != nil {
		return nil, err
	}

	paths := make([]domain.CyclePath, 0, len(raw))
	for _, p := range raw {
		path := domain.CyclePath{Accounts: p.accounts}
		for _, id := range p.ids {
			t, ok := byID[id]
			if !ok {
				return nil, storeErr("find cycles", fmt.Errorf("transfer %s vanished", id))
			}
			path.Transfers = append(path.Transfers, t)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (s *GraphStore) transfersByID(ctx context.Context, ids []string) (map[string]*domain.Transfer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, storeErr("load cycle transfers", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]*domain.Transfer, len(ids))
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, storeErr("scan transfer", err)
		}
		out[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("load cycle transfers", err)
	}
	return out, nil
}

func (s *GraphStore) AccountTransferSummary(ctx context.Context, accountID string) (*domain.TransferSummary, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
		return nil, storeErr("lookup account", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: account %s", repository.ErrNotFound, accountID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT amount, source_id = $1 AS outgoing
		FROM transfers
		WHERE source_id = $1 OR target_id = $1
		ORDER BY seq
	`, accountID)
	if err != nil {
		return nil, storeErr("account summary", err)
	}
	defer func() { _ = rows.Close() }()

	summary := &domain.TransferSummary{AccountID: accountID}
	for rows.Next() {
		var (
			amount   float64
			outgoing bool
		)
		if err := rows.Scan(&amount, &outgoing); err != nil {
			return nil, storeErr("scan summary", err)
		}
		if outgoing {
			summary.Outgoing = append(summary.Outgoing, amount)
		} else {
			summary.Incoming = append(summary.Incoming, amount)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("account summary", err)
	}
	return summary, nil
}

func (s *GraphStore) AggregateWindow(ctx context.Context, start, end time.Time) (*domain.WindowAggregate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT amount
		FROM transfers
		WHERE occurred_at >= $1 AND occurred_at < $2
		ORDER BY seq
	`, start.UTC(), end.UTC())
	if err != nil {
		return nil, storeErr("aggregate window", err)
	}
	defer func() { _ = rows.Close() }()

	var amounts []float64
	for rows.Next() {
		var amount float64
		if err := rows.Scan(&amount); err != nil {
			return nil, storeErr("scan amount", err)
		}
		amounts = append(amounts, amount)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("aggregate window", err)
	}
	return domain.NewWindowAggregate(amounts), nil
}

func (s *GraphStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

func (s *GraphStore) Close() error {
	return s.db.Close()
}
