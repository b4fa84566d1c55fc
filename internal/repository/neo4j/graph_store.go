// Package neo4j stores the transfer graph natively in Neo4j. Accounts are
// (:Account {id}) nodes and transfers are [:TRANSFER] relationships.
package neo4j

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"fincrime_engine/internal/domain"
	"fincrime_engine/internal/repository"
	"fincrime_engine/pkg/validator"
)

var _ repository.GraphStore = (*GraphStore)(nil)

const constraintViolation = "Neo.ClientError.Schema.ConstraintValidationFailed"

type GraphStore struct {
	driver    neo4j.DriverWithContext
	database  string
	validator *validator.TransferValidator
	logger    *slog.Logger
}

// Open connects with basic auth and verifies connectivity.
func Open(ctx context.Context, uri, user, password, database string, logger *slog.Logger) (*GraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("%w: create neo4j driver: %w", repository.ErrStore, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("%w: connect to neo4j: %w", repository.ErrStore, err)
	}
	return NewGraphStore(driver, database, logger), nil
}

func NewGraphStore(driver neo4j.DriverWithContext, database string, logger *slog.Logger) *GraphStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphStore{
		driver:    driver,
		database:  database,
		validator: validator.NewTransferValidator(),
		logger:    logger,
	}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", repository.ErrStore, op, err)
}

func (s *GraphStore) write(ctx context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error) {
	return neo4j.ExecuteQuery(ctx, s.driver, cypher, params, neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithWritersRouting())
}

func (s *GraphStore) read(ctx context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error) {
	return neo4j.ExecuteQuery(ctx, s.driver, cypher, params, neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting())
}

// Migrate creates the uniqueness constraints the store relies on.
func (s *GraphStore) Migrate(ctx context.Context) error {
	for _, stmt := range []string{
		`CREATE CONSTRAINT account_id IF NOT EXISTS FOR (a:Account) REQUIRE a.id IS UNIQUE`,
		`CREATE CONSTRAINT transfer_id IF NOT EXISTS FOR ()-[t:TRANSFER]-() REQUIRE t.id IS UNIQUE`,
	} {
		if _, err := s.write(ctx, stmt, nil); err != nil {
			return storeErr("create constraint", err)
		}
	}
	return nil
}

func (s *GraphStore) UpsertAccount(ctx context.Context, id string) (*domain.Account, error) {
	if err := s.validator.ValidateAccountID(id); err != nil {
		return nil, err
	}

	res, err := s.write(ctx, `
		MERGE (a:Account {id: $id})
		ON CREATE SET a.created_at = datetime()
		RETURN a.id AS id, a.created_at AS created_at`,
		map[string]any{"id": id})
	if err != nil {
		return nil, storeErr("upsert account", err)
	}
	if len(res.Records) == 0 {
		return nil, storeErr("upsert account", errors.New("no record returned"))
	}

	createdAt, _, err := neo4j.GetRecordValue[time.Time](res.Records[0], "created_at")
	if err != nil {
		return nil, storeErr("read account", err)
	}
	return &domain.Account{ID: id, CreatedAt: createdAt.UTC()}, nil
}

func (s *GraphStore) CreateTransfer(ctx context.Context, t *domain.Transfer) error {
	if err := s.validator.ValidateTransfer(t); err != nil {
		return err
	}

	_, err := s.write(ctx, `
		MERGE (src:Account {id: $source_id})
		ON CREATE SET src.created_at = datetime()
		MERGE (dst:Account {id: $target_id})
		ON CREATE SET dst.created_at = datetime()
		CREATE (src)-[:TRANSFER {
			id: $id,
			amount: $amount,
			currency: $currency,
			timestamp: $timestamp,
			seq: timestamp()
		}]->(dst)`,
		map[string]any{
			"id":        t.ID,
			"source_id": t.SourceID,
			"target_id": t.TargetID,
			"amount":    t.Amount,
			"currency":  string(t.Currency),
			"timestamp": t.Timestamp.UTC(),
		})
	if err != nil {
		var neoErr *neo4j.Neo4jError
		if errors.As(err, &neoErr) && neoErr.Code == constraintViolation {
			return fmt.Errorf("%w: transfer %s", repository.ErrDuplicate, t.ID)
		}
		return storeErr("create transfer", err)
	}
	return nil
}

const transferProjection = `{id: r.id, source_id: src.id, target_id: dst.id, amount: r.amount, currency: r.currency, timestamp: r.timestamp}`

func (s *GraphStore) GetTransfer(ctx context.Context, id string) (*domain.Transfer, error) {
	res, err := s.read(ctx, `
		MATCH (src:Account)-[r:TRANSFER {id: $id}]->(dst:Account)
		RETURN `+transferProjection+` AS transfer`,
		map[string]any{"id": id})
	if err != nil {
		return nil, storeErr("get transfer", err)
	}
	if len(res.Records) == 0 {
		return nil, fmt.Errorf("%w: transfer %s", repository.ErrNotFound, id)
	}

	raw, _, err := neo4j.GetRecordValue[map[string]any](res.Records[0], "transfer")
	if err != nil {
		return nil, storeErr("read transfer", err)
	}
	return transferFromMap(raw)
}

func (s *GraphStore) SearchTransfers(ctx context.Context, f domain.TransferFilter) ([]*domain.Transfer, error) {
	params := map[string]any{"min_amount": f.MinAmount, "start": nil, "end": nil}
	if !f.Start.IsZero() {
		params["start"] = f.Start.UTC()
	}
	if !f.End.IsZero() {
		params["end"] = f.End.UTC()
	}

	cypher := `
		MATCH (src:Account)-[r:TRANSFER]->(dst:Account)
		WHERE r.amount >= $min_amount
		  AND ($start IS NULL OR r.timestamp >= $start)
		  AND ($end IS NULL OR r.timestamp <= $end)
		RETURN ` + transferProjection + ` AS transfer
		ORDER BY r.timestamp DESC, r.seq`
	if f.Limit > 0 {
		cypher += ` LIMIT $limit`
		params["limit"] = int64(f.Limit)
	}

	res, err := s.read(ctx, cypher, params)
	if err != nil {
		return nil, storeErr("search transfers", err)
	}

	out := make([]*domain.Transfer, 0, len(res.Records))
	for _, rec := range res.Records {
		raw, _, err := neo4j.GetRecordValue[map[string]any](rec, "transfer")
		if err != nil {
			return nil, storeErr("read transfer", err)
		}
		t, err := transferFromMap(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// cycleCypher matches closed paths anchored at a. Node repetition is ruled
// out explicitly since Cypher only guarantees distinct relationships.
func cycleCypher(maxDepth int, limited bool) string {
	q := fmt.Sprintf(`
		MATCH path = (a:Account)-[:TRANSFER*1..%d]->(a)
		WITH a, path, nodes(path)[1..-1] AS inner
		WHERE ($through = '' OR a.id = $through)
		  AND ALL(r IN relationships(path) WHERE r.amount >= $min_amount)
		  AND ALL(n IN inner WHERE n <> a AND ($through <> '' OR n.id > a.id))
		  AND ALL(i IN range(0, size(inner) - 1) WHERE NOT inner[i] IN inner[i + 1..])
		RETURN [n IN nodes(path) | n.id] AS accounts,
		       [r IN relationships(path) | {id: r.id, amount: r.amount, currency: r.currency, timestamp: r.timestamp}] AS transfers,
		       [r IN relationships(path) | r.seq] AS seqs,
		       length(path) AS depth
		ORDER BY depth, a.id, seqs`, maxDepth)
	if limited {
		q += `
		LIMIT $limit`
	}
	return q
}

func (s *GraphStore) FindCycles(ctx context.Context, q repository.CycleQuery) ([]domain.CyclePath, error) {
	if q.MaxDepth < 1 {
		return []domain.CyclePath{}, nil
	}

	params := map[string]any{
		"min_amount": q.MinAmount,
		"through":    q.Through,
		"limit":      int64(q.Limit),
	}
	res, err := s.read(ctx, cycleCypher(q.MaxDepth, q.Limit > 0), params)
	if err != nil {
		return nil, storeErr("find cycles", err)
	}

	paths := make([]domain.CyclePath, 0, len(res.Records))
	for _, rec := range res.Records {
		accounts, _, err := neo4j.GetRecordValue[[]any](rec, "accounts")
		if err != nil {
			return nil, storeErr("read cycle", err)
		}
		transfers, _, err := neo4j.GetRecordValue[[]any](rec, "transfers")
		if err != nil {
			return nil, storeErr("read cycle", err)
		}
		path, err := cycleFromRecord(accounts, transfers)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (s *GraphStore) AccountTransferSummary(ctx context.Context, accountID string) (*domain.TransferSummary, error) {
	res, err := s.read(ctx, `
		MATCH (a:Account {id: $id})
		OPTIONAL MATCH (a)-[o:TRANSFER]->()
		WITH a, collect(o.amount) AS outgoing
		OPTIONAL MATCH ()-[i:TRANSFER]->(a)
		RETURN outgoing, collect(i.amount) AS incoming`,
		map[string]any{"id": accountID})
	if err != nil {
		return nil, storeErr("account summary", err)
	}
	if len(res.Records) == 0 {
		return nil, fmt.Errorf("%w: account %s", repository.ErrNotFound, accountID)
	}

	outgoing, _, err := neo4j.GetRecordValue[[]any](res.Records[0], "outgoing")
	if err != nil {
		return nil, storeErr("read summary", err)
	}
	incoming, _, err := neo4j.GetRecordValue[[]any](res.Records[0], "incoming")
	if err != nil {
		return nil, storeErr("read summary", err)
	}

	summary := &domain.TransferSummary{AccountID: accountID}
	if summary.Outgoing, err = toFloats(outgoing); err != nil {
		return nil, err
	}
	if summary.Incoming, err = toFloats(incoming); err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *GraphStore) AggregateWindow(ctx context.Context, start, end time.Time) (*domain.WindowAggregate, error) {
	res, err := s.read(ctx, `
		MATCH ()-[r:TRANSFER]->()
		WHERE r.timestamp >= $start AND r.timestamp < $end
		RETURN collect(r.amount) AS amounts`,
		map[string]any{"start": start.UTC(), "end": end.UTC()})
	if err != nil {
		return nil, storeErr("aggregate window", err)
	}

	var raw []any
	if len(res.Records) > 0 {
		if raw, _, err = neo4j.GetRecordValue[[]any](res.Records[0], "amounts"); err != nil {
			return nil, storeErr("read window", err)
		}
	}
	amounts, err := toFloats(raw)
	if err != nil {
		return nil, err
	}
	return domain.NewWindowAggregate(amounts), nil
}

func (s *GraphStore) Ping(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

func (s *GraphStore) Close() error {
	return s.driver.Close(context.Background())
}
