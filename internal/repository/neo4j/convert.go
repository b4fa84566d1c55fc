package neo4j

import (
	"fmt"
	"time"

	"fincrime_engine/internal/domain"
	"fincrime_engine/internal/repository"
)

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%w: unexpected amount type %T", repository.ErrStore, v)
	}
}

func toFloats(values []any) ([]float64, error) {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func toString(m map[string]any, key string) (string, error) {
	s, ok := m[key].(string)
	if !ok {
		return "", fmt.Errorf("%w: property %s is %T, want string", repository.ErrStore, key, m[key])
	}
	return s, nil
}

func toTime(v any) (time.Time, error) {
	switch ts := v.(type) {
	case time.Time:
		return ts.UTC(), nil
	case string:
		return time.Parse(time.RFC3339Nano, ts)
	default:
		return time.Time{}, fmt.Errorf("%w: unexpected timestamp type %T", repository.ErrStore, v)
	}
}

// transferFromMap reads the map built by transferProjection.
func transferFromMap(m map[string]any) (*domain.Transfer, error) {
	var (
		t   domain.Transfer
		err error
	)
	if t.ID, err = toString(m, "id"); err != nil {
		return nil, err
	}
	if t.SourceID, err = toString(m, "source_id"); err != nil {
		return nil, err
	}
	if t.TargetID, err = toString(m, "target_id"); err != nil {
		return nil, err
	}
	currency, err := toString(m, "currency")
	if err != nil {
		return nil, err
	}
	t.Currency = domain.Currency(currency)
	if t.Amount, err = toFloat(m["amount"]); err != nil {
		return nil, err
	}
	if t.Timestamp, err = toTime(m["timestamp"]); err != nil {
		return nil, err
	}
	return &t, nil
}

// cycleFromRecord pairs the account ids of a path with its relationship
// maps; relationship i runs from accounts[i] to accounts[i+1].
func cycleFromRecord(accounts, transfers []any) (domain.CyclePath, error) {
	if len(accounts) != len(transfers)+1 {
		return domain.CyclePath{}, fmt.Errorf("%w: path has %d accounts for %d transfers",
			repository.ErrStore, len(accounts), len(transfers))
	}

	path := domain.CyclePath{Accounts: make([]string, len(accounts))}
	for i, a := range accounts {
		id, ok := a.(string)
		if !ok {
			return domain.CyclePath{}, fmt.Errorf("%w: account id is %T", repository.ErrStore, a)
		}
		path.Accounts[i] = id
	}

	for i, raw := range transfers {
		m, ok := raw.(map[string]any)
		if !ok {
			return domain.CyclePath{}, fmt.Errorf("%w: transfer is %T", repository.ErrStore, raw)
		}
		withEnds := make(map[string]any, len(m)+2)
		for k, v := range m {
			withEnds[k] = v
		}
		withEnds["source_id"] = path.Accounts[i]
		withEnds["target_id"] = path.Accounts[i+1]

		t, err := transferFromMap(withEnds)
		if err != nil {
			return domain.CyclePath{}, err
		}
		path.Transfers = append(path.Transfers, t)
	}
	return path, nil
}
