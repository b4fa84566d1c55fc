package processor

import "errors"

var (
	// ErrNoData is returned by aggregates that have nothing to summarise.
	ErrNoData = errors.New("no data available")
	// ErrNoHistory marks an entity absent from the transfer graph.
	ErrNoHistory = errors.New("entity has no transfer history")
)
