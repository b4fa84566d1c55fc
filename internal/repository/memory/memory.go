package memory

import (
	"fincrime_engine/internal/repository"
)

var (
	_ repository.GraphStore = (*GraphStore)(nil)
	_ repository.CacheStore = (*CacheStore)(nil)
)
