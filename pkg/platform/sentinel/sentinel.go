package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, caches and data sources
// return these (optionally wrapped) so services can translate them into
// domain errors.
//
//   - ErrNotFound: record, cache entry or table does not exist
//   - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("unavailable")
)
