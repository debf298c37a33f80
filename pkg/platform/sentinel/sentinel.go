package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and directory adapters return
// these (optionally wrapped) so services can turn them into outcomes or coded errors.
//
//   - ErrNotFound: no user or directory entry matches the lookup
//   - ErrConflict: a uniqueness constraint (username, directory id) rejected a write
//   - ErrUnavailable: the directory or store could not be reached
//   - ErrInvalidState: entity in wrong state for the requested operation
//
// For configuration and validation failures, use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("unavailable")
	ErrInvalidState = errors.New("invalid state")
)
