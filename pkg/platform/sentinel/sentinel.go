package sentinel

import "errors"

// Sentinel errors for store-level facts. Case, snapshot and tenant stores
// return these (optionally wrapped) so services can translate them into
// domain errors with the right code.
//
//   - ErrNotFound: the row does not exist within the caller's tenant
//   - ErrConflict: a uniqueness constraint tripped, e.g. two transitions
//     racing to the same snapshot version
//
// For validation failures use pkg/domain-errors directly.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)
