package ledger

import "errors"

// Error taxonomy for lifecycle operations. Handlers map these onto HTTP
// codes; the reconciler uses ErrConsistency to ack a delivery without
// mutating anything.
var (
	// ErrValidation indicates a request that can never succeed as given.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicate indicates the operation already happened; the caller
	// should treat the existing record as the result.
	ErrDuplicate = errors.New("duplicate operation")

	// ErrConsistency indicates stored state contradicts the requested
	// change. The engine refuses to overwrite rather than guess.
	ErrConsistency = errors.New("inconsistent state")

	// ErrProvider indicates an upstream rail failed or answered ambiguously.
	ErrProvider = errors.New("provider error")
)
