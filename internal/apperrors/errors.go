package apperrors

import "errors"

// Sentinel errors for the fulfillment core. Services wrap these with
// fmt.Errorf("...: %w", err) so handlers can map them to HTTP statuses
// with errors.Is while keeping the contextual message.
var (
	// ErrValidation indicates malformed or empty input. No side effects occurred.
	ErrValidation = errors.New("validation error")

	// ErrAuth indicates a missing/invalid caller identity or a webhook
	// signature mismatch. No side effects occurred.
	ErrAuth = errors.New("authentication error")

	// ErrNotFound indicates an unknown order, token, or grant.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition indicates an illegal order status edge. The order
	// is left unchanged.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrExpired indicates a download grant past its expiry.
	ErrExpired = errors.New("download grant expired")

	// ErrAlreadyUsed indicates a download grant that has already been redeemed.
	ErrAlreadyUsed = errors.New("download grant already used")

	// ErrDependency indicates an unavailable collaborator (catalog, storage,
	// message broker). Retriable.
	ErrDependency = errors.New("dependency unavailable")
)
