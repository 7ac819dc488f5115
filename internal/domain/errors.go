package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrOrderNotFound         = errors.New("order_not_found")
	ErrCompanyNotFound       = errors.New("company_not_found")
	ErrSecurityClassNotFound = errors.New("security_class_not_found")
	ErrNotOrderOwner         = errors.New("not_order_owner")
	ErrOrderNotOpen          = errors.New("order_not_open")

	// ErrConcurrentModification signals a stale remaining-quantity read
	// during settlement. It is retried inside the matching engine and
	// never reaches a client.
	ErrConcurrentModification = errors.New("concurrent_modification")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
