package domain

import "errors"

var (
	// Request / business errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrDuplicatePayment    = errors.New("duplicate payment")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrLockBusy            = errors.New("resource is locked by another worker")

	// Collaborator failures
	ErrGateway = errors.New("payment gateway error")
	ErrStorage = errors.New("storage error")

	// Repository-level failures; all of them are storage errors from the caller's point of view.
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid transaction handle")
)

// IsStorage reports whether err originates from the persistence layer.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage) ||
		errors.Is(err, ErrOperationFailed) ||
		errors.Is(err, ErrReadDatabaseRow) ||
		errors.Is(err, ErrInvalidExecContext)
}
