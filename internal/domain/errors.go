package domain

import "errors"

// Transfer validation. These are detected before any write.
var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrSelfTransfer      = errors.New("cannot transfer funds to yourself")
	ErrReceiverNotFound  = errors.New("receiver not found")
	ErrSenderNotFound    = errors.New("sender not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Store failures. ErrConcurrencyConflict is retryable, ErrStoreUnavailable is not.
var (
	ErrConcurrencyConflict = errors.New("concurrent update conflict, retry the request")
	ErrStoreUnavailable    = errors.New("store unavailable")
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrUsernameTaken        = errors.New("username already registered")
	ErrEmailTaken           = errors.New("email already registered")
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrInvalidPage          = errors.New("skip must be >= 0 and limit must be > 0")
	ErrInvalidStatus        = errors.New("unknown transaction status")
	ErrIdempotencyKeyReused = errors.New("idempotency key already used with a different request")
)
