package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrParamMissing       = errors.New("required parameter missing")
	ErrInvalidExecContext = errors.New("invalid executor context")

	// Checkout / order errors
	ErrAmountMismatch   = errors.New("order amount does not match catalog price")
	ErrAlreadyPurchased = errors.New("product can only be purchased once")
	ErrOrderExpired     = errors.New("order payment window has expired")

	// Ledger errors
	ErrQuotaExhausted    = errors.New("usage quota exhausted")
	ErrVipExpired        = errors.New("vip entitlement has expired")
	ErrPlanNotConfigured = errors.New("no limit table configured for product")

	// Activation code errors
	ErrCodeInvalid  = errors.New("activation code not found or malformed")
	ErrCodeConsumed = errors.New("activation code already consumed")
	ErrCodeExpired  = errors.New("activation code has expired")

	// Settlement errors
	ErrGatewayFailure        = errors.New("payment gateway request failed")
	ErrCallbackFailed        = errors.New("payment callback verification failed")
	ErrCreditFailed          = errors.New("order crediting failed")
	ErrDownstreamUnavailable = errors.New("downstream service unavailable")

	// Storage errors
	ErrStorage         = errors.New("storage operation failed")
	ErrReadDatabaseRow = errors.New("failed to read database row")
	ErrLockUnavailable = errors.New("could not acquire user lock")
)
