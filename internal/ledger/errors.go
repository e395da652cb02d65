package ledger

import "errors"

// Error taxonomy for the ledger and payout workflow. Callers classify with
// errors.Is; wrapped messages carry the specifics.
var (
	// ErrInvalidAmount indicates a non-positive or otherwise unusable amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds indicates a debit or reservation exceeding the
	// available balance of the targeted type.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrLimitExceeded indicates a compliance limit violation
	// (per-transaction, daily, or monthly).
	ErrLimitExceeded = errors.New("withdrawal limit exceeded")

	// ErrInvalidStateTransition indicates a payout action (or reservation
	// settle/release) that is not valid from the current state.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrMethodNotVerified indicates a payout method that is missing,
	// foreign, or not yet verified.
	ErrMethodNotVerified = errors.New("payout method not verified")

	// ErrProviderTimeout indicates the fraud or compliance provider did not
	// answer within the bounded retry budget. Treated as high risk, never as
	// low risk.
	ErrProviderTimeout = errors.New("external provider timeout")

	// ErrDuplicateRequest indicates an idempotency-key collision with a live
	// request whose parameters differ from the resubmission.
	ErrDuplicateRequest = errors.New("duplicate request")
)
