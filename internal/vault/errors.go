package vault

import "errors"

// Error definitions for zero-tolerance error handling. One sentinel per failure
// cause so callers and tests can disambiguate with errors.Is.
var (
	// Validation errors: caller-fixable, fail fast, no state mutation.
	ErrZeroAmount             = errors.New("amount must be positive")
	ErrFeeOutOfBound          = errors.New("fee rate out of bound")
	ErrDepositExceedsCapacity = errors.New("deposit exceeds vault capacity")
	ErrSlippageExceeded       = errors.New("slippage bound exceeded")
	ErrInvestExceedsCover     = errors.New("invest exceeds active cover amount")
	ErrInsufficientShares     = errors.New("insufficient share balance")
	ErrInsufficientIdle       = errors.New("insufficient idle assets")

	// Timelock errors.
	ErrNoProposalFound    = errors.New("no pending fee proposal")
	ErrTimelockNotElapsed = errors.New("fee timelock has not elapsed")

	// Fee claim.
	ErrNoFeesToClaim = errors.New("no accumulated fees to claim")

	// Rate sanity check.
	ErrVenueBadRate = errors.New("underlying venue rate deviation exceeds tolerance")

	// Consistency errors: unreachable under correct sequencing, fatal if hit.
	ErrAccountingUnderflow = errors.New("accounting underflow")
)
