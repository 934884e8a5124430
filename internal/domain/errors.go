package domain

import (
	"errors"
	"fmt"
)

// ──────────────────────────────────────────────────────────────────────────────
// Error categories (every ledger error wraps exactly one)
// ──────────────────────────────────────────────────────────────────────────────

var (
	// ErrValidation marks malformed input rejected before any state change.
	ErrValidation = errors.New("validation error")

	// ErrAuthorization marks a caller lacking permission for the operation.
	ErrAuthorization = errors.New("authorization error")

	// ErrState marks an operation that is invalid for the current market state.
	ErrState = errors.New("state error")

	// ErrNotFound marks a reference to a market that does not exist.
	ErrNotFound = errors.New("not found")
)

func categorised(category error, msg string) error {
	return fmt.Errorf("%w: %s", category, msg)
}

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors: compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Validation errors
var (
	// ErrEmptyQuestion is returned when a market is created without a question.
	ErrEmptyQuestion = categorised(ErrValidation, "question must not be empty")

	// ErrQuestionTooLong is returned when the question exceeds the configured bound.
	ErrQuestionTooLong = categorised(ErrValidation, "question is too long")

	// ErrDeadlineNotFuture is returned when the deadline is not strictly after
	// the creation time.
	ErrDeadlineNotFuture = categorised(ErrValidation, "deadline must be in the future")

	// ErrZeroStake is returned when a bet carries no value.
	ErrZeroStake = categorised(ErrValidation, "stake amount must be greater than zero")

	// ErrStakePrecision is returned when a stake is finer than one wei.
	ErrStakePrecision = categorised(ErrValidation, "stake amount has more than 18 decimal places")

	// ErrInvalidOutcome is returned when resolving to anything but Yes, No or Invalid.
	ErrInvalidOutcome = categorised(ErrValidation, "outcome must be Yes, No or Invalid")

	// ErrInvalidAddress is returned when an identity is missing or malformed.
	ErrInvalidAddress = categorised(ErrValidation, "invalid address")

	// ErrNotPayable is returned when value is attached to a non-payable call.
	ErrNotPayable = categorised(ErrValidation, "method does not accept value")

	// ErrUnknownMethod is returned when calldata does not match a known selector.
	ErrUnknownMethod = categorised(ErrValidation, "unknown contract method")
)

// Authorization errors
var (
	// ErrNotResolver is returned when someone other than the market's resolver
	// attempts to resolve it.
	ErrNotResolver = categorised(ErrAuthorization, "caller is not the market resolver")

	// ErrUnauthorized is returned when a valid token is not present.
	ErrUnauthorized = categorised(ErrAuthorization, "unauthorized")

	// ErrTokenInvalid is returned when a token cannot be parsed or its signature
	// does not match.
	ErrTokenInvalid = categorised(ErrAuthorization, "token is invalid")

	// ErrSignatureInvalid is returned when a wallet signature does not recover
	// to the claimed address.
	ErrSignatureInvalid = categorised(ErrAuthorization, "signature does not match address")

	// ErrNonceInvalid is returned when a login nonce is unknown, expired or used.
	ErrNonceInvalid = categorised(ErrAuthorization, "login nonce is invalid or expired")
)

// State errors
var (
	// ErrMarketClosed is returned when betting after the deadline.
	ErrMarketClosed = categorised(ErrState, "market is closed for betting")

	// ErrMarketAlreadyResolved is returned when betting on or resolving a
	// market that has already been resolved.
	ErrMarketAlreadyResolved = categorised(ErrState, "market is already resolved")

	// ErrBettingStillOpen is returned when resolving before the deadline.
	ErrBettingStillOpen = categorised(ErrState, "market cannot be resolved before its deadline")

	// ErrMarketNotResolved is returned when claiming before resolution.
	ErrMarketNotResolved = categorised(ErrState, "market is not resolved")

	// ErrNoPosition is returned when claiming without any stake in the market.
	ErrNoPosition = categorised(ErrState, "no position in market")

	// ErrAlreadyClaimed is returned on every claim after the first successful one.
	ErrAlreadyClaimed = categorised(ErrState, "winnings already claimed")

	// ErrNothingToClaim is returned when the position pays zero (all stake on
	// the losing side).
	ErrNothingToClaim = categorised(ErrState, "nothing to claim")

	// ErrJournalConflict is returned when another writer already journaled the
	// sequence number this ledger tried to commit.
	ErrJournalConflict = categorised(ErrState, "journal sequence already taken")
)

// Not-found errors
var (
	// ErrMarketNotFound is returned when no market has the given ID.
	ErrMarketNotFound = categorised(ErrNotFound, "market not found")
)

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// IsValidation returns true when err (or any error in its chain) is a
// validation error.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsAuthorization returns true for authentication/authorisation errors.
func IsAuthorization(err error) bool { return errors.Is(err, ErrAuthorization) }

// IsState returns true when the operation conflicts with the market state.
func IsState(err error) bool { return errors.Is(err, ErrState) }

// IsNotFound returns true when err refers to a missing market. Use this
// instead of comparing error values directly when translating to HTTP 404.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict returns true for state errors that a retry cannot fix because the
// terminal transition already happened (double resolution, double claim).
func IsConflict(err error) bool {
	return errors.Is(err, ErrMarketAlreadyResolved) || errors.Is(err, ErrAlreadyClaimed)
}

// IsLedgerError returns true when err belongs to one of the four categories,
// i.e. it was a deliberate rejection rather than an infrastructure failure.
func IsLedgerError(err error) bool {
	return IsValidation(err) || IsAuthorization(err) || IsState(err) || IsNotFound(err)
}
