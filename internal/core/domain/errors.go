package domain

import "errors"

var (
	ErrUnauthorized     = errors.New("caller is not authorized")
	ErrRoundNotOpen     = errors.New("round is not open")
	ErrRoundAlreadyOpen = errors.New("round is already open")
	ErrRoundExpired     = errors.New("round has expired")
	ErrRoundStillOpen   = errors.New("round has not ended yet")
	ErrIncorrectPrice   = errors.New("incorrect ticket price")
	ErrNoTickets        = errors.New("no tickets in round")
	ErrPayoutFailed     = errors.New("payout failed")
	ErrNotFound         = errors.New("not found")
	ErrAmountOverflow   = errors.New("amount overflow")
	ErrLedgerMismatch   = errors.New("ticket ledger does not match round state")
)
