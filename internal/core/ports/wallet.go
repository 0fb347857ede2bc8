package ports

import (
	"context"
	"errors"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrReferenceReused is returned when a reference is replayed with
	// different transfer details.
	ErrReferenceReused = errors.New("transfer reference already used")
)

// WalletService moves funds in and out of the lottery escrow. Every movement
// carries a reference and replaying a reference with the same details is a
// no-op, so a settlement retried after a crash never pays twice.
type WalletService interface {
	Deposit(ctx context.Context, reference, from string, amount uint64) error
	Transfer(ctx context.Context, reference, to string, amount uint64) error
	Balance(ctx context.Context, account string) (uint64, error)
	EscrowBalance(ctx context.Context) (uint64, error)
	Close()
}
