package domain

import (
	"context"
	"strconv"
)

// Ticket is a non fungible lottery entry. Ids start at 1 and are never reused
// across rounds.
type Ticket struct {
	Id       uint64
	Owner    string
	Round    uint64
	MintedAt int64
}

func (t Ticket) URI(baseURI string) string {
	return baseURI + strconv.FormatUint(t.Id, 10)
}

type TicketRepository interface {
	// NextTicketId reserves the next id. A reserved id is never handed out
	// again, even if no ticket is ever added with it.
	NextTicketId(ctx context.Context) (uint64, error)
	// AddTicket fails if a ticket with the same id already exists.
	AddTicket(ctx context.Context, ticket Ticket) error
	GetTicket(ctx context.Context, id uint64) (*Ticket, error)
	BalanceOf(ctx context.Context, owner string) (uint64, error)
	GetTicketOfOwnerByIndex(ctx context.Context, owner string, index uint64) (*Ticket, error)
	GetTicketsOfOwner(ctx context.Context, owner string) ([]Ticket, error)
	// GetTicketsOfRound returns the tickets of a round sorted by id, which is
	// the order they were minted in.
	GetTicketsOfRound(ctx context.Context, round uint64) ([]Ticket, error)
	Close()
}
