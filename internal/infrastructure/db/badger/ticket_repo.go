package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/arkade-os/lotteryd/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const (
	ticketStoreDir    = "tickets"
	ticketSequenceKey = "ticket"
)

type ticketSequenceDTO struct {
	Last uint64
}

type ticketDTO struct {
	Id       uint64
	Owner    string
	Round    uint64
	MintedAt int64
}

func (t ticketDTO) toDomain() domain.Ticket {
	return domain.Ticket{
		Id:       t.Id,
		Owner:    t.Owner,
		Round:    t.Round,
		MintedAt: t.MintedAt,
	}
}

type ticketRepository struct {
	store *badgerhold.Store
}

func NewTicketRepository(config ...interface{}) (domain.TicketRepository, error) {
	baseDir, logger, err := parseConfig(config)
	if err != nil {
		return nil, err
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, ticketStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open ticket store: %s", err)
	}

	return &ticketRepository{store}, nil
}

func (r *ticketRepository) NextTicketId(ctx context.Context) (uint64, error) {
	var next uint64
	err := withRetry(func() error {
		return r.store.Badger().Update(func(tx *badger.Txn) error {
			var seq ticketSequenceDTO
			if err := r.store.TxGet(tx, ticketSequenceKey, &seq); err != nil {
				if !errors.Is(err, badgerhold.ErrNotFound) {
					return err
				}
				// Stores written before the sequence existed start after the
				// highest minted id.
				last, err := r.lastTicketId(tx)
				if err != nil {
					return err
				}
				seq.Last = last
			}
			seq.Last++
			next = seq.Last
			return r.store.TxUpsert(tx, ticketSequenceKey, seq)
		})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to reserve ticket id: %w", err)
	}
	return next, nil
}

func (r *ticketRepository) AddTicket(ctx context.Context, ticket domain.Ticket) error {
	if ticket.Id == 0 {
		return fmt.Errorf("invalid ticket id 0")
	}
	dto := ticketDTO{
		Id:       ticket.Id,
		Owner:    ticket.Owner,
		Round:    ticket.Round,
		MintedAt: ticket.MintedAt,
	}
	err := withRetry(func() error {
		return r.store.Insert(ticket.Id, dto)
	})
	if errors.Is(err, badgerhold.ErrKeyExists) {
		return fmt.Errorf("ticket %d already minted", ticket.Id)
	}
	return err
}

func (r *ticketRepository) GetTicket(ctx context.Context, id uint64) (*domain.Ticket, error) {
	var dto ticketDTO
	if err := r.store.Get(id, &dto); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%w: ticket %d", domain.ErrNotFound, id)
		}
		return nil, err
	}
	ticket := dto.toDomain()
	return &ticket, nil
}

func (r *ticketRepository) BalanceOf(ctx context.Context, owner string) (uint64, error) {
	return r.store.Count(&ticketDTO{}, badgerhold.Where("Owner").Eq(owner))
}

func (r *ticketRepository) GetTicketOfOwnerByIndex(
	ctx context.Context, owner string, index uint64,
) (*domain.Ticket, error) {
	query := badgerhold.Where("Owner").Eq(owner).SortBy("Id").Skip(int(index)).Limit(1)
	tickets, err := r.findTickets(query)
	if err != nil {
		return nil, err
	}
	if len(tickets) <= 0 {
		return nil, fmt.Errorf(
			"%w: owner %s has no ticket at index %d", domain.ErrNotFound, owner, index,
		)
	}
	return &tickets[0], nil
}

func (r *ticketRepository) GetTicketsOfOwner(
	ctx context.Context, owner string,
) ([]domain.Ticket, error) {
	return r.findTickets(badgerhold.Where("Owner").Eq(owner).SortBy("Id"))
}

func (r *ticketRepository) GetTicketsOfRound(
	ctx context.Context, round uint64,
) ([]domain.Ticket, error) {
	return r.findTickets(badgerhold.Where("Round").Eq(round).SortBy("Id"))
}

func (r *ticketRepository) Close() {
	_ = r.store.Close()
}

func (r *ticketRepository) lastTicketId(tx *badger.Txn) (uint64, error) {
	var tickets []ticketDTO
	query := badgerhold.Where("Id").Gt(uint64(0)).SortBy("Id").Reverse().Limit(1)
	if err := r.store.TxFind(tx, &tickets, query); err != nil {
		return 0, err
	}
	if len(tickets) <= 0 {
		return 0, nil
	}
	return tickets[0].Id, nil
}

func (r *ticketRepository) findTickets(query *badgerhold.Query) ([]domain.Ticket, error) {
	var dtos []ticketDTO
	if err := r.store.Find(&dtos, query); err != nil {
		return nil, err
	}
	tickets := make([]domain.Ticket, 0, len(dtos))
	for _, dto := range dtos {
		tickets = append(tickets, dto.toDomain())
	}
	return tickets, nil
}
