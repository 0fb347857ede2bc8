package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/arkade-os/lotteryd/internal/core/domain"
)

type ticketRepository struct {
	db *sql.DB
}

func NewTicketRepository(config ...interface{}) (domain.TicketRepository, error) {
	db, err := parseDb(config, "ticket")
	if err != nil {
		return nil, err
	}
	return &ticketRepository{db}, nil
}

func (r *ticketRepository) Close() {
	_ = r.db.Close()
}

func (r *ticketRepository) NextTicketId(ctx context.Context) (uint64, error) {
	var next int64
	txBody := func(tx *sql.Tx) error {
		// Databases written before the sequence existed start after the
		// highest minted id.
		if _, err := tx.ExecContext(
			ctx,
			"INSERT OR IGNORE INTO ticket_sequence (id, last_id) "+
				"SELECT 1, COALESCE(MAX(id), 0) FROM ticket",
		); err != nil {
			return fmt.Errorf("failed to init ticket sequence: %w", err)
		}
		if _, err := tx.ExecContext(
			ctx, "UPDATE ticket_sequence SET last_id = last_id + 1 WHERE id = 1",
		); err != nil {
			return fmt.Errorf("failed to reserve ticket id: %w", err)
		}
		return tx.QueryRowContext(
			ctx, "SELECT last_id FROM ticket_sequence WHERE id = 1",
		).Scan(&next)
	}
	if err := execTx(ctx, r.db, txBody); err != nil {
		return 0, err
	}
	return uint64(next), nil
}

func (r *ticketRepository) AddTicket(ctx context.Context, ticket domain.Ticket) error {
	if ticket.Id == 0 {
		return fmt.Errorf("invalid ticket id 0")
	}
	txBody := func(tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx, "INSERT INTO ticket (id, owner, round, minted_at) VALUES (?, ?, ?, ?)",
			int64(ticket.Id), ticket.Owner, int64(ticket.Round), ticket.MintedAt,
		)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return fmt.Errorf("ticket %d already minted", ticket.Id)
			}
			return fmt.Errorf("failed to insert ticket: %w", err)
		}
		return nil
	}
	return execTx(ctx, r.db, txBody)
}

func (r *ticketRepository) GetTicket(ctx context.Context, id uint64) (*domain.Ticket, error) {
	tickets, err := r.selectTickets(ctx, "WHERE id = ?", int64(id))
	if err != nil {
		return nil, err
	}
	if len(tickets) <= 0 {
		return nil, fmt.Errorf("%w: ticket %d", domain.ErrNotFound, id)
	}
	return &tickets[0], nil
}

func (r *ticketRepository) BalanceOf(ctx context.Context, owner string) (uint64, error) {
	var count int64
	err := r.db.QueryRowContext(
		ctx, "SELECT COUNT(*) FROM ticket WHERE owner = ?", owner,
	).Scan(&count)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to count tickets: %w", err)
	}
	return uint64(count), nil
}

func (r *ticketRepository) GetTicketOfOwnerByIndex(
	ctx context.Context, owner string, index uint64,
) (*domain.Ticket, error) {
	tickets, err := r.selectTickets(
		ctx, "WHERE owner = ? ORDER BY id LIMIT 1 OFFSET ?", owner, int64(index),
	)
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
	return r.selectTickets(ctx, "WHERE owner = ? ORDER BY id", owner)
}

func (r *ticketRepository) GetTicketsOfRound(
	ctx context.Context, round uint64,
) ([]domain.Ticket, error) {
	return r.selectTickets(ctx, "WHERE round = ? ORDER BY id", int64(round))
}

func (r *ticketRepository) selectTickets(
	ctx context.Context, filter string, args ...any,
) ([]domain.Ticket, error) {
	rows, err := r.db.QueryContext(
		ctx, "SELECT id, owner, round, minted_at FROM ticket "+filter, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to select tickets: %w", err)
	}
	// nolint:errcheck
	defer rows.Close()

	tickets := make([]domain.Ticket, 0)
	for rows.Next() {
		var id, round, mintedAt int64
		var owner string
		if err := rows.Scan(&id, &owner, &round, &mintedAt); err != nil {
			return nil, err
		}
		tickets = append(tickets, domain.Ticket{
			Id:       uint64(id),
			Owner:    owner,
			Round:    uint64(round),
			MintedAt: mintedAt,
		})
	}
	return tickets, rows.Err()
}
