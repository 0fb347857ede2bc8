package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/arkade-os/lotteryd/internal/core/domain"
	"github.com/arkade-os/lotteryd/internal/core/ports"
)

type AdminService interface {
	Wallet() ports.WalletService
	GetRoundDetails(ctx context.Context, number uint64) (*RoundDetails, error)
	GetRounds(ctx context.Context, after, before int64) ([]uint64, error)
	GetRoundStats(ctx context.Context) (*domain.RoundStats, error)
	VerifyDraw(ctx context.Context, number uint64) (*DrawVerification, error)
	GetWalletBalance(ctx context.Context, account string) (uint64, error)
	GetEscrowBalance(ctx context.Context) (uint64, error)
}

type adminService struct {
	walletSvc   ports.WalletService
	repoManager ports.RepoManager
	liveStore   ports.LiveStore
}

func NewAdminService(
	walletSvc ports.WalletService, repoManager ports.RepoManager, liveStoreSvc ports.LiveStore,
) AdminService {
	return &adminService{
		walletSvc:   walletSvc,
		repoManager: repoManager,
		liveStore:   liveStoreSvc,
	}
}

func (a *adminService) Wallet() ports.WalletService {
	return a.walletSvc
}

func (a *adminService) GetRoundDetails(
	ctx context.Context, number uint64,
) (*RoundDetails, error) {
	round, err := a.getRound(ctx, number)
	if err != nil {
		return nil, err
	}
	// Never reveal the secret of a round that can still be drawn.
	round = round.Public()

	tickets, err := a.repoManager.Tickets().GetTicketsOfRound(ctx, number)
	if err != nil {
		return nil, err
	}
	ticketIds := make([]uint64, 0, len(tickets))
	for _, ticket := range tickets {
		ticketIds = append(ticketIds, ticket.Id)
	}

	pot := round.Pot
	if round.IsSettled() {
		pot = round.PrizeAmount + round.CarriedPot
	}

	return &RoundDetails{
		Number:         round.Number,
		Stage:          round.Stage,
		TicketPrice:    round.TicketPrice,
		StartedAt:      round.StartingTimestamp,
		EndTime:        round.EndTime,
		EndedAt:        round.EndingTimestamp,
		Pot:            pot,
		TicketIds:      ticketIds,
		Winner:         round.Winner,
		WinningTicket:  round.WinningTicket,
		PrizeAmount:    round.PrizeAmount,
		RolledOver:     round.RolledOver,
		SeedCommitment: round.SeedCommitment,
		SeedSecret:     round.SeedSecret,
		Seed:           round.Seed,
	}, nil
}

func (a *adminService) GetRounds(ctx context.Context, after, before int64) ([]uint64, error) {
	return a.repoManager.Rounds().GetRoundNumbers(ctx, after, before)
}

func (a *adminService) GetRoundStats(ctx context.Context) (*domain.RoundStats, error) {
	return a.repoManager.Rounds().GetRoundStats(ctx)
}

// VerifyDraw recomputes the draw of a settled round from its revealed secret and
// the ledger, and compares it with the recorded outcome.
func (a *adminService) VerifyDraw(ctx context.Context, number uint64) (*DrawVerification, error) {
	round, err := a.repoManager.Rounds().GetRound(ctx, number)
	if err != nil {
		return nil, err
	}
	if !round.IsSettled() {
		return nil, fmt.Errorf("round %d is not settled", number)
	}

	commitment, err := domain.SeedCommitment(round.SeedSecret)
	if err != nil {
		return nil, err
	}

	verification := &DrawVerification{
		Round:           number,
		CommitmentValid: commitment == round.SeedCommitment,
		WinningTicket:   round.WinningTicket,
		Winner:          round.Winner,
	}

	tickets, err := a.repoManager.Tickets().GetTicketsOfRound(ctx, number)
	if err != nil {
		return nil, err
	}
	if len(tickets) <= 0 {
		verification.Valid = verification.CommitmentValid && round.RolledOver &&
			len(round.Winner) <= 0
		return verification, nil
	}

	ticketIds := make([]uint64, 0, len(tickets))
	owners := make(map[uint64]string, len(tickets))
	for _, ticket := range tickets {
		ticketIds = append(ticketIds, ticket.Id)
		owners[ticket.Id] = ticket.Owner
	}

	seed, err := domain.DrawSeed(round.SeedSecret, round.Number, round.EndTime, ticketIds)
	if err != nil {
		return nil, err
	}
	expected, err := domain.SelectWinner(seed, ticketIds)
	if err != nil {
		return nil, err
	}

	verification.Seed = domain.SeedString(seed)
	verification.ExpectedWinningTicket = expected
	verification.ExpectedWinner = owners[expected]
	verification.Valid = verification.CommitmentValid &&
		verification.Seed == round.Seed &&
		expected == round.WinningTicket &&
		owners[expected] == round.Winner
	return verification, nil
}

func (a *adminService) GetWalletBalance(ctx context.Context, account string) (uint64, error) {
	return a.walletSvc.Balance(ctx, account)
}

func (a *adminService) GetEscrowBalance(ctx context.Context) (uint64, error) {
	return a.walletSvc.EscrowBalance(ctx)
}

// getRound prefers the live round since the stored copy of an open round does
// not track purchases.
func (a *adminService) getRound(ctx context.Context, number uint64) (*domain.Round, error) {
	if current := a.liveStore.CurrentRound().Get(); current != nil &&
		current.Number == number && current.IsStarted() {
		return current, nil
	}

	round, err := a.repoManager.Rounds().GetRound(ctx, number)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get round %d: %w", number, err)
	}
	return round, nil
}
