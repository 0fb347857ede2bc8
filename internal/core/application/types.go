package application

import (
	"context"
	"fmt"

	"github.com/arkade-os/lotteryd/internal/core/domain"
)

type Service interface {
	Start() error
	Stop()
	StartRound(ctx context.Context, caller string) (*RoundInfo, error)
	BuyTicket(ctx context.Context, buyer string, amount uint64) (*TicketInfo, error)
	DrawLottery(ctx context.Context, caller string) (*domain.DrawResult, error)
	GetLotteryInfo(ctx context.Context) (*LotteryInfo, error)
	GetTicket(ctx context.Context, id uint64) (*TicketInfo, error)
	GetAccountTickets(ctx context.Context, owner string) (*AccountTickets, error)
	GetTicketOfOwnerByIndex(ctx context.Context, owner string, index uint64) (*TicketInfo, error)
	GetEventsChannel(ctx context.Context) <-chan []domain.Event
}

type DrawPolicy string

const (
	// DrawPolicyOwner restricts draws to the owner.
	DrawPolicyOwner DrawPolicy = "owner"
	// DrawPolicyAnyone lets any caller settle an expired round.
	DrawPolicyAnyone DrawPolicy = "anyone"
)

func ParseDrawPolicy(s string) (DrawPolicy, error) {
	switch DrawPolicy(s) {
	case DrawPolicyOwner, DrawPolicyAnyone:
		return DrawPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown draw policy %q", s)
	}
}

type LotteryInfo struct {
	TicketLedgerAddress string
	Owner               string
	TicketPrice         uint64
	RoundDuration       int64
	DrawPolicy          DrawPolicy
	CurrentRound        uint64
	Stage               domain.RoundStage
	RoundStartTime      int64
	RoundEndTime        int64
	RemainingTime       int64
	IsActive            bool
	CurrentPot          uint64
	TicketsCount        uint64
	SeedCommitment      string
	LastWinner          string
	LastWinAmount       uint64
	LastDrawRound       uint64
}

type RoundInfo struct {
	Number         uint64
	TicketPrice    uint64
	StartTime      int64
	EndTime        int64
	Pot            uint64
	SeedCommitment string
}

type TicketInfo struct {
	Id       uint64
	Owner    string
	Round    uint64
	MintedAt int64
	URI      string
}

type AccountTickets struct {
	Owner   string
	Balance uint64
	Tickets []TicketInfo
}

type RoundDetails struct {
	Number         uint64
	Stage          domain.RoundStage
	TicketPrice    uint64
	StartedAt      int64
	EndTime        int64
	EndedAt        int64
	Pot            uint64
	TicketIds      []uint64
	Winner         string
	WinningTicket  uint64
	PrizeAmount    uint64
	RolledOver     bool
	SeedCommitment string
	SeedSecret     string
	Seed           string
}

type DrawVerification struct {
	Round                 uint64
	CommitmentValid       bool
	Seed                  string
	ExpectedWinningTicket uint64
	ExpectedWinner        string
	WinningTicket         uint64
	Winner                string
	Valid                 bool
}
