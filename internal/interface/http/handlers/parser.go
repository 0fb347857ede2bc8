package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/arkade-os/lotteryd/internal/core/application"
	"github.com/arkade-os/lotteryd/internal/core/domain"
	"github.com/arkade-os/lotteryd/pkg/amount"
	"github.com/gin-gonic/gin"
)

const AccountHeader = "X-Account"

var errMissingAccount = errors.New("missing " + AccountHeader + " header")

// From HTTP request to app types

func parseAccount(c *gin.Context) (string, error) {
	account := strings.TrimSpace(c.GetHeader(AccountHeader))
	if len(account) <= 0 {
		return "", errMissingAccount
	}
	return account, nil
}

func parseUintParam(c *gin.Context, name string) (uint64, error) {
	value := c.Param(name)
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, value)
	}
	return n, nil
}

func parseIntQuery(c *gin.Context, name string) (int64, error) {
	value := c.Query(name)
	if len(value) <= 0 {
		return 0, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s (must be >= 0)", name)
	}
	return n, nil
}

func parseTopics(c *gin.Context) []string {
	topics := make([]string, 0)
	for _, value := range c.QueryArray("topics") {
		for _, topic := range strings.Split(value, ",") {
			if topic = formatTopic(topic); len(topic) > 0 {
				topics = append(topics, topic)
			}
		}
	}
	return topics
}

// From app types to HTTP responses

type errorResponse struct {
	Error string `json:"error"`
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, errMissingAccount):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrIncorrectPrice), errors.Is(err, domain.ErrAmountOverflow):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRoundNotOpen), errors.Is(err, domain.ErrRoundAlreadyOpen),
		errors.Is(err, domain.ErrRoundExpired), errors.Is(err, domain.ErrRoundStillOpen),
		errors.Is(err, domain.ErrNoTickets):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPayoutFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errorStatus(err), errorResponse{err.Error()})
}

func abortWithBadRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{err.Error()})
}

type infoResponse struct {
	TicketLedgerAddress string `json:"ticket_ledger_address"`
	Owner               string `json:"owner"`
	TicketPrice         string `json:"ticket_price"`
	RoundDuration       int64  `json:"round_duration"`
	DrawPolicy          string `json:"draw_policy"`
	CurrentRound        uint64 `json:"current_round"`
	Stage               string `json:"stage"`
	RoundStartTime      int64  `json:"round_start_time"`
	RoundEndTime        int64  `json:"round_end_time"`
	RemainingTime       int64  `json:"remaining_time"`
	IsActive            bool   `json:"is_active"`
	CurrentPot          string `json:"current_pot"`
	TicketsCount        uint64 `json:"tickets_count"`
	SeedCommitment      string `json:"seed_commitment,omitempty"`
	LastWinner          string `json:"last_winner,omitempty"`
	LastWinAmount       string `json:"last_win_amount"`
	LastDrawRound       uint64 `json:"last_draw_round"`
}

type roundResponse struct {
	Number         uint64 `json:"number"`
	TicketPrice    string `json:"ticket_price"`
	StartTime      int64  `json:"start_time"`
	EndTime        int64  `json:"end_time"`
	Pot            string `json:"pot"`
	SeedCommitment string `json:"seed_commitment"`
}

type ticketResponse struct {
	Id       uint64 `json:"id"`
	Owner    string `json:"owner"`
	Round    uint64 `json:"round"`
	MintedAt int64  `json:"minted_at"`
	URI      string `json:"uri"`
}

type accountTicketsResponse struct {
	Owner   string           `json:"owner"`
	Balance uint64           `json:"balance"`
	Tickets []ticketResponse `json:"tickets"`
}

type drawResponse struct {
	Round      uint64 `json:"round"`
	Winner     string `json:"winner,omitempty"`
	TicketId   uint64 `json:"ticket_id,omitempty"`
	Amount     string `json:"amount"`
	Seed       string `json:"seed,omitempty"`
	RolledOver bool   `json:"rolled_over"`
	Timestamp  int64  `json:"timestamp"`
}

type roundDetailsResponse struct {
	Number         uint64   `json:"number"`
	Stage          string   `json:"stage"`
	TicketPrice    string   `json:"ticket_price"`
	StartedAt      int64    `json:"started_at"`
	EndTime        int64    `json:"end_time"`
	EndedAt        int64    `json:"ended_at"`
	Pot            string   `json:"pot"`
	TicketIds      []uint64 `json:"ticket_ids"`
	Winner         string   `json:"winner,omitempty"`
	WinningTicket  uint64   `json:"winning_ticket,omitempty"`
	PrizeAmount    string   `json:"prize_amount"`
	RolledOver     bool     `json:"rolled_over"`
	SeedCommitment string   `json:"seed_commitment"`
	SeedSecret     string   `json:"seed_secret,omitempty"`
	Seed           string   `json:"seed,omitempty"`
}

type roundsResponse struct {
	Rounds           []uint64 `json:"rounds"`
	SettledRounds    uint64   `json:"settled_rounds"`
	RolledOverRounds uint64   `json:"rolled_over_rounds"`
	TotalPaidOut     string   `json:"total_paid_out"`
}

type verificationResponse struct {
	Round                 uint64 `json:"round"`
	CommitmentValid       bool   `json:"commitment_valid"`
	Seed                  string `json:"seed,omitempty"`
	ExpectedWinningTicket uint64 `json:"expected_winning_ticket,omitempty"`
	ExpectedWinner        string `json:"expected_winner,omitempty"`
	WinningTicket         uint64 `json:"winning_ticket,omitempty"`
	Winner                string `json:"winner,omitempty"`
	Valid                 bool   `json:"valid"`
}

type balanceResponse struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
	Escrow  string `json:"escrow"`
}

// eventMessage is the payload of a server sent event, its name is the event
// type.
type eventMessage struct {
	Type      string `json:"type"`
	Round     uint64 `json:"round"`
	Buyer     string `json:"buyer,omitempty"`
	TicketId  uint64 `json:"ticket_id,omitempty"`
	Winner    string `json:"winner,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Pot       string `json:"pot,omitempty"`
	Seed      string `json:"seed,omitempty"`
	EndTime   int64  `json:"end_time,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type formatter struct {
	decimals int32
}

func (f formatter) amount(units uint64) string {
	return amount.Format(units, f.decimals)
}

func (f formatter) info(info *application.LotteryInfo) infoResponse {
	return infoResponse{
		TicketLedgerAddress: info.TicketLedgerAddress,
		Owner:               info.Owner,
		TicketPrice:         f.amount(info.TicketPrice),
		RoundDuration:       info.RoundDuration,
		DrawPolicy:          string(info.DrawPolicy),
		CurrentRound:        info.CurrentRound,
		Stage:               info.Stage.String(),
		RoundStartTime:      info.RoundStartTime,
		RoundEndTime:        info.RoundEndTime,
		RemainingTime:       info.RemainingTime,
		IsActive:            info.IsActive,
		CurrentPot:          f.amount(info.CurrentPot),
		TicketsCount:        info.TicketsCount,
		SeedCommitment:      info.SeedCommitment,
		LastWinner:          info.LastWinner,
		LastWinAmount:       f.amount(info.LastWinAmount),
		LastDrawRound:       info.LastDrawRound,
	}
}

func (f formatter) round(round *application.RoundInfo) roundResponse {
	return roundResponse{
		Number:         round.Number,
		TicketPrice:    f.amount(round.TicketPrice),
		StartTime:      round.StartTime,
		EndTime:        round.EndTime,
		Pot:            f.amount(round.Pot),
		SeedCommitment: round.SeedCommitment,
	}
}

func (f formatter) ticket(ticket *application.TicketInfo) ticketResponse {
	return ticketResponse{
		Id:       ticket.Id,
		Owner:    ticket.Owner,
		Round:    ticket.Round,
		MintedAt: ticket.MintedAt,
		URI:      ticket.URI,
	}
}

func (f formatter) accountTickets(tickets *application.AccountTickets) accountTicketsResponse {
	list := make([]ticketResponse, 0, len(tickets.Tickets))
	for i := range tickets.Tickets {
		list = append(list, f.ticket(&tickets.Tickets[i]))
	}
	return accountTicketsResponse{
		Owner:   tickets.Owner,
		Balance: tickets.Balance,
		Tickets: list,
	}
}

func (f formatter) draw(result *domain.DrawResult) drawResponse {
	return drawResponse{
		Round:      result.Round,
		Winner:     result.Winner,
		TicketId:   result.TicketId,
		Amount:     f.amount(result.Amount),
		Seed:       result.Seed,
		RolledOver: len(result.Winner) <= 0,
		Timestamp:  result.Timestamp,
	}
}

func (f formatter) roundDetails(details *application.RoundDetails) roundDetailsResponse {
	return roundDetailsResponse{
		Number:         details.Number,
		Stage:          details.Stage.String(),
		TicketPrice:    f.amount(details.TicketPrice),
		StartedAt:      details.StartedAt,
		EndTime:        details.EndTime,
		EndedAt:        details.EndedAt,
		Pot:            f.amount(details.Pot),
		TicketIds:      details.TicketIds,
		Winner:         details.Winner,
		WinningTicket:  details.WinningTicket,
		PrizeAmount:    f.amount(details.PrizeAmount),
		RolledOver:     details.RolledOver,
		SeedCommitment: details.SeedCommitment,
		SeedSecret:     details.SeedSecret,
		Seed:           details.Seed,
	}
}

func (f formatter) verification(v *application.DrawVerification) verificationResponse {
	return verificationResponse{
		Round:                 v.Round,
		CommitmentValid:       v.CommitmentValid,
		Seed:                  v.Seed,
		ExpectedWinningTicket: v.ExpectedWinningTicket,
		ExpectedWinner:        v.ExpectedWinner,
		WinningTicket:         v.WinningTicket,
		Winner:                v.Winner,
		Valid:                 v.Valid,
	}
}

func (f formatter) event(event domain.Event) (*eventMessage, bool) {
	msg := &eventMessage{Type: event.GetType().String()}
	switch e := event.(type) {
	case domain.RoundStarted:
		msg.Round = e.Round
		msg.Pot = f.amount(e.Pot)
		msg.EndTime = e.EndTime
		msg.Timestamp = e.Timestamp
	case domain.TicketPurchased:
		msg.Round = e.Round
		msg.Buyer = e.Buyer
		msg.TicketId = e.TicketId
		msg.Amount = f.amount(e.Amount)
		msg.Timestamp = e.Timestamp
	case domain.LotteryDrawn:
		msg.Round = e.Round
		msg.Winner = e.Winner
		msg.TicketId = e.TicketId
		msg.Amount = f.amount(e.Amount)
		msg.Seed = e.Seed
		msg.Timestamp = e.Timestamp
	case domain.RoundRolledOver:
		msg.Round = e.Round
		msg.Pot = f.amount(e.CarriedPot)
		msg.Timestamp = e.Timestamp
	default:
		return nil, false
	}
	return msg, true
}
