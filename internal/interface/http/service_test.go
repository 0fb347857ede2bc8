package httpservice_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arkade-os/lotteryd/internal/core/application"
	"github.com/arkade-os/lotteryd/internal/core/domain"
	"github.com/arkade-os/lotteryd/internal/core/ports"
	httpservice "github.com/arkade-os/lotteryd/internal/interface/http"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const owner = "operator"

var config = httpservice.Config{Owner: owner, Decimals: 8}

func TestRouter(t *testing.T) {
	t.Run("info", testInfo)
	t.Run("buy ticket", testBuyTicket)
	t.Run("tickets", testTickets)
	t.Run("draw", testDraw)
	t.Run("admin", testAdmin)
	t.Run("events", testEvents)
}

func testInfo(t *testing.T) {
	svc := newMockedService()
	svc.On("GetLotteryInfo", mock.Anything).Return(&application.LotteryInfo{
		Owner:          owner,
		TicketPrice:    1_000_000,
		RoundDuration:  3600,
		DrawPolicy:     application.DrawPolicyOwner,
		CurrentRound:   3,
		Stage:          domain.RoundOpenStage,
		IsActive:       true,
		CurrentPot:     5_000_000,
		TicketsCount:   5,
		LastWinner:     "alice",
		LastWinAmount:  2_000_000,
		LastDrawRound:  2,
		SeedCommitment: "ab",
	}, nil)
	router := httpservice.NewRouter(config, svc, &mockedAdminService{})

	rec := doRequest(router, http.MethodGet, "/v1/info", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "0.01000000", body["ticket_price"])
	require.Equal(t, "0.05000000", body["current_pot"])
	require.Equal(t, "OPEN", body["stage"])
	require.Equal(t, "owner", body["draw_policy"])
	require.Equal(t, "alice", body["last_winner"])
	require.Equal(t, "0.02000000", body["last_win_amount"])
	require.EqualValues(t, 3, body["current_round"])

	rec = doRequest(router, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func testBuyTicket(t *testing.T) {
	svc := newMockedService()
	svc.On("BuyTicket", mock.Anything, "alice", uint64(1_000_000)).Return(&application.TicketInfo{
		Id: 7, Owner: "alice", Round: 2, MintedAt: 1_700_000_000, URI: "https://t/7",
	}, nil)
	svc.On("BuyTicket", mock.Anything, "alice", uint64(2_000_000)).
		Return(nil, fmt.Errorf("%w: expected 1000000, got 2000000", domain.ErrIncorrectPrice))
	svc.On("BuyTicket", mock.Anything, "bob", uint64(1_000_000)).
		Return(nil, domain.ErrRoundExpired)
	router := httpservice.NewRouter(config, svc, &mockedAdminService{})

	fixtures := []struct {
		name           string
		account        string
		body           string
		expectedStatus int
		expectedBody   string
	}{
		{"success", "alice", `{"amount":"0.01"}`, http.StatusCreated, `"id":7`},
		{"missing account", "", `{"amount":"0.01"}`, http.StatusUnauthorized, "missing X-Account header"},
		{"incorrect price", "alice", `{"amount":"0.02"}`, http.StatusBadRequest, "incorrect ticket price"},
		{"expired", "bob", `{"amount":"0.01"}`, http.StatusConflict, domain.ErrRoundExpired.Error()},
		{"bad amount", "alice", `{"amount":"ten"}`, http.StatusBadRequest, "invalid amount format"},
		{"too precise", "alice", `{"amount":"0.000000001"}`, http.StatusBadRequest, "more than 8 decimals"},
		{"bad body", "alice", `{`, http.StatusBadRequest, "invalid request body"},
	}
	for _, f := range fixtures {
		t.Run(f.name, func(t *testing.T) {
			rec := doRequest(router, http.MethodPost, "/v1/tickets", f.account, f.body)
			require.Equal(t, f.expectedStatus, rec.Code)
			require.Contains(t, rec.Body.String(), f.expectedBody)
		})
	}
	svc.AssertNumberOfCalls(t, "BuyTicket", 3)
}

func testTickets(t *testing.T) {
	svc := newMockedService()
	ticket := &application.TicketInfo{Id: 1, Owner: "alice", Round: 1, URI: "https://t/1"}
	svc.On("GetTicket", mock.Anything, uint64(1)).Return(ticket, nil)
	svc.On("GetTicket", mock.Anything, uint64(2)).
		Return(nil, fmt.Errorf("%w: ticket 2", domain.ErrNotFound))
	svc.On("GetAccountTickets", mock.Anything, "alice").Return(&application.AccountTickets{
		Owner: "alice", Balance: 1, Tickets: []application.TicketInfo{*ticket},
	}, nil)
	svc.On("GetTicketOfOwnerByIndex", mock.Anything, "alice", uint64(0)).Return(ticket, nil)
	router := httpservice.NewRouter(config, svc, &mockedAdminService{})

	rec := doRequest(router, http.MethodGet, "/v1/tickets/1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"uri":"https://t/1"`)

	rec = doRequest(router, http.MethodGet, "/v1/tickets/2", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(router, http.MethodGet, "/v1/tickets/abc", "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, http.MethodGet, "/v1/accounts/alice/tickets", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tickets struct {
		Balance uint64 `json:"balance"`
		Tickets []struct {
			Id uint64 `json:"id"`
		} `json:"tickets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tickets))
	require.Equal(t, uint64(1), tickets.Balance)
	require.Len(t, tickets.Tickets, 1)

	rec = doRequest(router, http.MethodGet, "/v1/accounts/alice/tickets/0", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodGet, "/v1/accounts/alice/tickets/-1", "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func testDraw(t *testing.T) {
	svc := newMockedService()
	svc.On("DrawLottery", mock.Anything, owner).Return(&domain.DrawResult{
		Round: 1, Winner: "alice", TicketId: 3, Amount: 3_000_000, Seed: "ff",
	}, nil).Once()
	svc.On("DrawLottery", mock.Anything, owner).
		Return(nil, fmt.Errorf("%w: wallet offline", domain.ErrPayoutFailed)).Once()
	svc.On("DrawLottery", mock.Anything, "bob").Return(nil, domain.ErrUnauthorized)
	router := httpservice.NewRouter(config, svc, &mockedAdminService{})

	rec := doRequest(router, http.MethodPost, "/v1/admin/round/draw", owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"amount":"0.03000000"`)
	require.Contains(t, rec.Body.String(), `"rolled_over":false`)

	rec = doRequest(router, http.MethodPost, "/v1/draw", owner, "")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	rec = doRequest(router, http.MethodPost, "/v1/draw", "bob", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(router, http.MethodPost, "/v1/draw", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func testAdmin(t *testing.T) {
	svc := newMockedService()
	svc.On("StartRound", mock.Anything, owner).Return(&application.RoundInfo{
		Number: 2, TicketPrice: 1_000_000, SeedCommitment: "cd",
	}, nil).Once()
	svc.On("StartRound", mock.Anything, owner).Return(nil, domain.ErrRoundAlreadyOpen)

	admin := &mockedAdminService{}
	admin.On("GetRounds", mock.Anything, int64(0), int64(0)).Return([]uint64{1, 2}, nil)
	admin.On("GetRoundStats", mock.Anything).Return(&domain.RoundStats{
		SettledRounds: 1, RolledOverRounds: 1, TotalPaidOut: 0,
	}, nil)
	admin.On("GetRoundDetails", mock.Anything, uint64(1)).Return(&application.RoundDetails{
		Number: 1, Stage: domain.RoundSettledStage, RolledOver: true, TicketIds: []uint64{},
	}, nil)
	admin.On("VerifyDraw", mock.Anything, uint64(1)).Return(&application.DrawVerification{
		Round: 1, CommitmentValid: true, Valid: true,
	}, nil)
	admin.On("GetWalletBalance", mock.Anything, "alice").Return(uint64(3_000_000), nil)
	admin.On("GetEscrowBalance", mock.Anything).Return(uint64(0), nil)
	router := httpservice.NewRouter(config, svc, admin)

	rec := doRequest(router, http.MethodPost, "/v1/admin/round/start", "alice", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	svc.AssertNotCalled(t, "StartRound", mock.Anything, "alice")

	rec = doRequest(router, http.MethodPost, "/v1/admin/round/start", owner, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"number":2`)

	rec = doRequest(router, http.MethodPost, "/v1/admin/round/start", owner, "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(router, http.MethodGet, "/v1/admin/rounds", owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"rounds":[1,2]`)

	rec = doRequest(router, http.MethodGet, "/v1/admin/rounds?after=10&before=5", owner, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, http.MethodGet, "/v1/admin/rounds/1", owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"stage":"SETTLED"`)

	rec = doRequest(router, http.MethodGet, "/v1/admin/rounds/1/verify", owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"valid":true`)

	rec = doRequest(router, http.MethodGet, "/v1/admin/wallet/alice", owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"balance":"0.03000000"`)
}

func testEvents(t *testing.T) {
	svc := newMockedService()
	router := httpservice.NewRouter(config, svc, &mockedAdminService{})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, server.URL+"/v1/events?topics=lottery_drawn", nil,
	)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The listener registers once the stream is open, keep publishing until it
	// gets through.
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				svc.eventsCh <- []domain.Event{
					domain.TicketPurchased{
						RoundEvent: domain.RoundEvent{Round: 1, Type: domain.EventTypeTicketPurchased},
						Buyer:      "bob",
						TicketId:   1,
						Amount:     1_000_000,
					},
					domain.LotteryDrawn{
						RoundEvent: domain.RoundEvent{Round: 1, Type: domain.EventTypeLotteryDrawn},
						Winner:     "alice",
						TicketId:   2,
						Amount:     2_000_000,
					},
				}
			}
		}
	}()

	scanner := bufio.NewScanner(resp.Body)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event:") {
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		}
		if strings.HasPrefix(line, "data:") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			break
		}
	}
	require.Equal(t, "lottery_drawn", event)

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(data), &msg))
	require.Equal(t, "alice", msg["winner"])
	require.Equal(t, "0.02000000", msg["amount"])
}

func doRequest(router http.Handler, method, path, account, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if len(account) > 0 {
		req.Header.Set("X-Account", account)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

type mockedService struct {
	mock.Mock
	eventsCh chan []domain.Event
}

func newMockedService() *mockedService {
	return &mockedService{eventsCh: make(chan []domain.Event)}
}

func (m *mockedService) Start() error { return nil }
func (m *mockedService) Stop()        {}

func (m *mockedService) StartRound(ctx context.Context, caller string) (*application.RoundInfo, error) {
	args := m.Called(ctx, caller)
	var res *application.RoundInfo
	if a := args.Get(0); a != nil {
		res = a.(*application.RoundInfo)
	}
	return res, args.Error(1)
}

func (m *mockedService) BuyTicket(
	ctx context.Context, buyer string, amount uint64,
) (*application.TicketInfo, error) {
	args := m.Called(ctx, buyer, amount)
	var res *application.TicketInfo
	if a := args.Get(0); a != nil {
		res = a.(*application.TicketInfo)
	}
	return res, args.Error(1)
}

func (m *mockedService) DrawLottery(ctx context.Context, caller string) (*domain.DrawResult, error) {
	args := m.Called(ctx, caller)
	var res *domain.DrawResult
	if a := args.Get(0); a != nil {
		res = a.(*domain.DrawResult)
	}
	return res, args.Error(1)
}

func (m *mockedService) GetLotteryInfo(ctx context.Context) (*application.LotteryInfo, error) {
	args := m.Called(ctx)
	var res *application.LotteryInfo
	if a := args.Get(0); a != nil {
		res = a.(*application.LotteryInfo)
	}
	return res, args.Error(1)
}

func (m *mockedService) GetTicket(ctx context.Context, id uint64) (*application.TicketInfo, error) {
	args := m.Called(ctx, id)
	var res *application.TicketInfo
	if a := args.Get(0); a != nil {
		res = a.(*application.TicketInfo)
	}
	return res, args.Error(1)
}

func (m *mockedService) GetAccountTickets(
	ctx context.Context, owner string,
) (*application.AccountTickets, error) {
	args := m.Called(ctx, owner)
	var res *application.AccountTickets
	if a := args.Get(0); a != nil {
		res = a.(*application.AccountTickets)
	}
	return res, args.Error(1)
}

func (m *mockedService) GetTicketOfOwnerByIndex(
	ctx context.Context, owner string, index uint64,
) (*application.TicketInfo, error) {
	args := m.Called(ctx, owner, index)
	var res *application.TicketInfo
	if a := args.Get(0); a != nil {
		res = a.(*application.TicketInfo)
	}
	return res, args.Error(1)
}

func (m *mockedService) GetEventsChannel(ctx context.Context) <-chan []domain.Event {
	return m.eventsCh
}

type mockedAdminService struct {
	mock.Mock
}

func (m *mockedAdminService) Wallet() ports.WalletService { return nil }

func (m *mockedAdminService) GetRoundDetails(
	ctx context.Context, number uint64,
) (*application.RoundDetails, error) {
	args := m.Called(ctx, number)
	var res *application.RoundDetails
	if a := args.Get(0); a != nil {
		res = a.(*application.RoundDetails)
	}
	return res, args.Error(1)
}

func (m *mockedAdminService) GetRounds(ctx context.Context, after, before int64) ([]uint64, error) {
	args := m.Called(ctx, after, before)
	var res []uint64
	if a := args.Get(0); a != nil {
		res = a.([]uint64)
	}
	return res, args.Error(1)
}

func (m *mockedAdminService) GetRoundStats(ctx context.Context) (*domain.RoundStats, error) {
	args := m.Called(ctx)
	var res *domain.RoundStats
	if a := args.Get(0); a != nil {
		res = a.(*domain.RoundStats)
	}
	return res, args.Error(1)
}

func (m *mockedAdminService) VerifyDraw(
	ctx context.Context, number uint64,
) (*application.DrawVerification, error) {
	args := m.Called(ctx, number)
	var res *application.DrawVerification
	if a := args.Get(0); a != nil {
		res = a.(*application.DrawVerification)
	}
	return res, args.Error(1)
}

func (m *mockedAdminService) GetWalletBalance(ctx context.Context, account string) (uint64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockedAdminService) GetEscrowBalance(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}
