package apistub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/bet-client-sync/internal/hooks/dto"
	"github.com/radieske/bet-client-sync/pkg/contracts/events"
)

type recordingConfirmer struct {
	got []events.BetConfirmed
	err error
}

func (r *recordingConfirmer) PublishBetConfirmed(_ context.Context, e events.BetConfirmed) error {
	r.got = append(r.got, e)
	return r.err
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPlaceBetDebitsBalance(t *testing.T) {
	s := NewServer(nil)
	h := s.Router()

	rec := do(t, h, http.MethodPost, "/bets/place", dto.BetData{
		BetType:         dto.BetTypeSingle,
		Selections:      []dto.Selection{{EventName: "A vs B", Selection: "A", Odds: decimal.RequireFromString("1.85")}},
		TotalStake:      decimal.RequireFromString("10.00"),
		PotentialReturn: decimal.RequireFromString("18.50"),
		Currency:        "USD",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var bet dto.Bet
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&bet))
	assert.NotEmpty(t, bet.ID)
	assert.Equal(t, dto.BetStatusPending, bet.Status)

	rec = do(t, h, http.MethodGet, "/user/balance", nil)
	var bal dto.BalanceSnapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&bal))
	assert.True(t, bal.Amount.Equal(decimal.RequireFromString("90.00")), bal.Amount.String())

	rec = do(t, h, http.MethodGet, "/user/bets?status=pending", nil)
	var bets dto.BetsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&bets))
	require.Len(t, bets.Bets, 1)
	assert.Equal(t, bet.ID, bets.Bets[0].ID)

	rec = do(t, h, http.MethodGet, "/user/bets?status=won", nil)
	bets = dto.BetsResponse{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&bets))
	assert.Empty(t, bets.Bets)

	rec = do(t, h, http.MethodGet, "/user/transactions?limit=5", nil)
	var txs dto.TransactionsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&txs))
	require.Len(t, txs.Transactions, 1)
	assert.True(t, txs.Transactions[0].Amount.Equal(decimal.RequireFromString("-10.00")))
}

func TestPlaceBetRejections(t *testing.T) {
	h := NewServer(nil, WithBalance(decimal.RequireFromString("5"))).Router()

	rec := do(t, h, http.MethodPost, "/bets/place", dto.BetData{
		BetType:    dto.BetTypeSingle,
		Selections: []dto.Selection{{EventName: "A vs B", Selection: "A", Odds: decimal.RequireFromString("2")}},
		TotalStake: decimal.RequireFromString("10"),
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient funds")

	rec = do(t, h, http.MethodPost, "/bets/place", dto.BetData{BetType: dto.BetTypeSingle})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateBalance(t *testing.T) {
	h := NewServer(nil).Router()

	rec := do(t, h, http.MethodPost, "/balance/update", dto.BalanceUpdate{
		Amount: decimal.RequireFromString("25.50"),
		Type:   "deposit",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var bal dto.BalanceSnapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&bal))
	assert.True(t, bal.Amount.Equal(decimal.RequireFromString("125.50")))

	rec = do(t, h, http.MethodPost, "/balance/update", dto.BalanceUpdate{
		Amount: decimal.RequireFromString("-500"),
		Type:   "withdrawal",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, "/auth/session", nil)
	var sess dto.Session
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sess))
	require.NotNil(t, sess.User)
	assert.True(t, sess.User.Balance.Equal(decimal.RequireFromString("125.50")))
}

func TestSportsEventsQuota(t *testing.T) {
	s := NewServer(nil, WithQuota(2), WithEvents(
		dto.SportEvent{ID: "e1", Sport: "soccer"},
		dto.SportEvent{ID: "e2", Sport: "tennis"},
	))
	h := s.Router()

	rec := do(t, h, http.MethodGet, "/sports/events?sport=soccer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var evs dto.EventsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&evs))
	require.Len(t, evs.Events, 1)
	assert.Equal(t, "e1", evs.Events[0].ID)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/sports/events", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodGet, "/sports/events", nil).Code)
	assert.Equal(t, 3, s.Hits("/sports/events"))

	s.ResetQuota()
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/sports/events", nil).Code)
}

func TestTransactionsInvalidLimit(t *testing.T) {
	h := NewServer(nil).Router()
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/user/transactions?limit=x", nil).Code)
}

func TestPlaceBetPublishesConfirmation(t *testing.T) {
	conf := &recordingConfirmer{err: errors.New("kafka down")}
	h := NewServer(nil, WithConfirmer(conf)).Router()

	rec := do(t, h, http.MethodPost, "/bets/place", dto.BetData{
		BetType:    dto.BetTypeAccumulator,
		Selections: []dto.Selection{{EventName: "A vs B", Selection: "A", Odds: decimal.RequireFromString("2")}},
		TotalStake: decimal.RequireFromString("1"),
	})
	// falha de publicação não afeta a resposta
	require.Equal(t, http.StatusOK, rec.Code)

	var bet dto.Bet
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&bet))
	require.Len(t, conf.got, 1)
	assert.Equal(t, bet.ID, conf.got[0].BetID)
	assert.Equal(t, "user-demo", conf.got[0].UserID)
	assert.Equal(t, events.BetStatusConfirmed, conf.got[0].Status)
}
