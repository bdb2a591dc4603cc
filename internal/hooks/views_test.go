package hooks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/radieske/bet-client-sync/internal/gateway"
	"github.com/radieske/bet-client-sync/internal/hooks/dto"
	"github.com/radieske/bet-client-sync/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(nil, store.WithFetchTimeout(time.Second))
	t.Cleanup(s.Close)
	return s
}

func TestViewsKeysAndPaths(t *testing.T) {
	gw := &MockRequester{}
	gw.On("Request", mock.Anything, gateway.MethodGet, "/user/bets?status=pending", nil, mock.Anything).
		Return(nil).Run(respond(dto.BetsResponse{Bets: []dto.Bet{{ID: "b1"}}})).Once()
	gw.On("Request", mock.Anything, gateway.MethodGet, "/user/transactions?limit=10", nil, mock.Anything).
		Return(nil).Run(respond(dto.TransactionsResponse{Transactions: []dto.Transaction{{Type: "deposit"}}})).Once()
	gw.On("Request", mock.Anything, gateway.MethodGet, "/sports/events?sport=soccer", nil, mock.Anything).
		Return(nil).Run(respond(dto.EventsResponse{Events: []dto.SportEvent{{ID: "e1"}}})).Once()
	gw.On("Request", mock.Anything, gateway.MethodGet, "/auth/session", nil, mock.Anything).
		Return(nil).Run(respond(dto.Session{User: &dto.User{ID: "u1"}})).Once()

	v := NewViews(newTestStore(t), gw)
	ctx := context.Background()

	bets := v.Bets(dto.BetStatusPending)
	assert.Equal(t, "bets/pending", bets.Key().String())
	got, err := bets.Read(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b1", got[0].ID)

	txs := v.Transactions(10)
	assert.Equal(t, "transactions/10", txs.Key().String())
	gotTx, err := txs.Read(ctx)
	require.NoError(t, err)
	assert.Len(t, gotTx, 1)

	evs := v.Events("soccer")
	assert.Equal(t, "sports-events/soccer", evs.Key().String())
	gotEv, err := evs.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "e1", gotEv[0].ID)

	sess, err := v.AuthSession().Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.User.ID)

	// segunda leitura vem do cache
	_, err = bets.Read(ctx)
	require.NoError(t, err)

	assert.Equal(t, "bets", v.Bets("").Key().String())
	assert.Equal(t, "transactions", v.Transactions(0).Key().String())
	gw.AssertExpectations(t)
}

func TestViewReadSurfacesGatewayError(t *testing.T) {
	gw := &MockRequester{}
	gw.On("Request", mock.Anything, gateway.MethodGet, "/user/balance", nil, mock.Anything).
		Return(&gateway.Error{Status: 500, Message: "boom", Path: "/user/balance"})

	v := NewViews(newTestStore(t), gw)
	_, err := v.Balance().Read(context.Background())
	require.Error(t, err)

	var ferr *store.TransientFetchError
	require.True(t, errors.As(err, &ferr))
	var gerr *gateway.Error
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, "boom", gerr.Message)

	st, ok := v.Balance().Current()
	require.True(t, ok)
	assert.Equal(t, store.StatusStale, st.Status)
	assert.False(t, st.HasData)
	assert.Error(t, st.Err)
}

func TestViewQuotaErrorIsTransientFetchError(t *testing.T) {
	quota := &gateway.QuotaExhaustedError{Upstream: &gateway.Error{Status: 429, Path: "/sports/events"}}
	gw := &MockRequester{}
	gw.On("Request", mock.Anything, gateway.MethodGet, "/sports/events", nil, mock.Anything).Return(quota)

	_, err := NewViews(newTestStore(t), gw).Events("").Read(context.Background())

	var ferr *store.TransientFetchError
	assert.True(t, errors.As(err, &ferr))
	var qerr *gateway.QuotaExhaustedError
	assert.True(t, errors.As(err, &qerr))
}

func TestViewSubscribeDeliversTypedState(t *testing.T) {
	gw := &MockRequester{}
	gw.On("Request", mock.Anything, gateway.MethodGet, "/user/balance", nil, mock.Anything).
		Return(nil).Run(respond(dto.BalanceSnapshot{Amount: decimal.RequireFromString("42.00"), Currency: "USD"}))

	v := NewViews(newTestStore(t), gw)

	var mu sync.Mutex
	var states []State[dto.BalanceSnapshot]
	unsub, err := v.Balance().Subscribe(func(st State[dto.BalanceSnapshot]) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer unsub()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) > 0 && states[len(states)-1].Status == store.StatusFresh
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	last := states[len(states)-1]
	first := states[0]
	mu.Unlock()

	assert.False(t, first.HasData)
	assert.True(t, last.HasData)
	assert.True(t, last.Data.Amount.Equal(decimal.RequireFromString("42")))
	assert.Equal(t, "USD", last.Data.Currency)
}

func TestViewReadRejectsForeignValueType(t *testing.T) {
	s := newTestStore(t)
	v := NewViews(s, &MockRequester{})

	// outro fetcher ocupou a chave de balance com um int
	_, err := s.Read(context.Background(), store.NewKey(ResourceBalance), func(context.Context) (any, error) { return 3, nil })
	require.NoError(t, err)

	got, err := v.Balance().Read(context.Background())
	var terr *TypeMismatchError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "balance", terr.Key.String())
	assert.True(t, got.Amount.IsZero())

	st, ok := v.Balance().Current()
	require.True(t, ok)
	assert.False(t, st.HasData)
	assert.True(t, errors.As(st.Err, &terr))
}
