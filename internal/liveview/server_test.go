package liveview

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/bet-client-sync/internal/apistub"
	"github.com/radieske/bet-client-sync/internal/fallback"
	"github.com/radieske/bet-client-sync/internal/gateway"
	"github.com/radieske/bet-client-sync/internal/hooks"
	"github.com/radieske/bet-client-sync/internal/hooks/dto"
	"github.com/radieske/bet-client-sync/internal/store"
)

type testEnv struct {
	stub *apistub.Server
	fb   *fallback.Controller
	hub  *Hub
	srv  *httptest.Server
}

func setup(t *testing.T, opts ...apistub.Option) *testEnv {
	t.Helper()
	stub := apistub.NewServer(nil, opts...)
	upstream := httptest.NewServer(stub.Router())
	t.Cleanup(upstream.Close)

	fb := fallback.New(nil)
	t.Cleanup(fb.Close)
	gw := gateway.New(upstream.URL, gateway.WithObserver(fb))
	s := store.New(nil, store.WithFetchTimeout(2*time.Second))
	t.Cleanup(s.Close)

	views := hooks.NewViews(s, gw)
	hub := NewHub(nil, views, fb, func(*http.Request) bool { return true })
	t.Cleanup(hub.Close)

	api := &API{
		Log:       zap.NewNop(),
		Views:     views,
		Mutations: hooks.NewMutations(s, gw, nil),
		Fallback:  fb,
		Hub:       hub,
	}
	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)
	return &testEnv{stub: stub, fb: fb, hub: hub, srv: srv}
}

type wireMsg struct {
	Type   string           `json:"type"`
	View   string           `json:"view"`
	Param  string           `json:"param"`
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  string           `json:"error"`
	Notice *fallback.Notice `json:"notice"`
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, pred func(wireMsg) bool) wireMsg {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var m wireMsg
		require.NoError(t, conn.ReadJSON(&m))
		if pred(m) {
			return m
		}
	}
}

func (e *testEnv) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	res, err := http.Post(e.srv.URL+path, "application/json", &buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	res, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func freshBalance(amount string) func(wireMsg) bool {
	return func(m wireMsg) bool {
		if m.Type != "view" || m.View != hooks.ResourceBalance || m.Status != "fresh" {
			return false
		}
		var snap dto.BalanceSnapshot
		if json.Unmarshal(m.Data, &snap) != nil {
			return false
		}
		return snap.Amount.Equal(decimal.RequireFromString(amount))
	}
}

func TestWSBalanceFollowsPlaceBet(t *testing.T) {
	e := setup(t)
	conn := e.dial(t)

	first := readUntil(t, conn, func(m wireMsg) bool { return m.Type == "fallback" })
	require.NotNil(t, first.Notice)
	assert.Equal(t, fallback.StateNormal, first.Notice.State)

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "subscribe", View: hooks.ResourceBalance}))
	readUntil(t, conn, freshBalance("100"))

	res := e.post(t, "/bets", dto.BetData{
		BetType: dto.BetTypeSingle,
		Selections: []dto.Selection{{
			EventName: "Lakers vs Celtics", Selection: "Lakers", Odds: decimal.RequireFromString("1.85"),
		}},
		TotalStake:      decimal.RequireFromString("10.00"),
		PotentialReturn: decimal.RequireFromString("18.50"),
		Currency:        "USD",
	})
	require.Equal(t, http.StatusOK, res.StatusCode)

	readUntil(t, conn, freshBalance("90"))
	assert.Equal(t, 2, e.stub.Hits("/user/balance"))
	assert.Equal(t, 1, e.hub.Connections())
}

func TestWSPingAndErrors(t *testing.T) {
	e := setup(t)
	conn := e.dial(t)

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "ping"}))
	readUntil(t, conn, func(m wireMsg) bool { return m.Type == "pong" })

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "subscribe", View: "casino"}))
	m := readUntil(t, conn, func(m wireMsg) bool { return m.Type == "error" })
	assert.Equal(t, "casino", m.View)

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "subscribe", View: hooks.ResourceTransactions, Param: "-1"}))
	m = readUntil(t, conn, func(m wireMsg) bool { return m.Type == "error" })
	assert.Equal(t, hooks.ResourceTransactions, m.View)
}

func TestWSUnsubscribeOnDisconnect(t *testing.T) {
	e := setup(t)
	conn := e.dial(t)
	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "subscribe", View: hooks.ResourceBalance}))
	readUntil(t, conn, freshBalance("100"))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return e.hub.Connections() == 0 }, 2*time.Second, 10*time.Millisecond)

	// sem assinantes, a invalidação não dispara refetch
	res := e.post(t, "/balance", dto.BalanceUpdate{Amount: decimal.NewFromInt(5), Type: "deposit"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, e.stub.Hits("/user/balance"))
}

func TestFallbackFlow(t *testing.T) {
	e := setup(t, apistub.WithQuota(1), apistub.WithEvents(
		dto.SportEvent{ID: "e1", Sport: "soccer"},
		dto.SportEvent{ID: "e2", Sport: "tennis"},
	))
	conn := e.dial(t)
	readUntil(t, conn, func(m wireMsg) bool { return m.Type == "fallback" })

	res := e.post(t, "/fallback/routes/"+fallback.RouteVirtualSports, nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	res = e.get(t, "/views/sports-events?param=soccer")
	require.Equal(t, http.StatusOK, res.StatusCode)

	res = e.get(t, "/views/sports-events?param=tennis")
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	m := readUntil(t, conn, func(m wireMsg) bool { return m.Type == "fallback" })
	require.NotNil(t, m.Notice)
	assert.Equal(t, fallback.StateDegraded, m.Notice.State)
	assert.Len(t, m.Notice.Routes, 2)
	assert.NotEmpty(t, m.Notice.ResetNotice)

	res = e.post(t, "/fallback/routes/casino", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res = e.post(t, "/fallback/routes/"+fallback.RouteVirtualSports, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var route fallback.Route
	require.NoError(t, json.NewDecoder(res.Body).Decode(&route))
	assert.Equal(t, fallback.RouteVirtualSports, route.Name)

	// ainda degradado: nenhuma nova tentativa automática
	assert.Equal(t, fallback.StateDegraded, e.fb.State())

	e.stub.ResetQuota()
	res = e.get(t, "/views/sports-events?param=tennis")
	require.Equal(t, http.StatusOK, res.StatusCode)

	res = e.get(t, "/fallback")
	var n fallback.Notice
	require.NoError(t, json.NewDecoder(res.Body).Decode(&n))
	assert.Equal(t, fallback.StateNormal, n.State)
	assert.Empty(t, n.Routes)
}

func TestMutationErrorsPassThrough(t *testing.T) {
	e := setup(t, apistub.WithBalance(decimal.NewFromInt(1)))

	res := e.post(t, "/bets", dto.BetData{
		BetType:    dto.BetTypeSingle,
		Selections: []dto.Selection{{EventName: "A vs B", Selection: "A", Odds: decimal.NewFromInt(2)}},
		TotalStake: decimal.NewFromInt(10),
	})
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "insufficient funds", body["error"])

	res = e.get(t, "/views/unknown")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}
