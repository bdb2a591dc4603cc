// Package liveview expõe o estado do cliente para os renderizadores de UI:
// WebSocket com as views do cache e o aviso de fallback, mais endpoints HTTP
// para as mutações e para a escolha de rota alternativa.
package liveview

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/bet-client-sync/internal/fallback"
	"github.com/radieske/bet-client-sync/internal/gateway"
	"github.com/radieske/bet-client-sync/internal/hooks"
	"github.com/radieske/bet-client-sync/internal/hooks/dto"
)

// Mutator é o contrato das mutation hooks usado pelos handlers
type Mutator interface {
	PlaceBet(ctx context.Context, data dto.BetData) (dto.Bet, error)
	UpdateBalance(ctx context.Context, upd dto.BalanceUpdate) (dto.BalanceSnapshot, error)
}

type API struct {
	Log       *zap.Logger
	Views     *hooks.Views
	Mutations Mutator
	Fallback  *fallback.Controller
	Hub       *Hub
}

// Router retorna o roteador HTTP
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", a.Hub.HandleWS)
	r.Get("/views/{view}", a.readView) // ?param=
	r.Post("/bets", a.placeBet)
	r.Post("/balance", a.updateBalance)
	r.Get("/fallback", a.getFallback)
	r.Post("/fallback/routes/{name}", a.chooseRoute)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// readView lê uma view pelo cache (busca só se ausente ou stale)
func (a *API) readView(w http.ResponseWriter, r *http.Request) {
	b, err := resolve(a.Views, chi.URLParam(r, "view"), r.URL.Query().Get("param"))
	if err != nil {
		if errors.Is(err, ErrUnknownView) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := b.read(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (a *API) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.BetData
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	bet, err := a.Mutations.PlaceBet(r.Context(), req)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

func (a *API) updateBalance(w http.ResponseWriter, r *http.Request) {
	var req dto.BalanceUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	snap, err := a.Mutations.UpdateBalance(r.Context(), req)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) getFallback(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.Fallback.Notice())
}

func (a *API) chooseRoute(w http.ResponseWriter, r *http.Request) {
	route, err := a.Fallback.Choose(chi.URLParam(r, "name"))
	switch {
	case errors.Is(err, fallback.ErrNotDegraded):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, fallback.ErrUnknownRoute):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, route)
	}
}

// writeUpstreamError repassa status 4xx do servidor remoto; o resto vira 502.
// Cota esgotada vira 503 para a UI exibir o aviso de fallback.
func writeUpstreamError(w http.ResponseWriter, err error) {
	var qerr *gateway.QuotaExhaustedError
	if errors.As(err, &qerr) {
		writeError(w, http.StatusServiceUnavailable, qerr.Error())
		return
	}
	var gerr *gateway.Error
	if errors.As(err, &gerr) {
		status := http.StatusBadGateway
		if gerr.Status >= 400 && gerr.Status < 500 {
			status = gerr.Status
		}
		writeError(w, status, gerr.Message)
		return
	}
	writeError(w, http.StatusBadGateway, err.Error())
}
