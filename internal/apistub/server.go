// Package apistub implementa em memória a API remota consumida pelo cliente
// (apostas, saldo, transações, sessão e dados esportivos). Usado em
// desenvolvimento local e nos testes ponta a ponta.
package apistub

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/bet-client-sync/internal/hooks/dto"
	"github.com/radieske/bet-client-sync/pkg/contracts/events"
)

const defaultTransactionsLimit = 20

// Server guarda o estado de um único usuário autenticado
type Server struct {
	log *zap.Logger

	mu      sync.Mutex
	user    dto.User
	bets    []dto.Bet
	txs     []dto.Transaction // mais recente primeiro
	events  []dto.SportEvent
	quota   int // requisições de dados esportivos antes do 429; <= 0 = ilimitado
	used    int
	now     func() time.Time
	counter map[string]int // requisições atendidas por rota

	confirmer Confirmer
}

type Option func(*Server)

// WithQuota define quantas requisições /sports/* são atendidas antes de 429
func WithQuota(n int) Option { return func(s *Server) { s.quota = n } }

func WithBalance(amount decimal.Decimal) Option {
	return func(s *Server) { s.user.Balance = amount }
}

func WithEvents(evs ...dto.SportEvent) Option {
	return func(s *Server) { s.events = append(s.events, evs...) }
}

func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// WithConfirmer publica bet_confirmed para cada aposta aceita (simula o backend de liquidação)
func WithConfirmer(c Confirmer) Option { return func(s *Server) { s.confirmer = c } }

// NewServer instancia o stub com um usuário demo
func NewServer(log *zap.Logger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		log: log,
		user: dto.User{
			ID:       "user-demo",
			Username: "demo",
			Tier:     "standard",
			Balance:  decimal.RequireFromString("100.00"),
			Currency: "USD",
		},
		now:     time.Now,
		counter: make(map[string]int),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router retorna as rotas da API
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.count)
	r.Post("/bets/place", s.placeBet)
	r.Post("/balance/update", s.updateBalance)
	r.Get("/user/bets", s.listBets)
	r.Get("/user/balance", s.getBalance)
	r.Get("/user/transactions", s.listTransactions)
	r.Get("/auth/session", s.getSession)
	r.Get("/sports/events", s.listEvents)
	return r
}

// Hits devolve quantas requisições chegaram em path
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter[path]
}

// ResetQuota zera o consumo (novo ciclo mensal)
func (s *Server) ResetQuota() {
	s.mu.Lock()
	s.used = 0
	s.mu.Unlock()
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.counter[r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.BetData
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if len(req.Selections) == 0 || !req.TotalStake.IsPositive() {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.BetType != dto.BetTypeSingle && req.BetType != dto.BetTypeAccumulator {
		writeError(w, http.StatusBadRequest, "invalid bet type")
		return
	}

	s.mu.Lock()
	if req.Currency != "" && req.Currency != s.user.Currency {
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, "currency mismatch")
		return
	}
	if s.user.Balance.LessThan(req.TotalStake) {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "insufficient funds")
		return
	}

	now := s.now().UTC()
	bet := dto.Bet{
		ID:              uuid.NewString(),
		UserID:          s.user.ID,
		BetType:         req.BetType,
		Selections:      req.Selections,
		TotalStake:      req.TotalStake,
		PotentialReturn: req.PotentialReturn,
		Currency:        s.user.Currency,
		Status:          dto.BetStatusPending,
		PlacedAt:        now,
	}
	s.bets = append([]dto.Bet{bet}, s.bets...)
	s.user.Balance = s.user.Balance.Sub(req.TotalStake)
	s.txs = append([]dto.Transaction{{
		Amount:      req.TotalStake.Neg(),
		Type:        "bet",
		Description: "bet " + bet.ID,
		Timestamp:   now,
	}}, s.txs...)
	s.mu.Unlock()

	s.log.Info("bet placed", zap.String("bet_id", bet.ID), zap.Stringer("stake", req.TotalStake))
	if s.confirmer != nil {
		err := s.confirmer.PublishBetConfirmed(r.Context(), events.BetConfirmed{
			BetID:  bet.ID,
			UserID: bet.UserID,
			Status: events.BetStatusConfirmed,
			Ts:     now,
		})
		if err != nil {
			s.log.Warn("publish bet_confirmed failed", zap.String("bet_id", bet.ID), zap.Error(err))
		}
	}
	writeJSON(w, bet)
}

func (s *Server) updateBalance(w http.ResponseWriter, r *http.Request) {
	var req dto.BalanceUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.Type == "" || req.Amount.IsZero() {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.user.Balance.Add(req.Amount)
	if next.IsNegative() {
		writeError(w, http.StatusConflict, "insufficient funds")
		return
	}
	s.user.Balance = next
	s.txs = append([]dto.Transaction{{
		Amount:      req.Amount,
		Type:        req.Type,
		Description: req.Description,
		Timestamp:   s.now().UTC(),
	}}, s.txs...)

	writeJSON(w, dto.BalanceSnapshot{Amount: s.user.Balance, Currency: s.user.Currency})
}

func (s *Server) listBets(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	s.mu.Lock()
	out := make([]dto.Bet, 0, len(s.bets))
	for _, b := range s.bets {
		if status == "" || b.Status == status {
			out = append(out, b)
		}
	}
	s.mu.Unlock()

	writeJSON(w, dto.BetsResponse{Bets: out})
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	snap := dto.BalanceSnapshot{Amount: s.user.Balance, Currency: s.user.Currency}
	s.mu.Unlock()
	writeJSON(w, snap)
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	limit := defaultTransactionsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	s.mu.Lock()
	n := min(limit, len(s.txs))
	out := append([]dto.Transaction(nil), s.txs[:n]...)
	s.mu.Unlock()

	writeJSON(w, dto.TransactionsResponse{Transactions: out})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u := s.user
	s.mu.Unlock()
	writeJSON(w, dto.Session{User: &u})
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	sport := r.URL.Query().Get("sport")

	s.mu.Lock()
	if s.quota > 0 && s.used >= s.quota {
		s.mu.Unlock()
		writeError(w, http.StatusTooManyRequests, "monthly request quota exhausted")
		return
	}
	s.used++
	out := make([]dto.SportEvent, 0, len(s.events))
	for _, ev := range s.events {
		if sport == "" || ev.Sport == sport {
			out = append(out, ev)
		}
	}
	s.mu.Unlock()

	writeJSON(w, dto.EventsResponse{Events: out})
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
