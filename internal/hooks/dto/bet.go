package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type BetType string

const (
	BetTypeSingle      BetType = "single"
	BetTypeAccumulator BetType = "accumulator"
)

// Status de aposta usados como filtro em GET /user/bets?status=
const (
	BetStatusPending = "pending"
	BetStatusWon     = "won"
	BetStatusLost    = "lost"
	BetStatusVoid    = "void"
)

// Selection é uma perna da aposta (evento, seleção e odd vista pelo usuário)
type Selection struct {
	EventName string          `json:"eventName"`
	Selection string          `json:"selection"`
	Odds      decimal.Decimal `json:"odds"`
}

// BetData é o corpo de POST /bets/place. Validação é feita pelo servidor.
type BetData struct {
	BetType         BetType         `json:"betType"`
	Selections      []Selection     `json:"selections"`
	TotalStake      decimal.Decimal `json:"totalStake"`
	PotentialReturn decimal.Decimal `json:"potentialReturn"`
	Currency        string          `json:"currency"`
}

// Bet é a aposta como o servidor a devolve. Só o servidor altera
// Status/ActualReturn/SettledAt; o cliente nunca apaga apostas.
type Bet struct {
	ID              string           `json:"id"`
	UserID          string           `json:"userId"`
	BetType         BetType          `json:"betType"`
	Selections      []Selection      `json:"selections"`
	TotalStake      decimal.Decimal  `json:"totalStake"`
	PotentialReturn decimal.Decimal  `json:"potentialReturn"`
	ActualReturn    *decimal.Decimal `json:"actualReturn,omitempty"`
	Currency        string           `json:"currency"`
	Status          string           `json:"status"`
	PlacedAt        time.Time        `json:"placedAt"`
	SettledAt       *time.Time       `json:"settledAt,omitempty"`
}

// BetsResponse: GET /user/bets
type BetsResponse struct {
	Bets []Bet `json:"bets"`
}
