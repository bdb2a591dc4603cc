package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// SportEvent vem da fonte primária de dados esportivos (GET /sports/events)
type SportEvent struct {
	ID           string          `json:"id"`
	Sport        string          `json:"sport"`
	HomeTeam     string          `json:"homeTeam"`
	AwayTeam     string          `json:"awayTeam"`
	CommenceTime time.Time       `json:"commenceTime"`
	HomeOdds     decimal.Decimal `json:"homeOdds"`
	DrawOdds     decimal.Decimal `json:"drawOdds"`
	AwayOdds     decimal.Decimal `json:"awayOdds"`
}

type EventsResponse struct {
	Events []SportEvent `json:"events"`
}
