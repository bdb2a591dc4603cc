package liveview

import (
	"time"

	"github.com/radieske/bet-client-sync/internal/fallback"
)

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
type ClientMsg struct {
	Type  string `json:"type"`
	View  string `json:"view"`            // requerido em subscribe/unsubscribe
	Param string `json:"param,omitempty"` // status de bets, limit de transactions, sport de sports-events
}

// ServerMsg: view | fallback | pong | error
type ServerMsg struct {
	Type       string           `json:"type"`
	View       string           `json:"view,omitempty"`
	Param      string           `json:"param,omitempty"`
	Status     string           `json:"status,omitempty"`
	Generation uint64           `json:"generation,omitempty"`
	Data       any              `json:"data,omitempty"`
	Error      string           `json:"error,omitempty"`
	UpdatedAt  *time.Time       `json:"updatedAt,omitempty"`
	Notice     *fallback.Notice `json:"notice,omitempty"`
}
