package events

import "time"

// Evento emitido pelo backend após confirmar/rejeitar uma aposta.
// Consumido pelo cliente para invalidar apostas e saldo do usuário.
type BetConfirmed struct {
	BetID       string    `json:"betId"`
	UserID      string    `json:"userId"`
	Status      string    `json:"status"` // "CONFIRMED" | "REJECTED"
	Reason      string    `json:"reason,omitempty"`
	ProviderRef string    `json:"providerRef,omitempty"`
	Ts          time.Time `json:"ts"`
}

const (
	BetStatusConfirmed = "CONFIRMED"
	BetStatusRejected  = "REJECTED"
)
