package dto

import "github.com/shopspring/decimal"

// User é o usuário autenticado exibido pela UI (nome, tier, saldo)
type User struct {
	ID       string          `json:"id"`
	Username string          `json:"username"`
	Tier     string          `json:"tier,omitempty"`
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

// Session: GET /auth/session. User nil = não autenticado.
type Session struct {
	User *User `json:"user"`
}
