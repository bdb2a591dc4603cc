package dto

import "github.com/shopspring/decimal"

// BalanceSnapshot é substituído por inteiro a cada refetch (nunca mesclado)
type BalanceSnapshot struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// BalanceUpdate é o corpo de POST /balance/update
type BalanceUpdate struct {
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"` // ex: deposit | withdrawal | bonus
	Description string          `json:"description,omitempty"`
}
