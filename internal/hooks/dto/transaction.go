package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction: append-only do ponto de vista do cliente
type Transaction struct {
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// TransactionsResponse: GET /user/transactions
type TransactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
}
