package gateway

import (
	"fmt"
	"net/http"
)

// Error é a falha tipada devolvida pelo gateway: {status, message}.
// Status 0 indica falha de transporte (sem resposta HTTP).
type Error struct {
	Status  int
	Message string
	Path    string
	Err     error // causa de transporte/decodificação, se houver
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("gateway: %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("gateway: %s: http %d: %s", e.Path, e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// QuotaExhaustedError sinaliza que a fonte primária de dados esportivos
// esgotou a cota de uso. Embrulha o *Error original.
type QuotaExhaustedError struct {
	Upstream *Error
}

func (e *QuotaExhaustedError) Error() string {
	return fmt.Sprintf("gateway: sports data quota exhausted: %v", e.Upstream)
}

func (e *QuotaExhaustedError) Unwrap() error { return e.Upstream }

// isQuotaStatus: códigos que a fonte de dados usa para cota esgotada
func isQuotaStatus(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	}
	return false
}
