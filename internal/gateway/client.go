package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MethodGet  = http.MethodGet
	MethodPost = http.MethodPost
)

// Outcome é o resultado de uma requisição, repassado aos observers.
// Primary indica um path da fonte primária de dados esportivos.
type Outcome struct {
	Path    string
	Method  string
	Primary bool
	Err     error
}

// Observer recebe cada Outcome após a requisição terminar.
type Observer interface {
	ObserveOutcome(Outcome)
}

// Client traduz (path, method, body) em resposta decodificada ou *Error.
// Não faz retry nem cache.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Token   string

	log           *zap.Logger
	primaryPrefix []string
	observers     []Observer
}

type Option func(*Client)

// WithToken envia Authorization: Bearer <token>
func WithToken(token string) Option { return func(c *Client) { c.Token = token } }

// WithTimeout define o timeout do http.Client padrão
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.HTTP = &http.Client{Timeout: d} }
}

// WithHTTPClient substitui o http.Client (testes, transportes customizados)
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.HTTP = h } }

// WithPrimaryPrefixes define quais paths pertencem à fonte primária de dados esportivos
func WithPrimaryPrefixes(prefixes ...string) Option {
	return func(c *Client) { c.primaryPrefix = append([]string(nil), prefixes...) }
}

// WithObserver registra um observer de resultados (ex: controlador de fallback)
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observers = append(c.observers, o) }
}

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

func New(base string, opts ...Option) *Client {
	c := &Client{
		BaseURL:       strings.TrimRight(base, "/"),
		HTTP:          &http.Client{Timeout: 5 * time.Second},
		log:           zap.NewNop(),
		primaryPrefix: []string{"/sports/"},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// IsPrimary informa se o path pertence à fonte primária de dados esportivos
func (c *Client) IsPrimary(path string) bool {
	for _, p := range c.primaryPrefix {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Request envia a requisição e decodifica o JSON de resposta em out (se não nil).
// Falhas retornam *Error ou, para cota esgotada em path primário, *QuotaExhaustedError.
func (c *Client) Request(ctx context.Context, method, path string, body, out any) error {
	err := c.do(ctx, method, path, body, out)
	c.notify(Outcome{Path: path, Method: method, Primary: c.IsPrimary(path), Err: err})
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &Error{Path: path, Message: "encode body", Err: err}
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return &Error{Path: path, Message: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	start := time.Now()
	res, err := c.HTTP.Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return &Error{Path: path, Message: "transport", Err: err}
	}
	defer res.Body.Close()

	c.log.Debug("request done",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", res.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if res.StatusCode >= 300 {
		gerr := &Error{Status: res.StatusCode, Path: path, Message: readMessage(res.Body, res.Status)}
		if isQuotaStatus(res.StatusCode) && c.IsPrimary(path) {
			return &QuotaExhaustedError{Upstream: gerr}
		}
		return gerr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &Error{Status: res.StatusCode, Path: path, Message: "decode response", Err: err}
	}
	return nil
}

func (c *Client) notify(o Outcome) {
	for _, obs := range c.observers {
		obs.ObserveOutcome(o)
	}
}

// readMessage extrai {"error": "..."} ou {"message": "..."} do corpo; senão usa o texto cru
func readMessage(r io.Reader, fallback string) string {
	b, err := io.ReadAll(io.LimitReader(r, 4<<10))
	if err != nil || len(bytes.TrimSpace(b)) == 0 {
		return fallback
	}
	var env struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(b, &env) == nil {
		if env.Error != "" {
			return env.Error
		}
		if env.Message != "" {
			return env.Message
		}
	}
	return strings.TrimSpace(string(b))
}
