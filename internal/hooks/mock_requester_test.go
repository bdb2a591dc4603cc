package hooks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/radieske/bet-client-sync/internal/store"
)

type MockRequester struct {
	mock.Mock
}

func (m *MockRequester) Request(ctx context.Context, method, path string, body, out any) error {
	args := m.Called(ctx, method, path, body, out)
	return args.Error(0)
}

// respond copia v para o ponteiro out recebido pelo mock
func respond[T any](v T) func(mock.Arguments) {
	return func(args mock.Arguments) {
		if p, ok := args.Get(4).(*T); ok {
			*p = v
		}
	}
}

type recordingPublisher struct {
	calls [][]string
	err   error
}

func (p *recordingPublisher) PublishInvalidation(_ context.Context, mutation string, prefixes []store.Key) error {
	call := []string{mutation}
	for _, k := range prefixes {
		call = append(call, k.String())
	}
	p.calls = append(p.calls, call)
	return p.err
}
