package liveview

import (
	"context"
	"errors"
	"strconv"

	"github.com/radieske/bet-client-sync/internal/hooks"
)

var ErrUnknownView = errors.New("liveview: unknown view")

// binding liga um nome de view (+param) à view hook correspondente
type binding struct {
	read      func(ctx context.Context) (any, error)
	subscribe func(send func(ServerMsg)) (unsubscribe func(), err error)
}

func bind[T any](name, param string, v hooks.View[T]) binding {
	return binding{
		read: func(ctx context.Context) (any, error) {
			d, err := v.Read(ctx)
			if err != nil {
				return nil, err
			}
			return d, nil
		},
		subscribe: func(send func(ServerMsg)) (func(), error) {
			return v.Subscribe(func(st hooks.State[T]) {
				send(viewMessage(name, param, st))
			})
		},
	}
}

func resolve(v *hooks.Views, name, param string) (binding, error) {
	switch name {
	case hooks.ResourceBets:
		return bind(name, param, v.Bets(param)), nil
	case hooks.ResourceBalance:
		return bind(name, param, v.Balance()), nil
	case hooks.ResourceTransactions:
		limit := 0
		if param != "" {
			n, err := strconv.Atoi(param)
			if err != nil || n <= 0 {
				return binding{}, errors.New("liveview: invalid transactions limit")
			}
			limit = n
		}
		return bind(name, param, v.Transactions(limit)), nil
	case hooks.ResourceAuthSession:
		return bind(name, param, v.AuthSession()), nil
	case hooks.ResourceSportsEvents:
		return bind(name, param, v.Events(param)), nil
	}
	return binding{}, ErrUnknownView
}

func viewMessage[T any](name, param string, st hooks.State[T]) ServerMsg {
	m := ServerMsg{
		Type:       "view",
		View:       name,
		Param:      param,
		Status:     st.Status.String(),
		Generation: st.Generation,
	}
	if st.HasData {
		m.Data = st.Data
		at := st.UpdatedAt
		m.UpdatedAt = &at
	}
	if st.Err != nil {
		m.Error = st.Err.Error()
	}
	return m
}
