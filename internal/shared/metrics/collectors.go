package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors agrupa as métricas do cliente. Os componentes não conhecem
// prometheus: o main liga estes collectors nos callbacks de cada um.
type Collectors struct {
	CacheHits          *prometheus.CounterVec // family
	CacheFetches       *prometheus.CounterVec // family
	CacheFetchErrors   *prometheus.CounterVec // family
	CacheDiscarded     *prometheus.CounterVec // family
	CacheInvalidations *prometheus.CounterVec // family
	CacheEvictions     *prometheus.CounterVec // family

	Mutations *prometheus.CounterVec // mutation, result

	FallbackState       prometheus.Gauge       // 0 normal, 1 degraded
	FallbackTransitions *prometheus.CounterVec // to
	FallbackRoutes      *prometheus.CounterVec // route

	SettlementEvents *prometheus.CounterVec // status
	SettlementErrors *prometheus.CounterVec // stage

	RemoteInvalidations *prometheus.CounterVec // mutation

	LiveConnections prometheus.Gauge
}

func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		CacheHits:          counterVec("cache_hits_total", "leituras servidas do cache", "family"),
		CacheFetches:       counterVec("cache_fetches_total", "fetches iniciados", "family"),
		CacheFetchErrors:   counterVec("cache_fetch_errors_total", "fetches com erro", "family"),
		CacheDiscarded:     counterVec("cache_discarded_fetches_total", "fetches descartados por geração nova", "family"),
		CacheInvalidations: counterVec("cache_invalidations_total", "entradas invalidadas", "family"),
		CacheEvictions:     counterVec("cache_evictions_total", "entradas removidas por ociosidade", "family"),

		Mutations: counterVec("mutations_total", "mutações por resultado", "mutation", "result"),

		FallbackState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fallback_degraded", Help: "1 quando a fonte primária esgotou a cota",
		}),
		FallbackTransitions: counterVec("fallback_transitions_total", "transições do fallback", "to"),
		FallbackRoutes:      counterVec("fallback_routes_chosen_total", "rotas alternativas escolhidas", "route"),

		SettlementEvents: counterVec("settlement_events_total", "bet_confirmed aplicados", "status"),
		SettlementErrors: counterVec("settlement_errors_total", "erros por estágio", "stage"),

		RemoteInvalidations: counterVec("bus_remote_invalidations_total", "invalidações recebidas de outras instâncias", "mutation"),

		LiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "liveview_connections", Help: "conexões WebSocket ativas",
		}),
	}
	reg.MustRegister(
		c.CacheHits, c.CacheFetches, c.CacheFetchErrors, c.CacheDiscarded, c.CacheInvalidations, c.CacheEvictions,
		c.Mutations,
		c.FallbackState, c.FallbackTransitions, c.FallbackRoutes,
		c.SettlementEvents, c.SettlementErrors,
		c.RemoteInvalidations,
		c.LiveConnections,
	)
	return c
}

// Inc devolve um callback que incrementa vec com o label recebido
func Inc(vec *prometheus.CounterVec) func(string) {
	return func(label string) { vec.WithLabelValues(label).Inc() }
}

func counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
}
