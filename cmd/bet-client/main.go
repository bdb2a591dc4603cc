package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/bet-client-sync/internal/bus"
	"github.com/radieske/bet-client-sync/internal/fallback"
	"github.com/radieske/bet-client-sync/internal/gateway"
	"github.com/radieske/bet-client-sync/internal/hooks"
	"github.com/radieske/bet-client-sync/internal/liveview"
	"github.com/radieske/bet-client-sync/internal/settlement"
	sharedcache "github.com/radieske/bet-client-sync/internal/shared/cache"
	"github.com/radieske/bet-client-sync/internal/shared/config"
	"github.com/radieske/bet-client-sync/internal/shared/kafka"
	"github.com/radieske/bet-client-sync/internal/shared/logger"
	"github.com/radieske/bet-client-sync/internal/shared/metrics"
	"github.com/radieske/bet-client-sync/internal/store"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Métricas Prometheus; os componentes só expõem callbacks
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollectors(reg)

	// Fallback: observa as respostas do gateway
	fb := fallback.New(log.Named("fallback"), fallback.WithCallbacks(fallback.Callbacks{
		OnTransition: func(to fallback.State) {
			m.FallbackTransitions.WithLabelValues(to.String()).Inc()
			m.FallbackState.Set(float64(to))
		},
		OnRouteChosen: metrics.Inc(m.FallbackRoutes),
	}))
	defer fb.Close()

	gw := gateway.New(cfg.APIBaseURL,
		gateway.WithToken(cfg.APIToken),
		gateway.WithTimeout(cfg.HTTPTimeout),
		gateway.WithPrimaryPrefixes(cfg.SportsDataPrefixes...),
		gateway.WithObserver(fb),
		gateway.WithLogger(log.Named("gateway")),
	)

	st := store.New(log.Named("store"),
		store.WithFetchTimeout(cfg.FetchTimeout),
		store.WithCallbacks(store.Callbacks{
			OnHit:        metrics.Inc(m.CacheHits),
			OnFetch:      metrics.Inc(m.CacheFetches),
			OnFetchError: metrics.Inc(m.CacheFetchErrors),
			OnDiscard:    metrics.Inc(m.CacheDiscarded),
			OnInvalidate: metrics.Inc(m.CacheInvalidations),
			OnEvict:      metrics.Inc(m.CacheEvictions),
		}),
	)
	defer st.Close()
	st.StartJanitor(cfg.CachePruneInterval, cfg.CacheIdleTTL)

	mutOpts := []hooks.MutationOption{
		hooks.WithResultCallback(func(kind hooks.MutationKind, err error) {
			result := "ok"
			if err != nil {
				result = "error"
			}
			m.Mutations.WithLabelValues(string(kind), result).Inc()
		}),
	}

	// Redis (opcional): fan-out de invalidação entre instâncias
	var rdb *redis.Client
	var rbus *bus.RedisBus
	if cfg.RedisAddr != "" {
		rdb, err = sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal("redis connect", zap.Error(err))
		}
		defer rdb.Close()

		rbus = bus.NewRedisBus(rdb, cfg.RedisInvalidationChannel, st, log.Named("bus"))
		rbus.OnReceived = metrics.Inc(m.RemoteInvalidations)
		mutOpts = append(mutOpts, hooks.WithPublisher(rbus))
	}

	views := hooks.NewViews(st, gw)
	muts := hooks.NewMutations(st, gw, log.Named("mutations"), mutOpts...)

	hub := liveview.NewHub(log.Named("liveview"), views, fb, func(*http.Request) bool { return true })
	defer hub.Close()
	hub.OnConnect = m.LiveConnections.Inc
	hub.OnDisconnect = m.LiveConnections.Dec

	api := &liveview.API{Log: log, Views: views, Mutations: muts, Fallback: fb, Hub: hub}
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, reg, func(ctx context.Context) error {
		if rdb != nil {
			return rdb.Ping(ctx).Err()
		}
		return nil
	})

	g, gctx := errgroup.WithContext(ctx)

	if rbus != nil {
		rbus.Start(gctx)
	}

	// Kafka (opcional): liquidação de apostas invalida bets e balance
	if cfg.KafkaBrokers != "" {
		reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetConfirmed, cfg.KafkaGroupID)
		defer reader.Close()

		cons := &settlement.Consumer{
			Log:        log.Named("settlement"),
			Reader:     reader,
			Store:      st,
			UserID:     cfg.UserID,
			OnConsumed: metrics.Inc(m.SettlementEvents),
			OnError:    metrics.Inc(m.SettlementErrors),
		}
		g.Go(func() error {
			log.Info("settlement consumer started", zap.String("topic", cfg.TopicBetConfirmed))
			if err := cons.Run(gctx); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
		return apiSrv.Shutdown(shutdownCtx)
	})

	log.Info("bet-client started",
		zap.String("api", cfg.APIBaseURL),
		zap.Bool("redis_bus", rbus != nil),
		zap.Bool("settlement", cfg.KafkaBrokers != ""),
	)
	if err := g.Wait(); err != nil {
		log.Error("bet-client stopped with error", zap.Error(err))
		return
	}
	log.Info("bet-client stopped")
}
