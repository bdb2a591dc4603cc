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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/bet-client-sync/internal/apistub"
	"github.com/radieske/bet-client-sync/internal/hooks/dto"
	"github.com/radieske/bet-client-sync/internal/shared/config"
	"github.com/radieske/bet-client-sync/internal/shared/kafka"
	"github.com/radieske/bet-client-sync/internal/shared/logger"
	"github.com/radieske/bet-client-sync/internal/shared/metrics"
)

func main() {
	cfg := config.LoadFor("api-stub")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := []apistub.Option{
		apistub.WithQuota(cfg.StubQuotaLimit),
		apistub.WithEvents(demoEvents()...),
	}

	// Kafka (opcional): simula o backend confirmando cada aposta
	if cfg.KafkaBrokers != "" {
		w := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetConfirmed)
		defer w.Close()
		opts = append(opts, apistub.WithConfirmer(apistub.NewKafkaConfirmer(w)))
	}

	api := apistub.NewServer(log, opts...)
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, reg, nil)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
		_ = apiSrv.Shutdown(shutdownCtx)
	}()

	log.Info("api listening", zap.String("addr", apiSrv.Addr), zap.Int("sports_quota", cfg.StubQuotaLimit))
	if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("api srv", zap.Error(err))
	}
}

func demoEvents() []dto.SportEvent {
	start := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)
	odds := decimal.RequireFromString
	return []dto.SportEvent{
		{ID: "evt-1001", Sport: "basketball", HomeTeam: "Lakers", AwayTeam: "Celtics", CommenceTime: start,
			HomeOdds: odds("1.85"), AwayOdds: odds("2.05")},
		{ID: "evt-2001", Sport: "soccer", HomeTeam: "Arsenal", AwayTeam: "Chelsea", CommenceTime: start.Add(2 * time.Hour),
			HomeOdds: odds("2.10"), DrawOdds: odds("3.30"), AwayOdds: odds("3.60")},
		{ID: "evt-3001", Sport: "tennis", HomeTeam: "Sinner", AwayTeam: "Alcaraz", CommenceTime: start.Add(4 * time.Hour),
			HomeOdds: odds("1.95"), AwayOdds: odds("1.90")},
	}
}
