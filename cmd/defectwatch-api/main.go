package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"defectwatch/internal/api"
	"defectwatch/internal/core/ml"
	"defectwatch/internal/platform/config"
	"defectwatch/internal/platform/logger"
	"defectwatch/internal/platform/store"

	anomsvc "defectwatch/internal/services/anomaly/service"
	nwsvc "defectwatch/internal/services/nightwatch/service"
	predsvc "defectwatch/internal/services/predict/service"
	"defectwatch/internal/services/records/repo"
	recsvc "defectwatch/internal/services/records/service"
	regsvc "defectwatch/internal/services/registry/service"
	trainsvc "defectwatch/internal/services/training/service"
)

func main() {
	root := config.New()
	apiCfg := root.Prefix("DW_API_")
	pgCfg := root.Prefix("DW_PGSQL_")
	chCfg := root.Prefix("DW_CLICKHOUSE_")
	mlCfg := root.Prefix("DW_ML_")

	logger.Init(logger.FromEnv())
	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Config{
		AppName: "defectwatch",
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
		},
		CH: store.CHConfig{
			Enabled: chCfg.MayBool("ENABLED", false),
			URL:     chCfg.MayString("DBURL", ""),
			Role:    "api",
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	registry, err := regsvc.New(regsvc.Config{
		Dir: mlCfg.MayString("REGISTRY_DIR", "./models"),
	})
	if err != nil {
		l.Panic().Err(err).Msg("registry init failed")
	}

	backend := ml.NewReal()
	if !mlCfg.MayBool("ENABLED", true) {
		backend = ml.NewDisabled()
	}

	var events *repo.CH
	if st.CH != nil {
		events = repo.NewCH(st.CH)
	}
	records := recsvc.New(st.PG, events)

	trainer := trainsvc.New(backend, registry, trainsvc.Config{})
	predictor := predsvc.New(backend, registry)
	detector := anomsvc.New(backend, anomsvc.Config{})
	sweeper := nwsvc.New(records, records, trainer, detector, nwsvc.Config{})

	router := api.NewRouter(&api.Handlers{
		Reader:    records,
		Audit:     records,
		Trainer:   trainer,
		Predictor: predictor,
		Detector:  detector,
		Sweeper:   sweeper,
		Store:     st,
	}, api.RouterConfig{
		AllowedOrigins: splitCSV(apiCfg.MayString("CORS_ORIGINS", "*")),
	})

	addr := net.JoinHostPort(
		apiCfg.MayString("ADDR", "0.0.0.0"),
		apiCfg.MayString("PORT", "4720"),
	)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       apiCfg.MayDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:      apiCfg.MayDuration("WRITE_TIMEOUT", 60*time.Second),
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info().Str("addr", addr).Msg("defectwatch api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		l.Info().Msg("shutdown signal received")
		shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			l.Error().Err(err).Msg("graceful shutdown failed")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Panic().Err(err).Msg("http server stopped")
		}
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
