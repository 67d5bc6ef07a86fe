package main

import (
	"context"
	"errors"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"defectwatch/internal/core/ml"
	"defectwatch/internal/platform/config"
	"defectwatch/internal/platform/logger"
	"defectwatch/internal/platform/store"

	anomsvc "defectwatch/internal/services/anomaly/service"
	nwdom "defectwatch/internal/services/nightwatch/domain"
	nwsvc "defectwatch/internal/services/nightwatch/service"
	"defectwatch/internal/services/records/repo"
	recsvc "defectwatch/internal/services/records/service"
	regsvc "defectwatch/internal/services/registry/service"
	trainsvc "defectwatch/internal/services/training/service"
)

func main() {
	root := config.New()
	pgCfg := root.Prefix("DW_PGSQL_")
	chCfg := root.Prefix("DW_CLICKHOUSE_")
	mlCfg := root.Prefix("DW_ML_")
	nwCfg := root.Prefix("DW_NIGHTWATCH_")

	logger.Init(logger.FromEnv())
	l := logger.Get()

	var (
		fMode = flag.String("mode", "worker", "nightwatch mode: worker | retrain | scan")
		fDays = flag.Int("days", 0, "scan mode: trailing window in days (0 = configured default)")
	)
	flag.Parse()

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
			Role:    "nightwatch",
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
	detector := anomsvc.New(backend, anomsvc.Config{})

	scanDays := nwCfg.MayInt("SCAN_DAYS", 1)
	if *fDays > 0 {
		scanDays = *fDays
	}
	sweeper := nwsvc.New(records, records, trainer, detector, nwsvc.Config{
		RetrainWeekday: time.Weekday(nwCfg.MayInt("RETRAIN_WEEKDAY", int(time.Sunday))),
		RetrainHour:    nwCfg.MayInt("RETRAIN_HOUR", 2),
		ScanHour:       nwCfg.MayInt("SCAN_HOUR", 6),
		ScanDays:       scanDays,
		Contamination:  nwCfg.MayFloat64("CONTAMINATION", 0.08),
		Tick:           nwCfg.MayDuration("TICK", time.Minute),
	})

	switch *fMode {
	case "worker":
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			l.Fatal().Err(err).Msg("nightwatch worker failed")
		}
		l.Info().Msg("nightwatch worker stopped")

	case "retrain":
		res, err := sweeper.RetrainAll(ctx)
		if err != nil {
			l.Fatal().Err(err).Msg("retrain sweep failed")
		}
		logSweep(l, "retrain", res)

	case "scan":
		res, err := sweeper.ScanAll(ctx)
		if err != nil {
			l.Fatal().Err(err).Msg("anomaly scan failed")
		}
		logSweep(l, "scan", res)

	default:
		l.Panic().Str("mode", *fMode).Msg("unknown -mode (expected: worker | retrain | scan)")
	}
}

func logSweep(l *logger.Logger, kind string, res *nwdom.SweepResult) {
	l.Info().
		Str("sweep", kind).
		Int("tenants", res.Tenants).
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Int("skipped", res.Skipped).
		Msg("sweep complete")
}
