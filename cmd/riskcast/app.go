package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"riskcast/internal/audit"
	auditmetrics "riskcast/internal/audit/metrics"
	auditmemory "riskcast/internal/audit/store/memory"
	"riskcast/internal/audit/store/sqlstore"
	"riskcast/internal/audit/stream"
	"riskcast/internal/decision"
	decisionmetrics "riskcast/internal/decision/metrics"
	"riskcast/internal/decision/store"
	"riskcast/internal/orchestrator"
	"riskcast/internal/platform/config"
	"riskcast/internal/platform/logger"
	"riskcast/internal/platform/metrics"
	"riskcast/internal/platform/redis"
	"riskcast/internal/reasoning"
	reasoningmetrics "riskcast/internal/reasoning/metrics"
	"riskcast/internal/uncertainty"
	"riskcast/pkg/platform/canonical"
)

// app holds the wired process for one command invocation.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	registry *prometheus.Registry
	ledger   *audit.Ledger
	service  *orchestrator.Service
	worker   *stream.Worker

	closers []func() error
}

// openLedgerStore opens the configured audit store.
func openLedgerStore(ctx context.Context, cfg config.LedgerConfig) (audit.Store, func() error, error) {
	if cfg.Driver == "memory" {
		return auditmemory.NewStore(), func() error { return nil }, nil
	}
	s, err := sqlstore.Open(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{
		cfg:      cfg,
		log:      logger.New(cfg.LogFormat, cfg.LogLevel),
		registry: prometheus.NewRegistry(),
	}
	if err := a.wire(ctx); err != nil {
		_ = a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	auditStore, closeStore, err := openLedgerStore(ctx, cfg.Ledger)
	if err != nil {
		return fmt.Errorf("ledger store: %w", err)
	}
	a.closers = append(a.closers, closeStore)

	auditMetrics := auditmetrics.New(a.registry)
	ledgerOpts := []audit.Option{audit.WithLogger(a.log), audit.WithMetrics(auditMetrics)}
	if cfg.StreamEnabled() {
		sink, err := stream.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return fmt.Errorf("audit stream: %w", err)
		}
		a.closers = append(a.closers, sink.Close)
		if err := sink.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.Replication); err != nil {
			a.log.WarnContext(ctx, "could not ensure audit topic", "topic", cfg.Kafka.Topic, "error", err)
		}
		a.worker = stream.NewWorker(sink,
			stream.WithLogger(a.log),
			stream.WithMetrics(auditMetrics),
			stream.WithBufferSize(cfg.Kafka.BufferSize),
			stream.WithBatchSize(cfg.Kafka.BatchSize),
			stream.WithFlushInterval(cfg.Kafka.FlushInterval),
		)
		ledgerOpts = append(ledgerOpts, audit.WithPublisher(a.worker))
	}
	a.ledger = audit.NewLedger(auditStore, ledgerOpts...)

	var decisions store.Store = store.NewInMemoryStore()
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("decision cache: %w", err)
	}
	if client != nil {
		a.closers = append(a.closers, client.Close)
		decisions = store.NewRedisStore(client.Client,
			store.WithRetention(cfg.Redis.DecisionRetention),
			store.WithStoreLogger(a.log),
		)
	}

	var thresholds reasoning.ThresholdProvider = reasoning.StaticThresholds(reasoning.DefaultThresholds())
	var thresholdsRaw []byte
	if cfg.Engine.ThresholdsFile != "" {
		overrides, err := reasoning.LoadThresholds(cfg.Engine.ThresholdsFile)
		if err != nil {
			return err
		}
		thresholds = overrides
		if thresholdsRaw, err = os.ReadFile(cfg.Engine.ThresholdsFile); err != nil {
			return fmt.Errorf("reading thresholds file: %w", err)
		}
	}
	engine := reasoning.New(
		reasoning.WithLogger(a.log),
		reasoning.WithMetrics(reasoningmetrics.New(a.registry)),
		reasoning.WithThresholds(thresholds),
	)

	samplerOpts := []uncertainty.Option{uncertainty.WithSamples(cfg.Engine.Samples)}
	if cfg.Engine.Seed != 0 {
		samplerOpts = append(samplerOpts, uncertainty.WithSeed(cfg.Engine.Seed))
	}
	composer := decision.NewComposer(
		decision.WithLogger(a.log),
		decision.WithMetrics(decisionmetrics.New(a.registry)),
		decision.WithTTL(cfg.Engine.DecisionTTL),
		decision.WithEngine(uncertainty.NewEngine(samplerOpts...)),
	)

	configVersion, err := canonical.Hash(struct {
		Thresholds string `json:"thresholds"`
		TTL        string `json:"decision_ttl"`
		Samples    int    `json:"samples"`
		Seed       uint64 `json:"seed"`
	}{canonical.HashBytes(thresholdsRaw), cfg.Engine.DecisionTTL.String(), cfg.Engine.Samples, cfg.Engine.Seed})
	if err != nil {
		return fmt.Errorf("config version: %w", err)
	}

	a.service, err = orchestrator.New(a.ledger, engine, composer, decisions,
		orchestrator.WithLogger(a.log),
		orchestrator.WithMetrics(metrics.New(a.registry)),
		orchestrator.WithVersions(cfg.Engine.ModelVersion, configVersion[:16]),
	)
	return err
}

// runWithStream runs fn while the stream worker (if any) drains in the
// background, then stops the worker and waits for its final flush.
func (a *app) runWithStream(ctx context.Context, fn func(ctx context.Context) error) error {
	if a.worker == nil {
		return fn(ctx)
	}
	workerCtx, stopWorker := context.WithCancel(ctx)
	var g errgroup.Group
	g.Go(func() error { return a.worker.Run(workerCtx) })

	err := fn(ctx)
	stopWorker()
	return errors.Join(err, g.Wait())
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
