package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/index"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/ingest"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/journal"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer service", "data_dir", cfg.Index.DataDir, "journal_dir", cfg.Index.JournalDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	checker := health.NewChecker()

	var db *sql.DB
	pg, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, every domain gets the worst rank", "error", err)
	} else {
		defer pg.Close()
		db = pg.DB
		checker.Register("postgres", health.PingCheck(pg.DB.PingContext))
	}

	writer, err := journal.NewPagedWriter(cfg.Index.JournalDir, cfg.Construction.JournalPageSize)
	if err != nil {
		slog.Error("failed to open journal", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("failed to seal journal page", "error", err)
		}
	}()

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
	defer producer.Close()

	scheduler := &ingest.Scheduler{
		Journal:     writer,
		JournalDir:  cfg.Index.JournalDir,
		Constructor: index.NewConstructor(cfg, ranking.New(nil), m),
		Publisher:   producer,
		Interval:    cfg.Construction.Interval,
	}
	if db != nil {
		scheduler.Rankings = func(ctx context.Context) (*ranking.DomainRankings, error) {
			return ranking.LoadFromPostgres(ctx, db)
		}
	}
	go scheduler.Start(ctx)

	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, checker.Mount)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(shutdownCtx)
		}()
	}

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.JournalEntries, ingest.HandleDocuments(writer, m))
	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.JournalEntries,
		"group", cfg.Kafka.ConsumerGroup,
		"construction_interval", cfg.Construction.Interval,
	)
	if err := consumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	slog.Info("indexer service stopped")
}
