// Command collector runs the news collection service: a cron scheduler
// driving incremental fetches plus an HTTP control surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/jmpark/stocknews-collector/internal/api"
	"github.com/jmpark/stocknews-collector/internal/clock/system"
	"github.com/jmpark/stocknews-collector/internal/collector"
	"github.com/jmpark/stocknews-collector/internal/config"
	"github.com/jmpark/stocknews-collector/internal/hash/sha256"
	"github.com/jmpark/stocknews-collector/internal/id/uuid"
	"github.com/jmpark/stocknews-collector/internal/logging"
	"github.com/jmpark/stocknews-collector/internal/metrics"
	"github.com/jmpark/stocknews-collector/internal/naver"
	pubsubpub "github.com/jmpark/stocknews-collector/internal/publisher/pubsub"
	"github.com/jmpark/stocknews-collector/internal/scheduler"
	"github.com/jmpark/stocknews-collector/internal/storage/gcs"
	"github.com/jmpark/stocknews-collector/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "collector: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	store, err := postgres.NewArticleStore(ctx, postgres.ArticleStoreConfig{
		DSN:             cfg.DB.DSN,
		Table:           cfg.DB.Table,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: cfg.DB.MaxConnLifetime,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer store.Close()

	var opts []collector.Option

	if cfg.Archive.Bucket != "" {
		storageClient, err := gstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("create storage client: %w", err)
		}
		defer storageClient.Close()

		blobs, err := gcs.New(storageClient, gcs.Config{Bucket: cfg.Archive.Bucket})
		if err != nil {
			return err
		}
		opts = append(opts, collector.WithBlobStore(blobs))
		logger.Info("raw payload archive enabled", zap.String("bucket", cfg.Archive.Bucket))
	}

	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return fmt.Errorf("create pubsub client: %w", err)
		}
		pub, err := pubsubpub.New(pubsubClient)
		if err != nil {
			return err
		}
		defer pub.Close()
		opts = append(opts, collector.WithPublisher(pub))
		logger.Info("run summary publishing enabled", zap.String("topic", cfg.PubSub.TopicName))
	}

	search := naver.NewClient(naver.Config{
		BaseURL:         cfg.Naver.BaseURL,
		ClientID:        cfg.Naver.ClientID,
		ClientSecret:    cfg.Naver.ClientSecret,
		ItemsPerRequest: cfg.Collector.ItemsPerRequest,
		MaxItems:        cfg.Collector.MaxItems,
		RequestInterval: cfg.Collector.RequestInterval(),
		RetryDelay:      cfg.Collector.RetryDelay(),
		MaxRetries:      cfg.Collector.MaxRetries,
		Timeout:         cfg.Collector.Timeout(),
	}, logger)

	sections := make([]collector.Section, 0, len(cfg.Search.Sections))
	for _, sec := range cfg.Search.Sections {
		sections = append(sections, collector.Section{Name: sec.Name, Keywords: sec.Keywords})
	}

	clk := system.New()
	coll := collector.New(
		search,
		store,
		sha256.New(),
		clk,
		uuid.NewGenerator(),
		collector.Config{
			Sections:        sections,
			ExcludeKeywords: cfg.Search.ExcludeKeywords,
			KeywordDelay:    cfg.Collector.KeywordDelay(),
			ArchivePrefix:   cfg.Archive.Prefix,
			Topic:           cfg.PubSub.TopicName,
		},
		logger,
		opts...,
	)

	sched := scheduler.New(coll, clk, cfg.Schedule.Times, logger)
	if cfg.Schedule.AutoStart {
		if _, err := sched.Start(cfg.Schedule.RunOnStart); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	server := api.NewServer(sched, clk, cfg, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
	if err := sched.Shutdown(shutdownCtx); err != nil {
		logger.Warn("scheduler shutdown timed out", zap.Error(err))
	}

	logger.Info("collector stopped")
	return nil
}
