package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"CropPulse/internal/domain/repository"
	"CropPulse/internal/usecase"
	pkgch "CropPulse/pkg/clickhouse"
	"CropPulse/pkg/config"
	xhttp "CropPulse/pkg/http"
	pkgkafka "CropPulse/pkg/kafka"
	applogger "CropPulse/pkg/logger"
	"CropPulse/pkg/queue"
)

// App encapsulates the entire application lifecycle: HTTP server, source
// pollers, the optional Kafka consumer, and their ordered shutdown.
type App struct {
	cfg         *config.Config
	logger      *applogger.Logger
	handler     xhttp.Handler
	collector   *usecase.Collector
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	chClient    *pkgch.Client
	store       repository.PriceStore
	dispatcher  repository.Dispatcher
	notifyQueue *queue.RedisQueue
	httpServer  *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	handler xhttp.Handler,
	collector *usecase.Collector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	store repository.PriceStore,
	dispatcher repository.Dispatcher,
	notifyQueue *queue.RedisQueue,
) *App {
	return &App{
		cfg:         cfg,
		logger:      logger,
		handler:     handler,
		collector:   collector,
		consumer:    consumer,
		kh:          kh,
		chClient:    chClient,
		store:       store,
		dispatcher:  dispatcher,
		notifyQueue: notifyQueue,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestMetrics(l, time.Second),
	)

	// Start source pollers
	if err := a.collector.Start(ctx); err != nil {
		l.Error("collector start error", applogger.Error(err))
		return err
	}
	l.Info("collector started", applogger.Int("sources", len(a.cfg.Sources)))

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start notification delivery if configured
	if a.notifyQueue != nil {
		if err := a.notifyQueue.Start(); err != nil {
			l.Error("notify queue start error", applogger.Error(err))
			return err
		}
		l.Info("notification delivery started")
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}
	l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops everything in reverse start order: no new ingest, then no
// new requests, then the infrastructure clients.
func (a *App) shutdown(ctx context.Context) error {
	l := a.logger

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.collector.Shutdown(shutdownCtx); err != nil {
		l.Warn("collector stop error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	if a.notifyQueue != nil {
		if err := a.notifyQueue.Stop(shutdownCtx); err != nil {
			l.Warn("notify queue stop error", applogger.Error(err))
		}
	}

	if a.dispatcher != nil {
		if err := a.dispatcher.Close(); err != nil {
			l.Warn("dispatcher close error", applogger.Error(err))
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			l.Warn("price store close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
