package usecase

import (
	"context"
	"sync"
	"time"

	domrepo "CropPulse/internal/domain/repository"
	mid "CropPulse/internal/middleware"
	"CropPulse/internal/service/ratelimit"
	applogger "CropPulse/pkg/logger"
)

// SourcePoll binds one upstream client to its schedule.
type SourcePoll struct {
	Client       domrepo.SourceClient
	Interval     time.Duration
	RatePerSec   float64
	BurstCredits float64
}

// Collector polls the configured upstream sources on their intervals and
// feeds fetched batches into the ingest pipeline. One slow or failing
// source never delays the others.
type Collector struct {
	polls   []SourcePoll
	pipe    *mid.IngestPipeline
	limiter *ratelimit.Limiter
	metrics domrepo.Metrics
	logger  *applogger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCollector(polls []SourcePoll, pipe *mid.IngestPipeline, limiter *ratelimit.Limiter, metrics domrepo.Metrics, logger *applogger.Logger) *Collector {
	return &Collector{polls: polls, pipe: pipe, limiter: limiter, metrics: metrics, logger: logger}
}

// Start launches one poll loop per source plus the pipeline flusher.
func (c *Collector) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}
	ctx, c.cancel = context.WithCancel(ctx)

	c.pipe.Start(ctx)
	for _, poll := range c.polls {
		c.wg.Add(1)
		go c.run(ctx, poll)
	}
	return nil
}

func (c *Collector) run(ctx context.Context, poll SourcePoll) {
	defer c.wg.Done()

	name := poll.Client.Name()
	c.logger.Info("source poller started",
		applogger.String("source", name),
		applogger.Duration("interval", poll.Interval))

	// First fetch happens immediately, then on the interval.
	c.poll(ctx, poll)
	ticker := time.NewTicker(poll.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.poll(ctx, poll)
		}
	}
}

func (c *Collector) poll(ctx context.Context, poll SourcePoll) {
	name := poll.Client.Name()
	if !c.limiter.Allow(name, poll.BurstCredits, poll.RatePerSec) {
		c.metrics.RecordError("collector_rate_limited")
		return
	}

	start := time.Now()
	raw, err := poll.Client.Fetch(ctx, start)
	if err != nil {
		c.metrics.RecordError("collector_fetch")
		c.logger.Error("source fetch failed", applogger.Error(err),
			applogger.String("source", name))
		return
	}
	c.metrics.RecordLatency("source_fetch", time.Since(start).Seconds())
	if len(raw) == 0 {
		return
	}
	if err := c.pipe.Process(ctx, name, raw); err != nil {
		c.logger.Warn("batch buffered after submit failure",
			applogger.Error(err), applogger.String("source", name))
	}
}

// Shutdown stops the poll loops and the pipeline.
func (c *Collector) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	c.pipe.Stop()
	return nil
}
