package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CropPulse/internal/domain/models"
	domrepo "CropPulse/internal/domain/repository"
)

// Submitter is the minimal ingest entrypoint the pipeline forwards to.
type Submitter interface {
	SubmitObservations(ctx context.Context, sourceID string, raw []models.RawObservation) (models.IngestResult, error)
}

// batch is one source's observation set moving through the pipeline.
type batch struct {
	SourceID     string
	Observations []models.RawObservation
}

// IngestPipeline sits between the collectors/consumers and the ingest
// boundary. It throttles per source and buffers batches with backoff retry
// when the store is briefly unavailable, so a storage blip does not drop
// an upstream fetch.
type IngestPipeline struct {
	submitter Submitter
	metrics   domrepo.Metrics
	maxRPS    int
	bufSize   int
	bufCh     chan batch
	stopCh    chan struct{}
	started   bool
	mu        sync.Mutex
	lastSeen  map[string]time.Time // per-source last accepted time
}

type PipelineOption func(*IngestPipeline)

// WithMaxRPS sets the max batches per second per source.
func WithMaxRPS(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the retry buffer size.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewIngestPipeline creates a pipeline in front of the submitter.
func NewIngestPipeline(submitter Submitter, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		submitter: submitter,
		metrics:   metrics,
		maxRPS:    10,
		bufSize:   256,
		bufCh:     make(chan batch, 256),
		stopCh:    make(chan struct{}),
		lastSeen:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan batch, p.bufSize)
	}
	return p
}

// Start launches background flushing of buffered batches.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case b := <-p.bufCh:
				if len(b.Observations) == 0 {
					continue
				}
				if _, err := p.submitter.SubmitObservations(ctx, b.SourceID, b.Observations); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					select {
					case p.bufCh <- b:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process forwards a batch to the submitter, buffering it on failure.
func (p *IngestPipeline) Process(ctx context.Context, sourceID string, raw []models.RawObservation) error {
	start := time.Now()
	if len(raw) == 0 {
		return nil
	}
	if sourceID == "" {
		p.metrics.RecordError("pipeline_validate")
		return fmt.Errorf("source id empty")
	}
	if !p.allow(sourceID, start) {
		// throttled; record and drop silently
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if _, err := p.submitter.SubmitObservations(ctx, sourceID, raw); err != nil {
		p.metrics.RecordError("pipeline_submit")
		select {
		case p.bufCh <- batch{SourceID: sourceID, Observations: raw}:
			p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func (p *IngestPipeline) allow(sourceID string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[sourceID]
	if last.IsZero() || now.Sub(last) >= time.Second/time.Duration(p.maxRPS) {
		p.lastSeen[sourceID] = now
		return true
	}
	return false
}
