package collector

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"healthmon-agent/internal/model"
	"healthmon-agent/internal/observability"
)

// SampleFunc receives each successfully collected Sample on the sampler
// goroutine.
type SampleFunc func(model.Sample)

type SamplerOptions struct {
	// Instance labels metrics and log lines.
	Instance string
	// CollectTimeout bounds a single Collect call. Zero means the interval.
	CollectTimeout time.Duration
	Metrics        *observability.Metrics
}

// Sampler invokes a MetricSource at a fixed rate. Ticks are scheduled from
// the start time, not from the end of the previous collection.
type Sampler struct {
	logger *slog.Logger
	source MetricSource
	opts   SamplerOptions

	failures atomic.Uint64
}

func NewSampler(source MetricSource, logger *slog.Logger, opts SamplerOptions) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{
		logger: logger.With("source", source.Name()),
		source: source,
		opts:   opts,
	}
}

// Handle controls one run of the sampler.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop halts scheduling. It does not wait for an in-flight collection; use
// Done for that.
func (h *Handle) Stop() {
	if h == nil {
		return
	}
	h.once.Do(h.cancel)
}

// Done is closed once the sampling loop has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Failures reports how many collections have failed since construction.
func (s *Sampler) Failures() uint64 {
	return s.failures.Load()
}

func (s *Sampler) Start(interval time.Duration, onSample SampleFunc) (*Handle, error) {
	if interval <= 0 {
		return nil, errors.New("sampler interval must be > 0")
	}
	if onSample == nil {
		return nil, errors.New("sampler callback is nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		s.run(ctx, interval, onSample)
	}()
	return h, nil
}

// Stop is equivalent to h.Stop.
func (s *Sampler) Stop(h *Handle) {
	h.Stop()
}

func (s *Sampler) run(ctx context.Context, interval time.Duration, onSample SampleFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	timeout := s.opts.CollectTimeout
	if timeout <= 0 {
		timeout = interval
	}

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case tickAt := <-ticker.C:
			// both cases may be ready at once; a stopped handle wins
			if ctx.Err() != nil {
				return
			}
			sample, err := s.collect(timeout)
			if err != nil {
				s.failures.Add(1)
				s.opts.Metrics.IncCollectionFailure(s.opts.Instance, s.source.Name())
				s.logger.Warn("metric collection failed", "error", err, "failures", s.failures.Load())
				continue
			}
			if sample.Timestamp.IsZero() {
				sample.Timestamp = tickAt.UTC()
			}
			if sample.Timestamp.Before(last) {
				sample.Timestamp = last
			}
			last = sample.Timestamp
			onSample(sample)
		}
	}
}

// collect runs detached from the handle's context so Stop never interrupts
// a collection that has already begun.
func (s *Sampler) collect(timeout time.Duration) (model.Sample, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	sample, err := s.source.Collect(ctx)
	if err != nil {
		return model.Sample{}, asCollectionError(s.source.Name(), err)
	}
	return sample, nil
}
