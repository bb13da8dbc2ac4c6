package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"healthmon-agent/internal/collector"
	"healthmon-agent/internal/config"
	"healthmon-agent/internal/model"
	"healthmon-agent/internal/observability"
	"healthmon-agent/internal/predict"
	"healthmon-agent/internal/stream"
)

// Deps are the collaborators an Agent drives. Source and Sink are required;
// Predictor and Metrics may be nil.
type Deps struct {
	Source    collector.MetricSource
	Sink      stream.Sink
	Predictor predict.Predictor
	Metrics   *observability.Metrics
	Gatherer  prometheus.Gatherer
}

// Agent samples its source at a fixed rate, evaluates every sample and
// forwards the resulting alerts to its sink. Independent agents share no
// mutable state.
type Agent struct {
	cfg      config.Config
	logger   *slog.Logger
	source   collector.MetricSource
	sink     stream.Sink
	predict  predict.Predictor
	metrics  *observability.Metrics
	gatherer prometheus.Gatherer
	sampler  *collector.Sampler
	history  *predict.History
	health   *HealthStatus
	newID    func() string

	mu      sync.Mutex
	running bool
	handle  *collector.Handle
	// runs holds the handles of every run whose loop may still be executing.
	runs []*collector.Handle
	gen  uint64

	// tickMu serializes ticks; the fields below belong to it.
	tickMu   sync.Mutex
	state    model.HealthState
	stateGen uint64
}

func New(cfg config.Config, deps Deps, logger *slog.Logger) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Source == nil {
		return nil, &config.ConfigurationError{Field: "source", Reason: "metric source is required"}
	}
	if deps.Sink == nil {
		return nil, &config.ConfigurationError{Field: "sinks", Reason: "alert sink is required"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("instance", cfg.InstanceName)
	// the caller keeps its map; evaluation reads only this copy
	cfg.Thresholds = cfg.Thresholds.Clone()

	return &Agent{
		cfg:      cfg,
		logger:   logger,
		source:   deps.Source,
		sink:     deps.Sink,
		predict:  deps.Predictor,
		metrics:  deps.Metrics,
		gatherer: deps.Gatherer,
		sampler: collector.NewSampler(deps.Source, logger, collector.SamplerOptions{
			Instance:       cfg.InstanceName,
			CollectTimeout: cfg.EffectiveCollectTimeout(),
			Metrics:        deps.Metrics,
		}),
		history: predict.NewHistory(cfg.HistorySize),
		health:  NewHealthStatus(),
		newID:   uuid.NewString,
	}, nil
}

// FromConfig wires the source, sinks and predictor named by cfg and
// registers metrics with the default Prometheus registry.
func FromConfig(cfg config.Config, logger *slog.Logger) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	source, err := collector.NewSourceFromConfig(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("metric source: %w", err)
	}
	sink, err := stream.NewSinkFromConfig(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("alert sink: %w", err)
	}
	predictor, err := predict.NewFromConfig(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("predictor: %w", err)
	}
	metrics, err := observability.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	return New(cfg, Deps{
		Source:    source,
		Sink:      sink,
		Predictor: predictor,
		Metrics:   metrics,
		Gatherer:  prometheus.DefaultGatherer,
	}, logger)
}

// Start begins sampling. It is a no-op while already running.
func (a *Agent) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return nil
	}
	a.gen++
	gen := a.gen
	a.history.Reset()
	h, err := a.sampler.Start(a.cfg.Interval, func(s model.Sample) {
		a.tick(gen, s)
	})
	if err != nil {
		return fmt.Errorf("start sampler: %w", err)
	}
	a.handle = h
	a.runs = append(pruneFinished(a.runs), h)
	a.running = true
	a.logger.Info("agent started",
		"interval", a.cfg.Interval,
		"thresholds", config.FormatThresholds(a.cfg.Thresholds),
		"source", a.source.Name(),
		"sink", a.sink.Name(),
		"predictive", a.predictiveEnabled(),
		"history_size", a.history.Cap())
	return nil
}

func pruneFinished(runs []*collector.Handle) []*collector.Handle {
	live := runs[:0]
	for _, h := range runs {
		select {
		case <-h.Done():
		default:
			live = append(live, h)
		}
	}
	return live
}

// Stop halts scheduling and returns without waiting. A tick whose
// collection already began still delivers its alerts; nothing after it
// does. Stop may be called from any goroutine, including a sink.
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return
	}
	a.running = false
	a.handle.Stop()
	a.logger.Info("agent stopped")
}

func (a *Agent) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Wait blocks until the sampling loops of all runs started so far have
// exited, including any tick they were executing. A run that is still
// scheduling keeps Wait blocked until it is stopped or ctx ends.
func (a *Agent) Wait(ctx context.Context) error {
	a.mu.Lock()
	runs := append([]*collector.Handle(nil), a.runs...)
	a.mu.Unlock()
	for _, h := range runs {
		select {
		case <-h.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// State is the health state of the most recent tick.
func (a *Agent) State() model.HealthState {
	return a.health.State()
}

func (a *Agent) Health() *HealthStatus {
	return a.health
}

// Failures reports collection failures since construction.
func (a *Agent) Failures() uint64 {
	return a.sampler.Failures()
}

// Close releases the sink, predictor and source.
func (a *Agent) Close(ctx context.Context) error {
	var errs []error
	if err := a.sink.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close sink: %w", err))
	}
	a.health.SetSinkReachable(false)
	if err := predict.Close(a.predict); err != nil {
		errs = append(errs, fmt.Errorf("close predictor: %w", err))
	}
	if err := collector.CloseSource(a.source); err != nil {
		errs = append(errs, fmt.Errorf("close source: %w", err))
	}
	a.health.SetSourceReachable(false)
	return errors.Join(errs...)
}

func (a *Agent) predictiveEnabled() bool {
	return a.cfg.EnablePredictive && a.predict != nil
}

// BuildLogger returns the process logger for cfg, writing to stdout.
func BuildLogger(cfg config.Config) *slog.Logger {
	return NewLogger(os.Stdout, cfg)
}

func NewLogger(w io.Writer, cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	hOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(w, hOpts))
	}
	return slog.New(slog.NewTextHandler(w, hOpts))
}

func sinkContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), timeout)
}
