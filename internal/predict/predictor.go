// Package predict forecasts future samples from recent history.
package predict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"healthmon-agent/internal/config"
	"healthmon-agent/internal/model"
)

// ErrInsufficientHistory is returned while the history is too short to
// forecast from.
var ErrInsufficientHistory = errors.New("insufficient history for forecast")

// Predictor projects the history window ahead. Confidence in the result is
// reported in [0,100].
type Predictor interface {
	Forecast(ctx context.Context, history []model.Sample, window time.Duration) (model.Forecast, error)
}

// NewFromConfig returns nil when predictive evaluation is disabled.
func NewFromConfig(cfg config.Config, logger *slog.Logger) (Predictor, error) {
	if !cfg.EnablePredictive {
		return nil, nil
	}
	switch cfg.PredictorMode {
	case config.PredictorLinear:
		return NewLinearTrend(DefaultMinSamples), nil
	case config.PredictorGRPC:
		tlsCfg, err := cfg.TLSConfig()
		if err != nil {
			return nil, fmt.Errorf("predictor tls: %w", err)
		}
		return NewRemoteClient(RemoteOptions{
			Addr:     cfg.PredictorGRPCAddr,
			Method:   cfg.PredictorGRPCMethod,
			Token:    cfg.BackendToken,
			Instance: cfg.InstanceName,
			TLS:      tlsCfg,
		}, logger), nil
	default:
		return nil, &config.ConfigurationError{Field: "predictor_mode", Reason: fmt.Sprintf("unsupported predictor mode %q", cfg.PredictorMode)}
	}
}

// Close releases a predictor's connection, if it has one.
func Close(p Predictor) error {
	if c, ok := p.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
