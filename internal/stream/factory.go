package stream

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"

	"healthmon-agent/internal/config"
)

// NewSinkFromConfig builds the configured alert sinks, fanned out in the
// order they are listed.
func NewSinkFromConfig(cfg config.Config, logger *slog.Logger) (Sink, error) {
	var tlsCfg *tls.Config
	if cfg.HasSink(config.SinkGRPC) || cfg.HasSink(config.SinkWebSocket) {
		var err error
		if tlsCfg, err = cfg.TLSConfig(); err != nil {
			return nil, fmt.Errorf("tls config: %w", err)
		}
	}

	sinks := make([]Sink, 0, len(cfg.Sinks))
	for _, kind := range cfg.Sinks {
		switch kind {
		case config.SinkLog:
			sinks = append(sinks, NewLogSink(logger))
		case config.SinkConsole:
			sinks = append(sinks, NewConsoleSink(os.Stdout))
		case config.SinkGRPC:
			sinks = append(sinks, NewGRPCClient(cfg.AlertGRPCAddr, tlsCfg, cfg.BackendToken, cfg.AlertGRPCMethod, logger))
		case config.SinkWebSocket:
			sinks = append(sinks, NewWebSocketClient(cfg.AlertWSURL, cfg.BackendToken, tlsCfg, cfg.WebSocketWriteTimeout, cfg.WebSocketPingInterval, logger))
		default:
			return nil, &config.ConfigurationError{Field: "sinks", Reason: fmt.Sprintf("unsupported sink %q", kind)}
		}
	}

	var out Sink
	if len(sinks) == 1 {
		out = sinks[0]
	} else {
		out = NewMultiSink(sinks...)
	}
	if cfg.SinkRateLimit > 0 {
		out = NewRateLimitedSink(out, cfg.SinkRateLimit, cfg.SinkBurst)
	}
	return out, nil
}
