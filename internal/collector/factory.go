package collector

import (
	"fmt"
	"io"
	"log/slog"

	"healthmon-agent/internal/config"
	"healthmon-agent/internal/libvirt"
)

// NewSourceFromConfig builds the configured MetricSource. Sources holding a
// connection also implement io.Closer.
func NewSourceFromConfig(cfg config.Config, logger *slog.Logger) (MetricSource, error) {
	switch cfg.Source {
	case config.SourceHost:
		return NewHostSource(cfg.ProcRoot, cfg.DiskPath, logger), nil
	case config.SourceLibvirt:
		conn := libvirt.NewConnManager(cfg.LibvirtURI, cfg.ReconnectInterval, cfg.MaxReconnectJitter, logger)
		return NewLibvirtSource(conn, logger), nil
	case config.SourceStatic:
		return NewStaticSource(cfg.StaticValues), nil
	default:
		return nil, &config.ConfigurationError{Field: "source", Reason: fmt.Sprintf("unsupported source %q", cfg.Source)}
	}
}

// CloseSource releases a source's connection, if it has one.
func CloseSource(src MetricSource) error {
	if c, ok := src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
