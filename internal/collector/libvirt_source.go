package collector

import (
	"context"
	"log/slog"
	"time"

	"healthmon-agent/internal/libvirt"
	"healthmon-agent/internal/model"
)

// LibvirtSource reads hypervisor host counters over the libvirt RPC
// protocol. A failed read drops the connection so the next tick redials.
type LibvirtSource struct {
	logger *slog.Logger
	conn   *libvirt.ConnManager
	reader *libvirt.NodeReader
	now    func() time.Time
}

func NewLibvirtSource(conn *libvirt.ConnManager, logger *slog.Logger) *LibvirtSource {
	return &LibvirtSource{
		logger: logger,
		conn:   conn,
		reader: libvirt.NewNodeReader(conn.Node),
		now:    time.Now,
	}
}

func (s *LibvirtSource) Name() string {
	return "libvirt"
}

func (s *LibvirtSource) Collect(ctx context.Context) (model.Sample, error) {
	stats, err := s.reader.Read(ctx)
	if err != nil {
		s.conn.Invalidate()
		return model.Sample{}, &CollectionError{Source: s.Name(), Err: err}
	}
	return model.Sample{
		Timestamp: s.now().UTC(),
		Values: map[string]float64{
			model.MetricCPU:     stats.CPUPercent,
			model.MetricMemory:  stats.MemoryPercent,
			model.MetricDomains: float64(stats.Domains),
		},
	}, nil
}

func (s *LibvirtSource) Close() error {
	return s.conn.Close()
}
