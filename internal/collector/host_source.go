package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"healthmon-agent/internal/model"
	"healthmon-agent/internal/system"
)

// HostSource reads the local machine. CPU, memory and the byte counters come
// from procfs; filesystem usage and load average come from gopsutil, which
// also covers cpu and memory when procfs is not readable.
type HostSource struct {
	logger   *slog.Logger
	proc     system.ProcFS
	diskPath string
	now      func() time.Time

	mu       sync.Mutex
	prevCPU  system.CPUCounters
	counters *system.Counters
}

func NewHostSource(procRoot, diskPath string, logger *slog.Logger) *HostSource {
	if diskPath == "" {
		diskPath = "/"
	}
	return &HostSource{
		logger:   logger,
		proc:     system.NewProcFS(procRoot),
		diskPath: diskPath,
		now:      time.Now,
		counters: system.NewCounters(),
	}
}

func (h *HostSource) Name() string {
	return "host"
}

func (h *HostSource) Collect(ctx context.Context) (model.Sample, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	at := h.now().UTC()
	values := make(map[string]float64, 6)

	cpuPct, err := h.cpuPercent(ctx)
	if err != nil {
		return model.Sample{}, &CollectionError{Source: h.Name(), Err: err}
	}
	values[model.MetricCPU] = cpuPct

	memPct, err := h.memoryPercent(ctx)
	if err != nil {
		return model.Sample{}, &CollectionError{Source: h.Name(), Err: err}
	}
	values[model.MetricMemory] = memPct

	usage, err := disk.UsageWithContext(ctx, h.diskPath)
	if err != nil {
		return model.Sample{}, &CollectionError{Source: h.Name(), Err: fmt.Errorf("disk usage %s: %w", h.diskPath, err)}
	}
	values[model.MetricDisk] = usage.UsedPercent

	if avg, err := load.AvgWithContext(ctx); err == nil {
		values[model.MetricLoad1] = avg.Load1
	} else {
		h.logger.Debug("load average unavailable", "error", err)
	}

	h.addRates(at, values)
	return model.Sample{Timestamp: at, Values: values}, nil
}

func (h *HostSource) cpuPercent(ctx context.Context) (float64, error) {
	cur, err := h.proc.ReadCPUCounters()
	if err != nil {
		h.logger.Debug("procfs cpu unavailable, using gopsutil", "error", err)
		pct, psErr := cpu.PercentWithContext(ctx, 0, false)
		if psErr != nil {
			return 0, fmt.Errorf("cpu percent: %w", psErr)
		}
		if len(pct) == 0 {
			return 0, fmt.Errorf("cpu percent: no data")
		}
		return pct[0], nil
	}
	// the first reading is measured against boot
	usage := system.CPUUsage(h.prevCPU, cur)
	h.prevCPU = cur
	return usage, nil
}

func (h *HostSource) memoryPercent(ctx context.Context) (float64, error) {
	info, err := h.proc.ReadMemoryInfo()
	if err == nil {
		return info.UsedPercent(), nil
	}
	h.logger.Debug("procfs meminfo unavailable, using gopsutil", "error", err)
	vm, psErr := mem.VirtualMemoryWithContext(ctx)
	if psErr != nil {
		return 0, fmt.Errorf("virtual memory: %w", psErr)
	}
	return vm.UsedPercent, nil
}

// addRates adds traffic and disk_io in bytes per second. They need two
// readings, so the first sample carries neither.
func (h *HostSource) addRates(at time.Time, values map[string]float64) {
	if net, err := h.proc.ReadNetCounters(); err != nil {
		h.logger.Debug("procfs net/dev unavailable", "error", err)
		h.counters.Forget(model.MetricTraffic)
	} else if perSec, ok := h.counters.Rate(model.MetricTraffic, at, net.Total()); ok {
		values[model.MetricTraffic] = perSec
	}

	if dsk, err := h.proc.ReadDiskCounters(); err != nil {
		h.logger.Debug("procfs diskstats unavailable", "error", err)
		h.counters.Forget(model.MetricDiskIO)
	} else if perSec, ok := h.counters.Rate(model.MetricDiskIO, at, dsk.Total()); ok {
		values[model.MetricDiskIO] = perSec
	}
}
