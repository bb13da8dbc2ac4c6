package libvirt

import (
	"context"
	"fmt"
	"strings"
	"sync"

	golibvirt "github.com/digitalocean/go-libvirt"
)

const (
	allCPUs  int32 = -1
	allCells int32 = -1
)

// NodeStats is one reading of the hypervisor host.
type NodeStats struct {
	CPUPercent    float64
	MemoryPercent float64
	Domains       int
}

// NodeReader turns libvirt node counters into percentages. CPU usage is the
// busy share between two consecutive reads; the first read is measured
// against host boot.
type NodeReader struct {
	node func(ctx context.Context) (NodeAPI, error)

	mu        sync.Mutex
	prevBusy  uint64
	prevTotal uint64
}

func NewNodeReader(node func(ctx context.Context) (NodeAPI, error)) *NodeReader {
	return &NodeReader{node: node}
}

func (r *NodeReader) Read(ctx context.Context) (NodeStats, error) {
	api, err := r.node(ctx)
	if err != nil {
		return NodeStats{}, err
	}

	cpuStats, err := cpuStats(api)
	if err != nil {
		return NodeStats{}, err
	}
	memStats, err := memoryStats(api)
	if err != nil {
		return NodeStats{}, err
	}
	memPct, err := memoryPercent(memStats)
	if err != nil {
		return NodeStats{}, err
	}
	domains, err := api.ConnectNumOfDomains()
	if err != nil {
		return NodeStats{}, fmt.Errorf("ConnectNumOfDomains: %w", err)
	}

	busy, total := cpuBusyTotal(cpuStats)
	r.mu.Lock()
	cpuPct := busyPercent(r.prevBusy, r.prevTotal, busy, total)
	r.prevBusy, r.prevTotal = busy, total
	r.mu.Unlock()

	return NodeStats{CPUPercent: cpuPct, MemoryPercent: memPct, Domains: int(domains)}, nil
}

// libvirt reports the parameter count when asked for zero parameters.
func cpuStats(api NodeAPI) ([]golibvirt.NodeGetCPUStats, error) {
	_, n, err := api.NodeGetCPUStats(allCPUs, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("NodeGetCPUStats: %w", err)
	}
	stats, _, err := api.NodeGetCPUStats(allCPUs, n, 0)
	if err != nil {
		return nil, fmt.Errorf("NodeGetCPUStats: %w", err)
	}
	if len(stats) == 0 {
		return nil, fmt.Errorf("empty node cpu stats")
	}
	return stats, nil
}

func memoryStats(api NodeAPI) ([]golibvirt.NodeGetMemoryStats, error) {
	_, n, err := api.NodeGetMemoryStats(0, allCells, 0)
	if err != nil {
		return nil, fmt.Errorf("NodeGetMemoryStats: %w", err)
	}
	stats, _, err := api.NodeGetMemoryStats(n, allCells, 0)
	if err != nil {
		return nil, fmt.Errorf("NodeGetMemoryStats: %w", err)
	}
	if len(stats) == 0 {
		return nil, fmt.Errorf("empty node memory stats")
	}
	return stats, nil
}

// cpuBusyTotal sums the kernel, user, idle and iowait nanosecond counters.
func cpuBusyTotal(stats []golibvirt.NodeGetCPUStats) (busy, total uint64) {
	var idle uint64
	for _, st := range stats {
		switch strings.ToLower(st.Field) {
		case "idle", "iowait":
			idle += st.Value
			total += st.Value
		case "kernel", "user":
			total += st.Value
		}
	}
	if idle > total {
		return 0, total
	}
	return total - idle, total
}

func busyPercent(prevBusy, prevTotal, busy, total uint64) float64 {
	if total <= prevTotal || busy < prevBusy {
		return 0
	}
	pct := float64(busy-prevBusy) / float64(total-prevTotal) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

func memoryPercent(stats []golibvirt.NodeGetMemoryStats) (float64, error) {
	vals := make(map[string]uint64, len(stats))
	for _, st := range stats {
		vals[strings.ToLower(st.Field)] = st.Value
	}
	total := vals["total"]
	if total == 0 {
		return 0, fmt.Errorf("node memory total is zero")
	}
	avail := vals["free"] + vals["buffers"] + vals["cached"]
	if avail > total {
		avail = total
	}
	return float64(total-avail) / float64(total) * 100, nil
}
