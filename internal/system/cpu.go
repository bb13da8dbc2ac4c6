package system

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type CPUCounters struct {
	User    uint64
	Nice    uint64
	System  uint64
	Idle    uint64
	IOWait  uint64
	IRQ     uint64
	SoftIRQ uint64
	Steal   uint64
	Total   uint64
}

func (c CPUCounters) Busy() uint64 {
	idle := c.Idle + c.IOWait
	if idle > c.Total {
		return 0
	}
	return c.Total - idle
}

func (p ProcFS) ReadCPUCounters() (CPUCounters, error) {
	f, err := p.open("stat")
	if err != nil {
		return CPUCounters{}, err
	}
	defer f.Close()
	return parseCPUStat(f)
}

func parseCPUStat(r io.Reader) (CPUCounters, error) {
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 5 {
			return CPUCounters{}, fmt.Errorf("unexpected cpu line: %q", line)
		}
		vals := make([]uint64, 0, len(parts)-1)
		for _, p := range parts[1:] {
			v, convErr := strconv.ParseUint(p, 10, 64)
			if convErr != nil {
				return CPUCounters{}, fmt.Errorf("parse cpu stat %q: %w", p, convErr)
			}
			vals = append(vals, v)
		}
		// guest and guest_nice are already accounted in user and nice
		var c CPUCounters
		fields := []*uint64{&c.User, &c.Nice, &c.System, &c.Idle, &c.IOWait, &c.IRQ, &c.SoftIRQ, &c.Steal}
		for i, dst := range fields {
			if i >= len(vals) {
				break
			}
			*dst = vals[i]
			c.Total += vals[i]
		}
		return c, nil
	}
	if err := s.Err(); err != nil {
		return CPUCounters{}, fmt.Errorf("scan stat: %w", err)
	}
	return CPUCounters{}, fmt.Errorf("cpu aggregate line not found")
}

// CPUUsage is the busy percentage between two readings.
func CPUUsage(prev, cur CPUCounters) float64 {
	if cur.Total <= prev.Total {
		return 0
	}
	totalDelta := float64(cur.Total - prev.Total)
	busyPrev, busyCur := prev.Busy(), cur.Busy()
	if busyCur < busyPrev {
		return 0
	}
	return clampPercent(float64(busyCur-busyPrev) / totalDelta * 100)
}
