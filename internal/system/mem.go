package system

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type MemoryInfo struct {
	TotalBytes uint64
	UsedBytes  uint64
	FreeBytes  uint64
}

func (m MemoryInfo) UsedPercent() float64 {
	if m.TotalBytes == 0 {
		return 0
	}
	return clampPercent(float64(m.UsedBytes) / float64(m.TotalBytes) * 100)
}

func (p ProcFS) ReadMemoryInfo() (MemoryInfo, error) {
	f, err := p.open("meminfo")
	if err != nil {
		return MemoryInfo{}, err
	}
	defer f.Close()
	return parseMemInfo(f)
}

func parseMemInfo(r io.Reader) (MemoryInfo, error) {
	vals := map[string]uint64{}
	s := bufio.NewScanner(r)
	for s.Scan() {
		parts := strings.Fields(s.Text())
		if len(parts) < 2 {
			continue
		}
		v, convErr := strconv.ParseUint(parts[1], 10, 64)
		if convErr != nil {
			continue
		}
		vals[strings.TrimSuffix(parts[0], ":")] = v * 1024
	}
	if err := s.Err(); err != nil {
		return MemoryInfo{}, fmt.Errorf("scan meminfo: %w", err)
	}
	total := vals["MemTotal"]
	if total == 0 {
		return MemoryInfo{}, fmt.Errorf("MemTotal missing")
	}
	avail, ok := vals["MemAvailable"]
	if !ok {
		// kernels before 3.14
		avail = vals["MemFree"] + vals["Buffers"] + vals["Cached"]
	}
	if avail > total {
		avail = total
	}
	return MemoryInfo{TotalBytes: total, UsedBytes: total - avail, FreeBytes: avail}, nil
}
