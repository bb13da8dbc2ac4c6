package system

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const sectorSize = 512

type DiskCounters struct {
	ReadBytes  uint64
	WriteBytes uint64
}

func (d DiskCounters) Total() uint64 {
	return d.ReadBytes + d.WriteBytes
}

func (p ProcFS) ReadDiskCounters() (DiskCounters, error) {
	f, err := p.open("diskstats")
	if err != nil {
		return DiskCounters{}, err
	}
	defer f.Close()
	return parseDiskStats(f)
}

func parseDiskStats(r io.Reader) (DiskCounters, error) {
	var out DiskCounters
	s := bufio.NewScanner(r)
	for s.Scan() {
		parts := strings.Fields(s.Text())
		if len(parts) < 14 || !isWholeDisk(parts[2]) {
			continue
		}
		sectorsRead, errRead := strconv.ParseUint(parts[5], 10, 64)
		sectorsWritten, errWrite := strconv.ParseUint(parts[9], 10, 64)
		if errRead != nil || errWrite != nil {
			continue
		}
		out.ReadBytes += sectorsRead * sectorSize
		out.WriteBytes += sectorsWritten * sectorSize
	}
	if err := s.Err(); err != nil {
		return DiskCounters{}, fmt.Errorf("scan diskstats: %w", err)
	}
	return out, nil
}

// isWholeDisk skips virtual devices and partitions so IO is not counted twice.
func isWholeDisk(name string) bool {
	switch {
	case strings.HasPrefix(name, "loop"), strings.HasPrefix(name, "ram"), strings.HasPrefix(name, "fd"):
		return false
	case strings.HasPrefix(name, "nvme"):
		return !strings.Contains(name, "p")
	case strings.HasPrefix(name, "sd"), strings.HasPrefix(name, "vd"), strings.HasPrefix(name, "xvd"):
		last := name[len(name)-1]
		return last < '0' || last > '9'
	default:
		return false
	}
}
