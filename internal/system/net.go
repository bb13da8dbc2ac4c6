package system

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type NetCounters struct {
	RxBytes uint64
	TxBytes uint64
}

func (n NetCounters) Total() uint64 {
	return n.RxBytes + n.TxBytes
}

func (p ProcFS) ReadNetCounters() (NetCounters, error) {
	f, err := p.open("net/dev")
	if err != nil {
		return NetCounters{}, err
	}
	defer f.Close()
	return parseNetDev(f)
}

func parseNetDev(r io.Reader) (NetCounters, error) {
	var out NetCounters
	s := bufio.NewScanner(r)
	lineNo := 0
	for s.Scan() {
		lineNo++
		if lineNo <= 2 {
			continue
		}
		iface, rest, ok := strings.Cut(s.Text(), ":")
		if !ok {
			continue
		}
		iface = strings.TrimSpace(iface)
		if iface == "lo" || iface == "" {
			continue
		}
		metrics := strings.Fields(rest)
		if len(metrics) < 16 {
			continue
		}
		rx, rxErr := strconv.ParseUint(metrics[0], 10, 64)
		tx, txErr := strconv.ParseUint(metrics[8], 10, 64)
		if rxErr != nil || txErr != nil {
			continue
		}
		out.RxBytes += rx
		out.TxBytes += tx
	}
	if err := s.Err(); err != nil {
		return NetCounters{}, fmt.Errorf("scan net/dev: %w", err)
	}
	return out, nil
}
