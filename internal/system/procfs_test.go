package system

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statFixture = `cpu  100 0 50 800 50 0 0 0 10 0
cpu0 50 0 25 400 25 0 0 0 5 0
intr 12345
`

const meminfoFixture = `MemTotal:        1000 kB
MemFree:          100 kB
MemAvailable:     250 kB
Buffers:           10 kB
Cached:            40 kB
`

const netDevFixture = `Inter-|   Receive                                                |  Transmit
 face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed
    lo: 9999       10    0    0    0     0          0         0  9999       10    0    0    0     0       0          0
  eth0: 1000       10    0    0    0     0          0         0  2000       20    0    0    0     0       0          0
  eth1:  500        5    0    0    0     0          0         0   500        5    0    0    0     0       0          0
`

const diskstatsFixture = `   7       0 loop0 10 0 80 0 0 0 0 0 0 0 0 0 0
   8       0 sda 100 0 10 0 50 0 20 0 0 0 0 0 0
   8       1 sda1 100 0 10 0 50 0 20 0 0 0 0 0 0
 259       0 nvme0n1 100 0 4 0 50 0 6 0 0 0 0 0 0
 259       1 nvme0n1p1 100 0 4 0 50 0 6 0 0 0 0 0 0
`

func writeFixture(t *testing.T, root, name, body string) {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func fixtureFS(t *testing.T) ProcFS {
	t.Helper()
	root := t.TempDir()
	writeFixture(t, root, "stat", statFixture)
	writeFixture(t, root, "meminfo", meminfoFixture)
	writeFixture(t, root, "net/dev", netDevFixture)
	writeFixture(t, root, "diskstats", diskstatsFixture)
	return NewProcFS(root)
}

func TestReadCPUCounters(t *testing.T) {
	fs := fixtureFS(t)

	c, err := fs.ReadCPUCounters()
	require.NoError(t, err)
	assert.Equal(t, uint64(100), c.User)
	assert.Equal(t, uint64(800), c.Idle)
	assert.Equal(t, uint64(50), c.IOWait)
	assert.Equal(t, uint64(1000), c.Total, "guest columns must not be double counted")
	assert.Equal(t, uint64(150), c.Busy())
}

func TestParseCPUStat_MissingAggregate(t *testing.T) {
	_, err := parseCPUStat(strings.NewReader("cpu0 1 2 3 4 5\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCPUUsage(t *testing.T) {
	tests := []struct {
		name string
		prev CPUCounters
		cur  CPUCounters
		want float64
	}{
		{
			name: "half busy",
			prev: CPUCounters{Idle: 100, Total: 200},
			cur:  CPUCounters{Idle: 150, Total: 300},
			want: 50,
		},
		{
			name: "counter reset",
			prev: CPUCounters{Idle: 100, Total: 300},
			cur:  CPUCounters{Idle: 10, Total: 20},
			want: 0,
		},
		{
			name: "fully idle",
			prev: CPUCounters{Idle: 100, Total: 100},
			cur:  CPUCounters{Idle: 200, Total: 200},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CPUUsage(tt.prev, tt.cur), 0.0001)
		})
	}
}

func TestReadMemoryInfo(t *testing.T) {
	fs := fixtureFS(t)

	m, err := fs.ReadMemoryInfo()
	require.NoError(t, err)
	assert.Equal(t, uint64(1000*1024), m.TotalBytes)
	assert.Equal(t, uint64(750*1024), m.UsedBytes)
	assert.InDelta(t, 75.0, m.UsedPercent(), 0.0001)
}

func TestParseMemInfo_WithoutMemAvailable(t *testing.T) {
	m, err := parseMemInfo(strings.NewReader("MemTotal: 1000 kB\nMemFree: 100 kB\nBuffers: 50 kB\nCached: 50 kB\n"))
	require.NoError(t, err)
	assert.InDelta(t, 80.0, m.UsedPercent(), 0.0001)
}

func TestParseMemInfo_MissingTotal(t *testing.T) {
	_, err := parseMemInfo(strings.NewReader("MemFree: 100 kB\n"))
	require.Error(t, err)
}

func TestReadNetCounters_SkipsLoopback(t *testing.T) {
	fs := fixtureFS(t)

	n, err := fs.ReadNetCounters()
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), n.RxBytes)
	assert.Equal(t, uint64(2500), n.TxBytes)
	assert.Equal(t, uint64(4000), n.Total())
}

func TestReadDiskCounters_WholeDisksOnly(t *testing.T) {
	fs := fixtureFS(t)

	d, err := fs.ReadDiskCounters()
	require.NoError(t, err)
	assert.Equal(t, uint64((10+4)*512), d.ReadBytes)
	assert.Equal(t, uint64((20+6)*512), d.WriteBytes)
}

func TestProcFS_MissingFile(t *testing.T) {
	fs := NewProcFS(t.TempDir())

	_, err := fs.ReadCPUCounters()
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
