package collector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthmon-agent/internal/config"
	"healthmon-agent/internal/model"
)

func writeProc(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
}

const netDevHeader = `Inter-|   Receive                                                |  Transmit
 face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed
`

func TestHostSource_Collect(t *testing.T) {
	root := t.TempDir()
	writeProc(t, root, map[string]string{
		"stat":    "cpu  100 0 50 800 50 0 0 0 0 0\n",
		"meminfo": "MemTotal: 1000 kB\nMemFree: 100 kB\nMemAvailable: 250 kB\n",
		"net/dev": netDevHeader +
			"    lo: 9999 1 0 0 0 0 0 0 9999 1 0 0 0 0 0 0\n" +
			"  eth0: 1000 1 0 0 0 0 0 0 3000 1 0 0 0 0 0 0\n",
		"diskstats": "   8       0 sda 1 0 10 0 1 0 30 0 0 0 0 0 0\n",
	})

	src := NewHostSource(root, t.TempDir(), discardLogger())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return now }

	first, err := src.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now, first.Timestamp)
	assert.InDelta(t, 15.0, first.Values[model.MetricCPU], 1e-9)
	assert.InDelta(t, 75.0, first.Values[model.MetricMemory], 1e-9)
	assert.Contains(t, first.Values, model.MetricDisk)
	assert.NotContains(t, first.Values, model.MetricTraffic)
	assert.NotContains(t, first.Values, model.MetricDiskIO)

	writeProc(t, root, map[string]string{
		"stat":    "cpu  400 0 100 1400 100 0 0 0 0 0\n",
		"net/dev": netDevHeader + "  eth0: 3000 1 0 0 0 0 0 0 3000 1 0 0 0 0 0 0\n",
		// 40 more sectors
		"diskstats": "   8       0 sda 1 0 30 0 1 0 50 0 0 0 0 0 0\n",
	})
	now = now.Add(2 * time.Second)

	second, err := src.Collect(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 35.0, second.Values[model.MetricCPU], 1e-9)
	assert.InDelta(t, 1000.0, second.Values[model.MetricTraffic], 1e-9)
	assert.InDelta(t, 40*512/2.0, second.Values[model.MetricDiskIO], 1e-9)
}

func TestHostSource_MissingDiskPath(t *testing.T) {
	root := t.TempDir()
	writeProc(t, root, map[string]string{
		"stat":    "cpu  100 0 50 800 50 0 0 0\n",
		"meminfo": "MemTotal: 1000 kB\nMemAvailable: 250 kB\n",
	})
	src := NewHostSource(root, filepath.Join(t.TempDir(), "does-not-exist"), discardLogger())

	_, err := src.Collect(context.Background())
	var ce *CollectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "host", ce.Source)
}

func TestStaticSource(t *testing.T) {
	values := map[string]float64{"cpu": 42}
	src := NewStaticSource(values)

	s, err := src.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42.0, s.Values["cpu"])

	s.Values["cpu"] = 1
	again, err := src.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42.0, again.Values["cpu"])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Collect(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewSourceFromConfig(t *testing.T) {
	cfg := config.Defaults(config.EnvProduction)

	src, err := NewSourceFromConfig(cfg, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "host", src.Name())
	assert.NoError(t, CloseSource(src))

	cfg.Source = config.SourceLibvirt
	src, err = NewSourceFromConfig(cfg, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "libvirt", src.Name())
	assert.NoError(t, CloseSource(src))

	cfg.Source = config.SourceStatic
	cfg.StaticValues = map[string]float64{"cpu": 1}
	src, err = NewSourceFromConfig(cfg, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "static", src.Name())

	cfg.Source = "snmp"
	_, err = NewSourceFromConfig(cfg, discardLogger())
	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "source", cfgErr.Field)
}
