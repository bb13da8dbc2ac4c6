package agent

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

const memReportInterval = 30 * time.Second

// runMemoryReport logs the agent's own memory use and health snapshot while
// debug logging is enabled.
func (a *Agent) runMemoryReport(ctx context.Context) error {
	if !a.logger.Enabled(ctx, slog.LevelDebug) {
		return nil
	}
	t := time.NewTicker(memReportInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			a.logMemory()
		}
	}
}

func (a *Agent) logMemory() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	a.logger.Debug("agent memory",
		"sys_mb", float64(ms.Sys)/(1<<20),
		"heap_alloc_mb", float64(ms.HeapAlloc)/(1<<20),
		"goroutines", runtime.NumGoroutine(),
		"collection_failures", a.sampler.Failures(),
		"health", a.health.Snapshot(),
	)
}
