package agent

import (
	"sync/atomic"
	"time"

	"healthmon-agent/internal/model"
)

// HealthStatus is the agent's own liveness view, read by the probe endpoint
// and the periodic debug report.
type HealthStatus struct {
	sourceReachable atomic.Bool
	sinkReachable   atomic.Bool
	lastSampleAt    atomic.Int64
	state           atomic.Int32
	alertsSent      atomic.Uint64
	sinkFailures    atomic.Uint64
}

func NewHealthStatus() *HealthStatus {
	return &HealthStatus{}
}

func (h *HealthStatus) SetSourceReachable(ok bool) {
	h.sourceReachable.Store(ok)
}

func (h *HealthStatus) SetSinkReachable(ok bool) {
	h.sinkReachable.Store(ok)
}

func (h *HealthStatus) MarkSample(ts time.Time) {
	h.lastSampleAt.Store(ts.UnixNano())
}

func (h *HealthStatus) SetState(s model.HealthState) {
	h.state.Store(int32(s))
}

func (h *HealthStatus) State() model.HealthState {
	return model.HealthState(h.state.Load())
}

func (h *HealthStatus) MarkAlertSent() {
	h.alertsSent.Add(1)
}

func (h *HealthStatus) IncSinkFailures() {
	h.sinkFailures.Add(1)
}

func (h *HealthStatus) SinkFailures() uint64 {
	return h.sinkFailures.Load()
}

func (h *HealthStatus) Snapshot() map[string]any {
	out := map[string]any{
		"state":            h.State().String(),
		"source_reachable": h.sourceReachable.Load(),
		"sink_reachable":   h.sinkReachable.Load(),
		"alerts_sent":      h.alertsSent.Load(),
		"sink_failures":    h.sinkFailures.Load(),
	}
	if v := h.lastSampleAt.Load(); v > 0 {
		out["last_sample_at"] = time.Unix(0, v).UTC()
	}
	return out
}
