package predict

import (
	"sync"

	"healthmon-agent/internal/model"
)

// History is a bounded FIFO of samples. When full, the oldest sample is
// evicted.
type History struct {
	mu    sync.Mutex
	buf   []model.Sample
	start int
	size  int
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{buf: make([]model.Sample, capacity)}
}

// Add stores a copy of s.
func (h *History) Add(s model.Sample) {
	s = s.Clone()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = s
		h.size++
		return
	}
	h.buf[h.start] = s
	h.start = (h.start + 1) % len(h.buf)
}

// Snapshot returns the samples oldest first.
func (h *History) Snapshot() []model.Sample {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]model.Sample, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.size
}

func (h *History) Cap() int {
	return len(h.buf)
}

func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.buf)
	h.start, h.size = 0, 0
}
