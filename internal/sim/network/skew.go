package network

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

type SkewStats struct {
	P50     time.Duration `json:"p50"`
	P99     time.Duration `json:"p99"`
	Max     time.Duration `json:"max"`
	Samples int64         `json:"samples"`
}

// skewHistogram tracks how late each change was applied relative to its offset.
type skewHistogram struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

func newSkewHistogram() *skewHistogram {
	// 1us to 10min, 3 significant figures
	return &skewHistogram{hist: hdrhistogram.New(1, int64(10*time.Minute/time.Microsecond), 3)}
}

func (h *skewHistogram) record(d time.Duration) {
	if d < 0 {
		d = 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = h.hist.RecordValue(d.Microseconds())
}

func (h *skewHistogram) stats() SkewStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return SkewStats{
		P50:     time.Duration(h.hist.ValueAtQuantile(50)) * time.Microsecond,
		P99:     time.Duration(h.hist.ValueAtQuantile(99)) * time.Microsecond,
		Max:     time.Duration(h.hist.Max()) * time.Microsecond,
		Samples: h.hist.TotalCount(),
	}
}
