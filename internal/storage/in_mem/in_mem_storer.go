package in_mem

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/ProDevCodePoland/ringrtc/internal/sim/spec"
	"github.com/google/uuid"
)

type InMemStorer struct {
	storageLock sync.RWMutex
	storage     map[string]spec.RunResult
}

func NewInMemStorer() *InMemStorer {
	return &InMemStorer{
		storage: make(map[string]spec.RunResult),
	}
}

// Save stores results by ID; saving a result again replaces it.
func (s *InMemStorer) Save(_ context.Context, results []spec.RunResult) error {
	s.storageLock.Lock()
	defer s.storageLock.Unlock()

	for _, r := range results {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		s.storage[r.ID] = r
	}
	slog.Debug("Results stored in memory", "count", len(results), "total", len(s.storage))
	return nil
}

func (s *InMemStorer) List(_ context.Context, testSet string) ([]spec.RunResult, error) {
	s.storageLock.RLock()
	defer s.storageLock.RUnlock()

	out := make([]spec.RunResult, 0, len(s.storage))
	for _, r := range s.storage {
		if testSet == "" || r.TestSet == testSet {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}
