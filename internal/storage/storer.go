package storage

import (
	"context"

	"github.com/ProDevCodePoland/ringrtc/internal/sim/spec"
)

// Storer keeps the history of run results across invocations.
type Storer interface {
	Save(ctx context.Context, results []spec.RunResult) error
}

// Reader lists stored results in start order. An empty test set lists all.
type Reader interface {
	List(ctx context.Context, testSet string) ([]spec.RunResult, error)
}

type Store interface {
	Storer
	Reader
}

type Type string

const (
	ES    Type = "es"
	PG    Type = "pg"
	InMem Type = "in_mem"
)

type StorerError string

const (
	ErrUnsupportedStorer StorerError = "unsupported storer type: %s"
)

func (e StorerError) Error() string {
	return string(e)
}
