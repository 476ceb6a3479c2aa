package docker

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/testcontainers/testcontainers-go"
)

// Lifecycle lines printed by the participant CLI.
const (
	connectedMarker = "call connected"
	endedMarker     = "call ended"
)

// logForwarder sends container output to the debug log.
type logForwarder struct {
	container string
}

func (f *logForwarder) Accept(l testcontainers.Log) {
	slog.Debug("container output", "container", f.container, "stream", l.LogType, "line", strings.TrimRight(string(l.Content), "\n"))
}

// callMonitor watches a participant's output for call lifecycle signals.
type callMonitor struct {
	logForwarder

	once      sync.Once
	connected chan struct{}

	mu    sync.Mutex
	ended chan<- string
}

func newCallMonitor(role string, ended chan<- string) *callMonitor {
	return &callMonitor{
		logForwarder: logForwarder{container: role},
		connected:    make(chan struct{}),
		ended:        ended,
	}
}

func (m *callMonitor) Accept(l testcontainers.Log) {
	m.logForwarder.Accept(l)

	line := string(l.Content)
	switch {
	case strings.Contains(line, connectedMarker):
		m.once.Do(func() { close(m.connected) })
	case strings.Contains(line, endedMarker):
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.ended == nil {
			return
		}
		select {
		case m.ended <- m.container:
		default:
		}
	}
}

// detach stops reporting call ends, used once the run is being torn down on purpose.
func (m *callMonitor) detach() {
	m.mu.Lock()
	m.ended = nil
	m.mu.Unlock()
}
