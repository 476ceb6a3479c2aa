package docker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/docker/docker/client"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	"github.com/ProDevCodePoland/ringrtc/internal/apperr"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/spec"
)

const fakeAPIVersion = "1.47"

// fakeDaemon answers docker API calls with a fixed status per "METHOD /path"
// and 404 for everything else.
type fakeDaemon struct {
	mu       sync.Mutex
	status   map[string]int
	requests []string
}

func (d *fakeDaemon) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + strings.TrimPrefix(r.URL.Path, "/v"+fakeAPIVersion)

	d.mu.Lock()
	d.requests = append(d.requests, key)
	code, ok := d.status[key]
	d.mu.Unlock()
	if !ok {
		code = http.StatusNotFound
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if code >= http.StatusBadRequest {
		_, _ = w.Write([]byte(`{"message":"` + http.StatusText(code) + `: ` + key + `"}`))
	}
}

func (d *fakeDaemon) seen() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.requests))
	copy(out, d.requests)
	return out
}

func newFakeManager(t *testing.T, status map[string]int) (*Manager, *fakeDaemon) {
	t.Helper()
	daemon := &fakeDaemon{status: status}
	srv := httptest.NewServer(daemon)
	t.Cleanup(srv.Close)

	cli, err := client.NewClientWithOpts(
		client.WithHost("tcp://"+srv.Listener.Addr().String()),
		client.WithHTTPClient(srv.Client()),
		client.WithVersion(fakeAPIVersion),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cli.Close() })

	return newManager(Config{NetworkName: "callsim_test"}, cli), daemon
}

func TestCleanUp_AbsentContainersAreSkipped(t *testing.T) {
	m, daemon := newFakeManager(t, nil)
	ctx := context.Background()

	require.NoError(t, m.CleanUp(ctx, AllContainers))
	require.NoError(t, m.CleanUp(ctx, AllContainers))

	reqs := daemon.seen()
	assert.Len(t, reqs, 2*len(AllContainers))
	assert.Contains(t, reqs, "DELETE /containers/client_a")
	assert.Contains(t, reqs, "DELETE /containers/visqol")
}

func TestCleanUp_RemovesWhatExists(t *testing.T) {
	m, _ := newFakeManager(t, map[string]int{
		"DELETE /containers/client_a": http.StatusNoContent,
	})
	assert.NoError(t, m.CleanUp(context.Background(), []string{ClientA, ClientB}))
}

func TestCleanUp_OtherFailuresAreReported(t *testing.T) {
	m, daemon := newFakeManager(t, map[string]int{
		"DELETE /containers/client_a": http.StatusInternalServerError,
		"DELETE /containers/client_b": http.StatusConflict,
	})

	err := m.CleanUp(context.Background(), []string{ClientA, ClientB, Tcpdump})
	require.Error(t, err)
	assert.ErrorContains(t, err, "remove container client_a")
	assert.ErrorContains(t, err, "remove container client_b")
	assert.NotContains(t, err.Error(), "tcpdump")

	// a failure does not stop the remaining removals
	assert.Contains(t, daemon.seen(), "DELETE /containers/tcpdump")
}

func TestCleanNetwork(t *testing.T) {
	t.Run("absent network is not an error", func(t *testing.T) {
		m, daemon := newFakeManager(t, nil)
		assert.NoError(t, m.CleanNetwork(context.Background()))
		assert.NoError(t, m.CleanNetwork(context.Background()))
		assert.Equal(t, []string{"DELETE /networks/callsim_test", "DELETE /networks/callsim_test"}, daemon.seen())
	})

	t.Run("removed", func(t *testing.T) {
		m, _ := newFakeManager(t, map[string]int{"DELETE /networks/callsim_test": http.StatusNoContent})
		assert.NoError(t, m.CleanNetwork(context.Background()))
	})

	t.Run("daemon failure surfaces", func(t *testing.T) {
		m, _ := newFakeManager(t, map[string]int{"DELETE /networks/callsim_test": http.StatusForbidden})
		assert.ErrorContains(t, m.CleanNetwork(context.Background()), "remove network callsim_test")
	})
}

func TestInit_CreatesMissingNetwork(t *testing.T) {
	m, daemon := newFakeManager(t, map[string]int{"POST /networks/create": http.StatusInternalServerError})

	err := m.Init(context.Background())
	var infraErr *apperr.InfrastructureError
	require.ErrorAs(t, err, &infraErr)
	assert.ErrorContains(t, err, "create network callsim_test")
	assert.Equal(t, []string{"GET /networks/callsim_test", "POST /networks/create"}, daemon.seen())
}

func TestStartRun_StaleCleanupFailure(t *testing.T) {
	m, _ := newFakeManager(t, map[string]int{"DELETE /containers/client_b": http.StatusInternalServerError})

	h, err := m.StartRun(context.Background(), spec.RunRequest{ID: "r1", Dir: t.TempDir()})
	assert.Nil(t, h)

	var runErr *apperr.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, apperr.StageStart, runErr.Stage)
	assert.Nil(t, m.active)
}

func TestStartRun_RejectsSecondActiveRun(t *testing.T) {
	m, daemon := newFakeManager(t, nil)
	m.active = newRunHandle(spec.RunRequest{ID: "r1"})

	_, err := m.StartRun(context.Background(), spec.RunRequest{ID: "r2", Dir: t.TempDir()})
	assert.ErrorContains(t, err, "run r1 is still active")
	assert.Empty(t, daemon.seen())
}

func TestStopRun(t *testing.T) {
	t.Run("collects recordings", func(t *testing.T) {
		m, _ := newFakeManager(t, nil)
		dir := t.TempDir()
		for _, f := range []string{receivedAudioFile(ClientA), receivedAudioFile(ClientB)} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("RIFF"), 0o644))
		}
		h := newRunHandle(spec.RunRequest{ID: "r1", Dir: dir, Case: spec.NewTestCase("a")})
		m.active = h

		arts, err := m.StopRun(context.Background(), h)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "client_a_received.wav"), arts.ClientA.ReceivedAudio)
		assert.Nil(t, m.active)
	})

	t.Run("missing recording fails capture but still tears down", func(t *testing.T) {
		m, _ := newFakeManager(t, nil)
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, receivedAudioFile(ClientA)), []byte("RIFF"), 0o644))
		h := newRunHandle(spec.RunRequest{ID: "r1", Dir: dir, Case: spec.NewTestCase("a")})
		m.active = h

		arts, err := m.StopRun(context.Background(), h)
		var runErr *apperr.RunError
		require.ErrorAs(t, err, &runErr)
		assert.Equal(t, apperr.StageCapture, runErr.Stage)
		assert.ErrorContains(t, err, "client_b recording")
		assert.Equal(t, dir, arts.Dir)
		assert.Nil(t, m.active)
		assert.Empty(t, h.containers)
	})
}

func TestManager_CleanUpAgainstDocker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	m, err := NewManager(Config{NetworkName: "callsim_it_" + uuid.NewString()[:8]})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.cli.Close() })

	name := "callsim_it_" + uuid.NewString()[:8]
	_, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Name:  name,
			Image: "alpine:3.20",
			Cmd:   []string{"sleep", "300"},
		},
		Started: true,
	})
	require.NoError(t, err)

	require.NoError(t, m.CleanUp(ctx, []string{name}))
	require.NoError(t, m.CleanUp(ctx, []string{name}))

	require.NoError(t, m.Init(ctx))
	require.NoError(t, m.Init(ctx))
	require.NoError(t, m.CleanNetwork(ctx))
	require.NoError(t, m.CleanNetwork(ctx))
}
