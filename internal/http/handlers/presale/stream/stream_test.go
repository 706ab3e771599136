package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/presale-service/internal/bus"
	"github.com/magabrotheeeer/presale-service/internal/gateway"
	"github.com/magabrotheeeer/presale-service/internal/models"
	"github.com/magabrotheeeer/presale-service/internal/services/presale"
	"github.com/magabrotheeeer/presale-service/internal/surface"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticBackend struct {
	engine *presale.Engine
}

func (b staticBackend) Load(context.Context, *models.User) presale.Snapshot {
	return presale.Snapshot{
		Resolution: presale.Resolution{Enabled: true, Event: models.DefaultEvent(time.Now())},
		Confidence: presale.Confirmed,
	}
}

func (b staticBackend) Engine() *presale.Engine                { return b.engine }
func (b staticBackend) AnnounceCommit(context.Context, string) {}

func (b staticBackend) Balances(context.Context, *models.User) (*models.UserBalances, error) {
	return nil, nil
}

type recordingSurfaces struct {
	*surface.Hub

	mu       sync.Mutex
	released []string
	done     chan struct{}
}

func (r *recordingSurfaces) Release(s *surface.Surface) {
	r.Hub.Release(s)
	r.mu.Lock()
	r.released = append(r.released, s.ID())
	r.mu.Unlock()
	close(r.done)
}

type frame struct {
	event string
	data  string
}

func readFrame(t *testing.T, r *bufio.Reader) frame {
	t.Helper()
	var f frame
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "" && f.event != "":
			return f
		case strings.HasPrefix(line, "event: "):
			f.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			f.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestStreamHandler(t *testing.T) {
	b := bus.New(newNoopLogger())
	t.Cleanup(b.Close)
	backend := staticBackend{engine: presale.NewEngine(gateway.Offline{}, nil, newNoopLogger())}
	registry := surface.NewRegistry(nil)
	surfaces := &recordingSurfaces{
		Hub:  surface.NewHub(backend, b, registry, surface.Options{CountdownTick: time.Hour}, newNoopLogger()),
		done: make(chan struct{}),
	}
	srv := httptest.NewServer(New(newNoopLogger(), surfaces))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	reader := bufio.NewReader(resp.Body)

	mounted := readFrame(t, reader)
	require.Equal(t, "mounted", mounted.event)
	var m map[string]string
	require.NoError(t, json.Unmarshal([]byte(mounted.data), &m))
	surfaceID := m["surface_id"]
	require.NotEmpty(t, surfaceID)
	_, ok := registry.Get(surfaceID)
	assert.True(t, ok)

	view := readFrame(t, reader)
	require.Equal(t, "view", view.event)
	var v surface.View
	require.NoError(t, json.Unmarshal([]byte(view.data), &v))
	assert.Equal(t, surfaceID, v.SurfaceID)
	assert.True(t, v.Visible)

	cancel()
	select {
	case <-surfaces.done:
	case <-time.After(2 * time.Second):
		t.Fatal("surface was not released")
	}
	assert.Zero(t, registry.Len())
	assert.Zero(t, b.Subscribers(bus.TopicPresaleDataUpdated))
}
