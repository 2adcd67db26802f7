package alertservice_test

import (
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

	"github.com/hermesbot/go-alert-service/alertservice"
	"github.com/hermesbot/go-alert-service/alertservice/config"
	"github.com/hermesbot/go-alert-service/internal/storage/file"
	"github.com/hermesbot/go-alert-service/internal/updates"
	"github.com/hermesbot/go-alert-service/pkg/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDispatcher counts Dispatch calls.
type recordingDispatcher struct {
	mu       sync.Mutex
	messages []string
}

func (d *recordingDispatcher) Dispatch(_ context.Context, message, _ string) (notification.DispatchResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, message)
	return notification.DispatchResult{Total: 1, Sent: 1}, nil
}

func (d *recordingDispatcher) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.messages)
}

func newTestService(t *testing.T) (*alertservice.Wrapper, *updates.MemoryQueue, *recordingDispatcher) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	queue := updates.NewMemoryQueue()
	poller := updates.NewPoller(queue, updates.DrainSnapshot, time.Hour, logger)
	registry := file.NewRegistry(t.TempDir()+"/subscriptions.json", logger)
	dispatcher := &recordingDispatcher{}

	svc, err := alertservice.New(
		&config.Config{ListenAddr: ":0", NumPipelineWorkers: 1},
		nil,
		registry,
		dispatcher,
		poller,
		"BPublicKey",
		logger,
	)
	require.NoError(t, err)
	t.Cleanup(poller.Stop)
	return svc, queue, dispatcher
}

func serve(svc *alertservice.Wrapper, method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	svc.Mux().ServeHTTP(w, httptest.NewRequest(method, target, strings.NewReader(body)))
	return w
}

func TestService_Routes(t *testing.T) {
	svc, queue, dispatcher := newTestService(t)

	t.Run("Subscription save", func(t *testing.T) {
		w := serve(svc, http.MethodPost, "/api/v1/subscriptions",
			`{"endpoint":"https://push.example.com/abc","keys":{"p256dh":"k","auth":"a"}}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Notify", func(t *testing.T) {
		w := serve(svc, http.MethodPost, "/api/v1/notify", `{"message":"hello"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, dispatcher.Calls())
	})

	t.Run("Enqueue then poll", func(t *testing.T) {
		w := serve(svc, http.MethodPost, "/api/v1/updates", `{"seller_id":"s1","pack_id":"p1"}`)
		require.Equal(t, http.StatusOK, w.Code)

		w = serve(svc, http.MethodGet, "/api/v1/updates?sellerId=s1", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Success bool                       `json:"success"`
			Updates []notification.UpdateEntry `json:"updates"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		require.Len(t, resp.Updates, 1)
		assert.Equal(t, "p1", resp.Updates[0].PackID)

		entries, err := queue.Get(context.Background(), "s1")
		require.NoError(t, err)
		assert.Len(t, entries, 1, "entries stay until the grace delay elapses")
	})

	t.Run("VAPID key", func(t *testing.T) {
		w := serve(svc, http.MethodGet, "/api/v1/vapid-key", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "BPublicKey")
	})

	t.Run("Metrics", func(t *testing.T) {
		w := serve(svc, http.MethodGet, "/debug/metrics", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "hermes_update_polls_total")
	})
}
