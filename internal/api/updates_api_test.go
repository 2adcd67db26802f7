package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hermesbot/go-alert-service/internal/api"
	"github.com/hermesbot/go-alert-service/internal/updates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pollResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Updates []struct {
		PackID    string `json:"pack_id"`
		Timestamp string `json:"timestamp"`
	} `json:"updates"`
}

func setupUpdatesAPI(t *testing.T) (*api.UpdatesAPI, *updates.MemoryQueue, *updates.Poller) {
	t.Helper()
	q := updates.NewMemoryQueue()
	// A long grace keeps the timer out of the way of these tests.
	p := updates.NewPoller(q, updates.DrainSnapshot, time.Hour, newTestLogger())
	t.Cleanup(p.Stop)
	return api.NewUpdatesAPI(p, newTestLogger()), q, p
}

func poll(t *testing.T, handler *api.UpdatesAPI, target string) (*httptest.ResponseRecorder, pollResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	handler.Poll(w, httptest.NewRequest(http.MethodGet, target, nil))
	var resp pollResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestUpdates_EnqueueThenPoll(t *testing.T) {
	handler, _, p := setupUpdatesAPI(t)

	w := httptest.NewRecorder()
	handler.Enqueue(w, httptest.NewRequest(http.MethodPost, "/api/v1/updates",
		strings.NewReader(`{"seller_id":"seller1","pack_id":"pack42"}`)))
	require.Equal(t, http.StatusOK, w.Code)

	rec, resp := poll(t, handler, "/api/v1/updates?seller_id=seller1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	require.Len(t, resp.Updates, 1)
	assert.Equal(t, "pack42", resp.Updates[0].PackID)
	_, err := time.Parse(time.RFC3339Nano, resp.Updates[0].Timestamp)
	assert.NoError(t, err)
	assert.Equal(t, 1, p.Pending())
}

func TestUpdates_LegacyQueryParam(t *testing.T) {
	handler, q, _ := setupUpdatesAPI(t)
	require.NoError(t, q.Enqueue(context.Background(), "s", "p"))

	rec, resp := poll(t, handler, "/api/v1/updates?sellerId=s")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Updates, 1)
}

func TestUpdates_EmptyPoll(t *testing.T) {
	handler, _, p := setupUpdatesAPI(t)

	rec, resp := poll(t, handler, "/api/v1/updates?seller_id=nobody")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Updates)
	assert.Empty(t, resp.Updates)
	assert.Zero(t, p.Pending())
	assert.Contains(t, rec.Body.String(), `"updates":[]`)
}

func TestUpdates_MissingSeller(t *testing.T) {
	handler, q, p := setupUpdatesAPI(t)
	require.NoError(t, q.Enqueue(context.Background(), "s", "p"))

	rec, resp := poll(t, handler, "/api/v1/updates")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)

	// No queue mutation and no timer.
	assert.Zero(t, p.Pending())
	left, _ := q.Get(context.Background(), "s")
	assert.Len(t, left, 1)
}

func TestUpdates_EnqueueValidation(t *testing.T) {
	handler, _, _ := setupUpdatesAPI(t)

	for name, body := range map[string]string{
		"missing pack":   `{"seller_id":"s"}`,
		"missing seller": `{"pack_id":"p"}`,
		"blank values":   `{"seller_id":" ","pack_id":" "}`,
		"malformed":      `{`,
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.Enqueue(w, httptest.NewRequest(http.MethodPost, "/api/v1/updates", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"success":false`)
		})
	}
}
