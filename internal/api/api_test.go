package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/hermesbot/go-alert-service/pkg/notification"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// decodeBody parses the {success, ...} envelope.
func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// --- Mocks ---

type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) Add(ctx context.Context, sub notification.PushSubscription) error {
	return m.Called(ctx, sub).Error(0)
}
func (m *MockRegistry) List(ctx context.Context) ([]notification.PushSubscription, error) {
	args := m.Called(ctx)
	return args.Get(0).([]notification.PushSubscription), args.Error(1)
}
func (m *MockRegistry) Remove(ctx context.Context, endpoint string) error {
	return m.Called(ctx, endpoint).Error(0)
}

type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Dispatch(ctx context.Context, message, sellerID string) (notification.DispatchResult, error) {
	args := m.Called(ctx, message, sellerID)
	return args.Get(0).(notification.DispatchResult), args.Error(1)
}
