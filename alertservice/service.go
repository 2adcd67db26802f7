// --- File: alertservice/service.go ---
package alertservice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hermesbot/go-alert-service/alertservice/config"
	"github.com/hermesbot/go-alert-service/internal/api"
	"github.com/hermesbot/go-alert-service/internal/metrics"
	"github.com/hermesbot/go-alert-service/internal/pipeline"
	"github.com/hermesbot/go-alert-service/internal/updates"
	"github.com/hermesbot/go-alert-service/pkg/dispatch"
	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type Wrapper struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[pipeline.Event]
	poller          *updates.Poller
	logger          *slog.Logger
}

// New assembles the service. A nil consumer runs the HTTP surface only.
func New(
	cfg *config.Config,
	consumer messagepipeline.MessageConsumer,
	registry dispatch.Registry,
	dispatcher pipeline.Dispatcher,
	poller *updates.Poller,
	vapidPublicKey string,
	logger *slog.Logger,
) (*Wrapper, error) {

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. Pipeline (optional)
	var streamingService *messagepipeline.StreamingService[pipeline.Event]
	if consumer != nil {
		processor := pipeline.NewProcessor(dispatcher, poller, logger.With("component", "pipeline"))

		var err error
		streamingService, err = messagepipeline.NewStreamingService(
			messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
			consumer,
			pipeline.EventTransformer,
			processor,
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create streaming service: %w", err)
		}
	}

	// 3. API
	apiLogger := logger.With("component", "api")
	subscriptionAPI := api.NewSubscriptionAPI(registry, vapidPublicKey, apiLogger)
	notifyAPI := api.NewNotifyAPI(dispatcher, apiLogger)
	updatesAPI := api.NewUpdatesAPI(poller, apiLogger)

	// Register Routes
	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	handle := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, corsMiddleware(handlerFunc))
	}

	handle("POST /api/v1/subscriptions", subscriptionAPI.Save)
	handle("DELETE /api/v1/subscriptions", subscriptionAPI.Unregister)
	handle("GET /api/v1/vapid-key", subscriptionAPI.VapidKey)

	handle("POST /api/v1/notify", notifyAPI.Notify)

	handle("POST /api/v1/updates", updatesAPI.Enqueue)
	handle("GET /api/v1/updates", updatesAPI.Poll)

	mux.Handle("GET /debug/metrics", metrics.Handler())

	// Global OPTIONS for the API namespace (CORS preflight)
	mux.Handle("OPTIONS /api/v1/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	return &Wrapper{
		BaseServer:      baseServer,
		pipelineService: streamingService,
		poller:          poller,
		logger:          logger,
	}, nil
}

func (w *Wrapper) Start(ctx context.Context) error {
	if w.pipelineService != nil {
		w.logger.Info("Core processing pipeline starting...")
		if err := w.pipelineService.Start(ctx); err != nil {
			return fmt.Errorf("failed to start processing service: %w", err)
		}
	}
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if w.pipelineService != nil {
		if err := w.pipelineService.Stop(ctx); err != nil {
			w.logger.Error("Processing pipeline shutdown failed.", "err", err)
			finalErr = err
		}
	}
	// Pending grace clears are dropped; the entries stay queued for the next poll.
	w.poller.Stop()
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	w.logger.Info("Service shutdown complete.")
	return finalErr
}
