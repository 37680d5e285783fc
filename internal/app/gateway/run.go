package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"

	"github.com/Apurer/go-order-saga/internal/app/backends"
	httpapi "github.com/Apurer/go-order-saga/internal/domains/orders/adapters/http"
	orderswebsocket "github.com/Apurer/go-order-saga/internal/domains/orders/adapters/websocket"
	ordersworkflows "github.com/Apurer/go-order-saga/internal/domains/orders/adapters/workflows"
	"github.com/Apurer/go-order-saga/internal/domains/orders/ports"
	platformobservability "github.com/Apurer/go-order-saga/internal/platform/observability"
)

const serviceName = "order-gateway"

// Run boots the order gateway: websocket hub, connection management API and order intake.
func Run(ctx context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	stores := backends.Build(ctx, cfg.Backends(), logger)
	defer stores.Close()

	hub := orderswebsocket.NewHub(
		orderswebsocket.WithRegistry(stores.Registry),
		orderswebsocket.WithLogger(instruments.Component("websocket")),
	)
	defer hub.Close()

	steps := stores.Steps(hub, backends.StepSettings{
		InitialStock:    cfg.InitialStock,
		ReleaseOnRefund: cfg.ReleaseOnRefund,
	}, instruments)

	var orchestrator ports.FulfillmentOrchestrator = ordersworkflows.NewInlineOrchestrator(steps)
	if temporalClient, err := connectTemporalClient(cfg, instruments); err != nil {
		logger.Warn("Temporal workflows unavailable, running fulfillment inline", slog.String("error", err.Error()))
	} else {
		defer temporalClient.Close()
		var opts []ordersworkflows.TemporalOption
		if cfg.WaitForSagaResult {
			opts = append(opts, ordersworkflows.WithWaitForResult())
		}
		orchestrator = ordersworkflows.NewTemporalOrchestrator(temporalClient, opts...)
		logger.Info("Temporal workflows enabled", slog.String("namespace", cfg.TemporalNamespace))
	}

	handler := httpapi.NewHandler(hub,
		httpapi.WithConnectionReader(stores.Registry),
		httpapi.WithStockLedger(stores.Ledger),
		httpapi.WithOrchestrator(orchestrator),
	)
	router := newRouter(handler)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(ctx, server, logger)
}

func newRouter(handler *httpapi.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	handler.Register(router)
	return router
}

// serve runs the server until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("order gateway listening", slog.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Error("order gateway exited", slog.String("addr", server.Addr), slog.String("error", err.Error()))
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown order gateway: %w", err)
	}
	logger.Info("order gateway stopped")
	return nil
}

func connectTemporalClient(cfg Config, instruments *platformobservability.Instruments) (client.Client, error) {
	if cfg.TemporalDisabled {
		return nil, errors.New("temporal disabled via TEMPORAL_DISABLED env")
	}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(temporalotel.TracerOptions{
		Tracer: instruments.Tracer("temporal-client"),
	})
	if err != nil {
		return nil, err
	}
	options := client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    workerlog.NewStructuredLogger(instruments.Component("temporal")),
	}
	options.Interceptors = append(options.Interceptors, tracingInterceptor)
	return client.Dial(options)
}
