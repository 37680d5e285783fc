package worker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/go-order-saga/internal/app/backends"
	orderspush "github.com/Apurer/go-order-saga/internal/domains/orders/adapters/push"
	platformobservability "github.com/Apurer/go-order-saga/internal/platform/observability"
	orderactivities "github.com/Apurer/go-order-saga/internal/platform/temporal/activities/orders"
	orderworkflows "github.com/Apurer/go-order-saga/internal/platform/temporal/workflows/orders"
)

const serviceName = "order-worker"

// Run boots the Temporal worker that executes the fulfillment saga steps.
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

	pusher, err := orderspush.NewClient(cfg.GatewayURL, &http.Client{
		Timeout:   cfg.PushTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
	if err != nil {
		return fmt.Errorf("failed to configure gateway push client: %w", err)
	}
	steps := stores.Steps(pusher, backends.StepSettings{
		InitialStock:    cfg.InitialStock,
		PushTimeout:     cfg.PushTimeout,
		ReleaseOnRefund: cfg.ReleaseOnRefund,
	}, instruments)

	tracingInterceptor, err := temporalotel.NewTracingInterceptor(temporalotel.TracerOptions{
		Tracer: instruments.Tracer("temporal-worker"),
	})
	if err != nil {
		return fmt.Errorf("failed to configure Temporal tracing interceptor: %w", err)
	}
	clientOptions := client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    workerlog.NewStructuredLogger(instruments.Component("temporal")),
	}
	clientOptions.Interceptors = append(clientOptions.Interceptors, tracingInterceptor)
	temporalClient, err := client.Dial(clientOptions)
	if err != nil {
		return fmt.Errorf("failed to create Temporal client: %w", err)
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient, orderworkflows.FulfillmentTaskQueue, worker.Options{})
	register(w, orderactivities.NewActivities(steps))

	logger.Info("worker listening",
		slog.String("taskQueue", orderworkflows.FulfillmentTaskQueue),
		slog.String("namespace", clientOptions.Namespace),
		slog.String("gateway", cfg.GatewayURL))
	if err := w.Run(interruptOn(ctx)); err != nil {
		return fmt.Errorf("temporal worker exited: %w", err)
	}
	logger.Info("Temporal worker stopped")
	return nil
}

type registry interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// register binds the fulfillment workflow and one activity per saga step under their stable names.
func register(r registry, activities *orderactivities.Activities) {
	r.RegisterWorkflowWithOptions(orderworkflows.FulfillmentWorkflow, workflow.RegisterOptions{Name: orderworkflows.FulfillmentWorkflowName})
	r.RegisterActivityWithOptions(activities.Validate, activity.RegisterOptions{Name: orderactivities.ValidateActivityName})
	r.RegisterActivityWithOptions(activities.Reserve, activity.RegisterOptions{Name: orderactivities.ReserveActivityName})
	r.RegisterActivityWithOptions(activities.Notify, activity.RegisterOptions{Name: orderactivities.NotifyActivityName})
	r.RegisterActivityWithOptions(activities.Refund, activity.RegisterOptions{Name: orderactivities.RefundActivityName})
}

func interruptOn(ctx context.Context) <-chan interface{} {
	ch := make(chan interface{})
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}
