// Package httpapi exposes the order gateway over HTTP: websocket connections, the connection
// management API workers push through, order intake and stock lookup.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Apurer/go-order-saga/internal/domains/orders/application"
	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
	"github.com/Apurer/go-order-saga/internal/domains/orders/ports"
	apierrors "github.com/Apurer/go-order-saga/internal/shared/errors"
)

const maxPushBytes = 128 << 10

// ConnectionHub is the live-connection side of the gateway.
type ConnectionHub interface {
	http.Handler
	ports.Transport
	Disconnect(connectionID string) error
}

// Handler wires the gateway routes to the order saga collaborators.
type Handler struct {
	hub          ConnectionHub
	connections  ports.ConnectionReader
	ledger       ports.StockLedger
	orchestrator ports.FulfillmentOrchestrator
	responder    *apierrors.Responder
	newOrderID   func() string
}

// Option configures a Handler.
type Option func(*Handler)

// WithConnectionReader serves GET /connections/:connectionId from the registry.
func WithConnectionReader(reader ports.ConnectionReader) Option {
	return func(h *Handler) { h.connections = reader }
}

// WithStockLedger serves GET /stock/:sku.
func WithStockLedger(ledger ports.StockLedger) Option {
	return func(h *Handler) { h.ledger = ledger }
}

// WithOrchestrator serves POST /orders.
func WithOrchestrator(orchestrator ports.FulfillmentOrchestrator) Option {
	return func(h *Handler) { h.orchestrator = orchestrator }
}

// NewHandler builds the gateway handler around a connection hub.
func NewHandler(hub ConnectionHub, opts ...Option) *Handler {
	h := &Handler{
		hub:        hub,
		responder:  apierrors.NewResponder("", MapError),
		newOrderID: uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Register mounts the gateway routes.
func (h *Handler) Register(router gin.IRouter) {
	router.GET("/healthz", h.Health)
	router.GET("/ws", gin.WrapH(h.hub))
	router.POST("/connections/:connectionId", h.PushToConnection)
	router.GET("/connections/:connectionId", h.GetConnection)
	router.DELETE("/connections/:connectionId", h.DeleteConnection)
	router.POST("/orders", h.PlaceOrder)
	router.GET("/stock/:sku", h.GetStock)
}

// Get /healthz
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Post /connections/:connectionId
// Pushes the raw request body to a live connection.
func (h *Handler) PushToConnection(c *gin.Context) {
	connectionID := strings.TrimSpace(c.Param("connectionId"))
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPushBytes+1))
	if err != nil {
		h.responder.BadRequest(c, err.Error())
		return
	}
	if len(data) > maxPushBytes {
		h.responder.Respond(c, apierrors.ErrBadRequest.WithDetail("message too large"))
		return
	}
	if err := h.hub.PushToConnection(c.Request.Context(), connectionID, data); err != nil {
		if errors.Is(err, ports.ErrConnectionGone) {
			h.responder.Gone(c, connectionID)
			return
		}
		h.responder.RespondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// Get /connections/:connectionId
func (h *Handler) GetConnection(c *gin.Context) {
	connectionID := strings.TrimSpace(c.Param("connectionId"))
	if h.connections == nil {
		h.responder.Respond(c, apierrors.ErrUnavailable.WithDetail("connection registry not configured"))
		return
	}
	record, err := h.connections.GetConnection(c.Request.Context(), connectionID)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// Delete /connections/:connectionId
func (h *Handler) DeleteConnection(c *gin.Context) {
	connectionID := strings.TrimSpace(c.Param("connectionId"))
	if err := h.hub.Disconnect(connectionID); err != nil {
		if errors.Is(err, ports.ErrConnectionGone) {
			h.responder.Gone(c, connectionID)
			return
		}
		h.responder.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type placeOrderResponse struct {
	OrderID    string               `json:"orderId"`
	WorkflowID string               `json:"workflowId"`
	Order      *domain.OrderContext `json:"order,omitempty"`
}

// Post /orders
// Starts the fulfillment saga. Returns 202 when the saga runs asynchronously and 200 with
// the final record when it completed in-process.
func (h *Handler) PlaceOrder(c *gin.Context) {
	if h.orchestrator == nil {
		h.responder.Respond(c, apierrors.ErrUnavailable.WithDetail("order intake not configured"))
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		h.responder.BadRequest(c, err.Error())
		return
	}
	order, err := domain.DecodeOrderContext(body)
	if err != nil {
		h.responder.BadRequest(c, err.Error())
		return
	}
	if strings.TrimSpace(order.OrderID) == "" {
		order.OrderID = h.newOrderID()
	}
	run, err := h.orchestrator.StartFulfillment(c.Request.Context(), order)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	resp := placeOrderResponse{OrderID: order.OrderID, WorkflowID: run.WorkflowID, Order: run.Result}
	if run.Result != nil {
		c.JSON(http.StatusOK, resp)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

// Get /stock/:sku
func (h *Handler) GetStock(c *gin.Context) {
	sku := strings.TrimSpace(c.Param("sku"))
	if h.ledger == nil {
		h.responder.Respond(c, apierrors.ErrUnavailable.WithDetail("stock ledger not configured"))
		return
	}
	record, err := h.ledger.Get(c.Request.Context(), sku)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			h.responder.NotFound(c, "stock", sku)
			return
		}
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// MapError translates order saga errors into problem details.
func MapError(err error) (apierrors.ProblemDetail, bool) {
	if stepErr, ok := application.AsStepError(err); ok {
		return apierrors.ErrValidation.
			WithDetail(stepErr.Error()).
			WithCode(stepErr.Code()).
			WithExtension("field", string(stepErr.Field)), true
	}
	switch {
	case errors.Is(err, ports.ErrConnectionNotFound):
		return apierrors.ErrNotFound.WithDetail(err.Error()), true
	case errors.Is(err, ports.ErrNotFound):
		return apierrors.ErrNotFound.WithDetail(err.Error()), true
	case errors.Is(err, ports.ErrConnectionGone):
		return apierrors.ErrGone.WithDetail(err.Error()), true
	case errors.Is(err, context.DeadlineExceeded):
		return apierrors.ErrUnavailable.WithDetail("request timed out"), true
	}
	return apierrors.ProblemDetail{}, false
}
