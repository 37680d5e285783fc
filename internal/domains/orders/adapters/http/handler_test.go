package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/go-order-saga/internal/domains/orders/adapters/memory"
	"github.com/Apurer/go-order-saga/internal/domains/orders/adapters/websocket"
	"github.com/Apurer/go-order-saga/internal/domains/orders/adapters/workflows"
	"github.com/Apurer/go-order-saga/internal/domains/orders/application"
	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
	apierrors "github.com/Apurer/go-order-saga/internal/shared/errors"
)

type gatewayFixture struct {
	router *gin.Engine
	hub    *websocket.Hub
	ledger *memory.Ledger
}

func newGatewayFixture(t *testing.T) gatewayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := memory.NewRegistry()
	ledger := memory.NewLedger()
	hub := websocket.NewHub(websocket.WithRegistry(registry))
	t.Cleanup(hub.Close)

	svc := application.NewService(
		application.NewReservationEngine(ledger),
		application.NewCompensationHandler(memory.NewSettlement(nil)),
		application.NewNotificationDispatcher(hub),
	)
	handler := NewHandler(hub,
		WithConnectionReader(registry),
		WithStockLedger(ledger),
		WithOrchestrator(workflows.NewInlineOrchestrator(svc)),
	)
	router := gin.New()
	handler.Register(router)
	return gatewayFixture{router: router, hub: hub, ledger: ledger}
}

func (f gatewayFixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) apierrors.ProblemDetail {
	t.Helper()
	require.Equal(t, apierrors.ContentTypeProblemJSON, w.Header().Get("Content-Type"))
	var problem apierrors.ProblemDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	return problem
}

func TestPushToUnknownConnectionIsGone(t *testing.T) {
	f := newGatewayFixture(t)

	w := f.do(http.MethodPost, "/connections/C-missing", `{"orderId":"O1"}`)
	require.Equal(t, http.StatusGone, w.Code)
	problem := decodeProblem(t, w)
	require.Equal(t, apierrors.TypeGone, problem.Type)

	w = f.do(http.MethodDelete, "/connections/C-missing", "")
	require.Equal(t, http.StatusGone, w.Code)

	w = f.do(http.MethodGet, "/connections/C-missing", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlaceOrderInlineReservesStock(t *testing.T) {
	f := newGatewayFixture(t)

	w := f.do(http.MethodGet, "/stock/X1", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodPost, "/orders", `{"Payload":{"connectionId":"C1","sku":"X1","amount":20}}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		OrderID string              `json:"orderId"`
		Order   domain.OrderContext `json:"order"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.OrderID)
	require.Equal(t, resp.OrderID, resp.Order.OrderID)
	require.Equal(t, domain.StatusReserved, resp.Order.Status)

	w = f.do(http.MethodGet, "/stock/X1", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"sku":"X1","available":4,"reserved":1}`, w.Body.String())
}

func TestPlaceOrderRejectsIncompleteRecord(t *testing.T) {
	f := newGatewayFixture(t)

	w := f.do(http.MethodPost, "/orders", `{"orderId":"O9","sku":"X1"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	problem := decodeProblem(t, w)
	require.Equal(t, "MISSING_CONNECTION_ID", problem.Code)

	w = f.do(http.MethodPost, "/orders", `[1,2,3]`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebsocketClientReceivesPushes(t *testing.T) {
	f := newGatewayFixture(t)
	server := httptest.NewServer(f.router)
	defer server.Close()

	conn, _, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.WriteMessage(gorillaws.TextMessage, []byte(`{"action":"REGISTER"}`)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var registered struct {
		ConnectionID string `json:"connectionId"`
	}
	require.NoError(t, json.Unmarshal(data, &registered))

	w := f.do(http.MethodGet, "/connections/"+registered.ConnectionID, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPost, "/connections/"+registered.ConnectionID, `{"hello":"world"}`)
	require.Equal(t, http.StatusOK, w.Code)
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	require.JSONEq(t, `{"hello":"world"}`, string(data))

	w = f.do(http.MethodPost, "/orders", `{"orderId":"O1","connectionId":"`+registered.ConnectionID+`","sku":"X7"}`)
	require.Equal(t, http.StatusOK, w.Code)
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	var pushed domain.StatusMessage
	require.NoError(t, json.Unmarshal(data, &pushed))
	require.Equal(t, "O1", pushed.OrderID)
	require.Equal(t, domain.StatusReserved, pushed.Status)

	w = f.do(http.MethodDelete, "/connections/"+registered.ConnectionID, "")
	require.Equal(t, http.StatusNoContent, w.Code)
	require.False(t, f.hub.Has(registered.ConnectionID))
}
