//go:build pact
// +build pact

package pacttest

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

const (
	ProviderName = "order-gateway"
	ConsumerName = "order-worker"

	StateConnectionOpen   = "connection conn-live is open"
	StateConnectionClosed = "connection conn-gone is closed"
	StateStockSeeded      = "stock for sku X1 is seeded"
)

const (
	LiveConnectionID = "conn-live"
	GoneConnectionID = "conn-gone"

	SeededSKU          = "X1"
	SeededAvailable    = int64(4)
	SeededReserved     = int64(1)
	ExampleOrderID     = "order-pact-1"
	ExampleOrderStatus = "RESERVED"
)

// PactDir returns the workspace-level directory for generated pact files.
func PactDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "pacts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact dir: %v", err)
	}
	return dir
}

// PactFile returns the canonical pact file path for the worker consumer.
func PactFile(t testing.TB) string {
	t.Helper()
	return filepath.Join(PactDir(t), ConsumerName+"-"+ProviderName+".json")
}

// LogDir returns the log output directory for pact-go.
func LogDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "bin", "pact-logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact log dir: %v", err)
	}
	return dir
}

// ExampleStatusMessage is the status push a worker sends after a reservation.
func ExampleStatusMessage() map[string]any {
	return map[string]any{
		"orderId": ExampleOrderID,
		"status":  ExampleOrderStatus,
		"sku":     SeededSKU,
	}
}

// projectRoot walks up from this file to the workspace root.
func projectRoot(t testing.TB) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine caller for pact paths")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}
