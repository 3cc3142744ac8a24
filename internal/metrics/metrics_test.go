package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"accounting/internal/core"
)

func TestResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("get user: %w", core.ErrNotFound), "not_found"},
		{&core.InsufficientBalanceError{}, "insufficient_balance"},
		{core.ErrFunderRequired, "invalid_value"},
		{&core.StorageUnavailableError{Op: "ping", Cause: errors.New("down")}, "storage_unavailable"},
		{&core.IOError{Op: "save"}, "io_error"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		if got := Result(tt.err); got != tt.want {
			t.Errorf("Result(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.LedgerOp("create", "expense", nil)
	m.LedgerOp("create", "expense", &core.InsufficientBalanceError{})
	m.FileCleanup("sweep", "removed", 2)
	m.RateLimited()
	m.ObserveHTTP(httptest.NewRequest(http.MethodGet, "/healthz", nil), http.StatusOK, 3*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`accounting_ledger_operations_total{kind="expense",operation="create",result="ok"} 1`,
		`accounting_ledger_operations_total{kind="expense",operation="create",result="insufficient_balance"} 1`,
		`accounting_file_cleanup_total{result="removed",source="sweep"} 2`,
		`accounting_rate_limited_total 1`,
		`accounting_http_request_duration_seconds_count{method="GET",route="unmatched",status="200"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
