package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"accounting/internal/core"
	"accounting/internal/log"
	"accounting/internal/metrics"
)

type fakeSweeper struct {
	removed int
	err     error
}

func (f fakeSweeper) Sweep(context.Context) (int, error) { return f.removed, f.err }

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestSweepCountsOneOutcome(t *testing.T) {
	tests := []struct {
		name    string
		sweeper fakeSweeper
		want    []string
		absent  []string
	}{
		{
			name:    "removed files",
			sweeper: fakeSweeper{removed: 3},
			want:    []string{`accounting_file_cleanup_total{result="ok",source="sweep"} 3`},
			absent:  []string{`result="error"`, `result="io_error"`},
		},
		{
			name:    "nothing to remove",
			sweeper: fakeSweeper{},
			absent:  []string{`source="sweep"`},
		},
		{
			name:    "listing failed",
			sweeper: fakeSweeper{err: fmt.Errorf("list files: %w", core.ErrIO)},
			want:    []string{`accounting_file_cleanup_total{result="io_error",source="sweep"} 1`},
			absent:  []string{`result="ok"`},
		},
		{
			name:    "failed after partial removal",
			sweeper: fakeSweeper{removed: 2, err: errors.New("boom")},
			want:    []string{`accounting_file_cleanup_total{result="error",source="sweep"} 1`},
			absent:  []string{`result="ok"`},
		},
		{
			name:    "canceled mid pass",
			sweeper: fakeSweeper{removed: 1, err: context.Canceled},
			want:    []string{`accounting_file_cleanup_total{result="ok",source="sweep"} 1`},
			absent:  []string{`result="error"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil), Component: "test"})
			m := metrics.New()

			sweep(context.Background(), logger, log.NewStructuredLogger(logger), tt.sweeper, m)

			body := scrape(t, m)
			for _, want := range tt.want {
				if !strings.Contains(body, want) {
					t.Errorf("metrics output missing %s", want)
				}
			}
			for _, line := range strings.Split(body, "\n") {
				if !strings.HasPrefix(line, "accounting_file_cleanup_total{") {
					continue
				}
				for _, bad := range tt.absent {
					if strings.Contains(line, bad) {
						t.Errorf("unexpected sample %s", line)
					}
				}
			}
		})
	}
}
