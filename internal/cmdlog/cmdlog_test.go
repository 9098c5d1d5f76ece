package cmdlog

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"

	"herald/internal/logging"
)

func TestRunCountsErrors(t *testing.T) {
	assert.NoError(t, Run("cmdlog_test", func() error { return nil }))
	boom := errors.New("boom")
	assert.ErrorIs(t, Run("cmdlog_test", func() error { return boom }), boom)

	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `herald_command_runs_total{command="cmdlog_test"} 2`)
	assert.Contains(t, body, `herald_command_errors_total{command="cmdlog_test"} 1`)
}

func TestRunLogsOutcome(t *testing.T) {
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	defer logging.SetOutput(os.Stdout)

	_ = Run("stats", func() error { return nil })
	_ = Run("login", func() error { return errors.New("no password") })
	out := buf.String()
	assert.Contains(t, out, `"message":"command_done"`)
	assert.Contains(t, out, `"command":"stats"`)
	assert.Contains(t, out, `"message":"command_failed"`)
	assert.Contains(t, out, `"error":"no password"`)
	assert.Contains(t, out, `"duration_ms"`)
}
