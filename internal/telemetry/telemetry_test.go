package telemetry

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Disabled(t *testing.T) {
	tel, err := New(Config{Enabled: false})
	require.NoError(t, err)

	// Recording on a disabled instance must be a no-op, not a panic.
	tel.RecordChunk("download", "success", 100, time.Millisecond)
	tel.IncrementActiveTransfers()
	tel.DecrementActiveTransfers()
	tel.RecordOutageRecovery()
}

func TestNew_ExposesServiceIdentityOnMetricsEndpoint(t *testing.T) {
	tel, err := New(Config{
		Enabled:        true,
		ServiceName:    "chunkwire-test",
		ServiceVersion: "1.2.3",
	})
	require.NoError(t, err)

	tel.RecordChunk("download", "success", 100, time.Millisecond)

	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, `service_name="chunkwire-test"`)
	assert.Contains(t, body, `service_version="1.2.3"`)
	assert.Contains(t, body, "chunks_total")
}
