package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chunkwire/chunkwire/internal/netstatus"
	"github.com/chunkwire/chunkwire/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	records []storage.TransferRecord
	err     error
}

func (s *stubRepo) GetTransfers() ([]storage.TransferRecord, error) {
	return s.records, s.err
}

func TestHealth_ReportsConnectivity(t *testing.T) {
	detector := netstatus.NewDetector(nil)
	h := NewStatusHandler(&stubRepo{}, detector)

	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	tests := []struct {
		name string
		down bool
		want string
	}{
		{name: "up", down: false, want: "up"},
		{name: "down", down: true, want: "down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detector.ReportStatus(!tt.down)

			resp, err := http.Get(srv.URL + "/healthz")
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)

			var body HealthResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, "ok", body.Status)
			assert.Equal(t, tt.want, body.Connectivity)
		})
	}
}

func TestTransfers_ListsRecords(t *testing.T) {
	repo := &stubRepo{records: []storage.TransferRecord{
		{TransferID: "a1", FilePath: "movies/a.mkv", Status: "completed"},
		{TransferID: "b2", FilePath: "movies/b.mkv", Status: "transferring"},
	}}

	h := NewStatusHandler(repo, netstatus.NewDetector(nil))

	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/transfers")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body []TransferResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body, 2)
	assert.Equal(t, "a1", body[0].TransferID)
	assert.Equal(t, "transferring", body[1].Status)
}

func TestTransfers_RepositoryError(t *testing.T) {
	h := NewStatusHandler(&stubRepo{err: errors.New("db locked")}, nil)

	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/transfers")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
