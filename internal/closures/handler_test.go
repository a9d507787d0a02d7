package closures

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, fixture) {
	t.Helper()
	f := newFixture(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, f.svc)

	r := chi.NewRouter()
	h.MountRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, f
}

func TestClosePeriodEndpoint(t *testing.T) {
	srv, f := newTestServer(t)
	f.seedMovements(t)

	raw, err := json.Marshal(map[string]any{
		"year":    "2025",
		"user_id": "mario",
		"accruals": []map[string]any{{
			"description":    "Rateo utenze",
			"date":           "2025-12-31",
			"debit_account":  "3000",
			"credit_account": "2000",
			"amount":         "15.00",
		}},
	})
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/closures/close", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "2025/CLOSE/000001", body["protocol"])
}

func TestClosePeriodEndpointValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/closures/close", "application/json",
		bytes.NewReader([]byte(`{"year":"25","user_id":"mario"}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "year must be four digits")
}

func TestTrialBalanceEndpoint(t *testing.T) {
	srv, f := newTestServer(t)
	f.seedMovements(t)

	resp, err := http.Get(srv.URL + "/reports/trial-balance?from=2025-01-01&to=2025-12-31")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Balances []map[string]any `json:"balances"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Balances, 4)

	missing, err := http.Get(srv.URL + "/reports/trial-balance")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusBadRequest, missing.StatusCode)
}
