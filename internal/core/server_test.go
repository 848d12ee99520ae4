package core

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"DriveBridge/internal/device"
	"DriveBridge/internal/link"
	"DriveBridge/internal/model"
)

func TestStatusEndpoint(t *testing.T) {
	_, _, ts := newBridgeFixture(t)

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap model.StatusSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	require.Equal(t, model.TypeStatus, snap.Type)
	require.Equal(t, "STOPPED", snap.Direction)
}

func TestDriftEndpointDisabledWithoutStore(t *testing.T) {
	_, _, ts := newBridgeFixture(t)

	resp, err := http.Get(ts.URL + "/api/drift")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDriftEndpointServesRecordedSamples(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Serial.ReadTimeoutMs = 200
	cfg.Serial.GraceMs = 20
	cfg.Store.Path = filepath.Join(t.TempDir(), "drift.db")

	port := link.NewTestablePort()
	port.SetResponder(device.NewFirmware().Process)
	sys, err := NewSystemWithPort(&cfg, port)
	require.NoError(t, err)
	t.Cleanup(func() {
		sys.Link.Close()
		sys.DriftLog.Close()
	})

	require.NoError(t, sys.DriftLog.Append(model.DriftSample{Drift: 42}))

	ts := httptest.NewServer(sys.Server.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/api/drift?n=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var samples []model.DriftSample
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&samples))
	require.Len(t, samples, 1)
	require.Equal(t, 42, samples[0].Drift)

	bad, err := http.Get(ts.URL + "/api/drift?n=zero")
	require.NoError(t, err)
	defer bad.Body.Close()
	require.Equal(t, http.StatusBadRequest, bad.StatusCode)
}
