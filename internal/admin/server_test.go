package admin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amoylab/oscbridge/internal/bridge"
	"github.com/amoylab/oscbridge/internal/common/config"
	"github.com/amoylab/oscbridge/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticStatus struct {
	st    bridge.Status
	panic bool
}

func (s staticStatus) Status() bridge.Status {
	if s.panic {
		panic("status unavailable")
	}
	return s.st
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestServer_HealthCheck(t *testing.T) {
	s := NewServer(zap.NewNop(), staticStatus{}, nil)

	w := get(t, s.Handler(), "/health_check")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","message":"Health check passed."}`, w.Body.String())
}

func TestServer_Status(t *testing.T) {
	since := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewServer(zap.NewNop(), staticStatus{st: bridge.Status{
		Connected:      true,
		ConnectedSince: &since,
		Channel:        "osc_control_1",
		Epoch:          2,
		CatalogSize:    5,
		MappingSize:    3,
		Listening:      "127.0.0.1:9001",
		Cycles:         1,
	}}, nil)

	w := get(t, s.Handler(), "/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Version string        `json:"version"`
		Bridge  bridge.Status `json:"bridge"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Version)
	assert.True(t, body.Bridge.Connected)
	assert.Equal(t, "osc_control_1", body.Bridge.Channel)
	assert.Equal(t, uint64(2), body.Bridge.Epoch)
	assert.Equal(t, 5, body.Bridge.CatalogSize)
	require.NotNil(t, body.Bridge.ConnectedSince)
	assert.True(t, since.Equal(*body.Bridge.ConnectedSince))
}

func TestServer_RecoversFromPanics(t *testing.T) {
	s := NewServer(zap.NewNop(), staticStatus{panic: true}, nil)

	w := get(t, s.Handler(), "/status")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body["error"])
	_, err := uuid.Parse(body["trace_id"])
	assert.NoError(t, err)
}

func TestServer_MetricsAndStart(t *testing.T) {
	m := metrics.New(config.MetricsConfig{Namespace: "admin_test"})
	s := NewServer(zap.NewNop(), staticStatus{}, m)
	require.NoError(t, s.Start(config.AdminConfig{Host: "127.0.0.1", Port: 0}))
	defer func() { _ = s.Shutdown(context.Background()) }()

	base := "http://" + s.Addr().String()
	resp, err := http.Get(base + "/health_check")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `admin_test_http_requests_total{method="GET",route="/health_check",status="200"} 1`)
}

func TestServer_ShutdownWithoutStart(t *testing.T) {
	s := NewServer(zap.NewNop(), staticStatus{}, nil)
	assert.Nil(t, s.Addr())
	assert.NoError(t, s.Shutdown(context.Background()))
}
