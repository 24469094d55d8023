package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/camrelay/internal/adapters/rtc"
	"github.com/dkeye/camrelay/internal/app"
	"github.com/dkeye/camrelay/internal/app/orch"
	"github.com/dkeye/camrelay/internal/config"
	"github.com/dkeye/camrelay/internal/core"
	"github.com/dkeye/camrelay/internal/core/coretest"
	"github.com/dkeye/camrelay/internal/metrics"
)

type testEnv struct {
	router *gin.Engine
	orch   *orch.Orchestrator
	clock  *clockwork.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	static := t.TempDir()
	for _, name := range []string{"index.html", "stream.html", "view.html"} {
		require.NoError(t, os.WriteFile(filepath.Join(static, name), []byte("<html>"+name+"</html>"), 0o600))
	}
	cfg := &config.Config{
		Mode:       "test",
		StaticPath: static,
		Secret:     "test-secret",
		ReadLimit:  1024,
		PingPeriod: time.Second,
		PongWait:   2 * time.Second,
		WriteWait:  time.Second,
		SendBuffer: 8,
	}

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC))
	o := orch.New(app.NewRegistry(app.WithClock(clock)), core.NewHub(), app.SimplePolicy{}, nil)

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg, func() metrics.Stats {
		s := o.Registry.Stats()
		return metrics.Stats{Cameras: s.Cameras, Viewers: s.Viewers}
	})
	ice, err := rtc.NewClientConfig([]config.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}, "all")
	require.NoError(t, err)

	r := SetupRouter(context.Background(), cfg, Deps{Orch: o, ICE: ice, Metrics: m, Gatherer: promReg})
	return &testEnv{router: r, orch: o, clock: clock}
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestCamerasEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/api/cameras")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	env.orch.OnConnect("s1", &coretest.Conn{})
	env.orch.OnConnect("v1", &coretest.Conn{})
	cam, err := env.orch.StartStream("s1")
	require.NoError(t, err)
	require.NoError(t, env.orch.JoinCamera("v1", cam.ID))

	rec = env.get(t, "/api/cameras")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, string(cam.ID), got[0]["id"])
	assert.Equal(t, cam.Name, got[0]["name"])
	assert.Equal(t, 1.0, got[0]["viewers"])
	assert.Equal(t, "2026-03-04T05:06:07Z", got[0]["started_at"])
	assert.NotContains(t, got[0], "Owner")

	rec = env.get(t, "/api/cameras/"+string(cam.ID))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.get(t, "/api/cameras/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCameraPage(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/camera/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.orch.OnConnect("s1", &coretest.Conn{})
	cam, _ := env.orch.StartStream("s1")
	rec = env.get(t, "/camera/"+string(cam.ID))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "view.html")

	env.orch.OnDisconnect("s1")
	rec = env.get(t, "/camera/"+string(cam.ID))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPagesAndHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/stream")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stream.html")

	rec = env.get(t, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","cameras":0,"connections":0}`, rec.Body.String())
}

func TestICEServersEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec := env.get(t, "/api/ice-servers")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"iceServers":[{"urls":["stun:stun.l.google.com:19302"]}],"iceTransportPolicy":"all"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.orch.OnConnect("s1", &coretest.Conn{})
	_, err := env.orch.StartStream("s1")
	require.NoError(t, err)

	rec := env.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "camrelay_cameras_active 1")
}

func TestClientTokenCookie(t *testing.T) {
	env := newTestEnv(t)
	rec := env.get(t, "/healthz")
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "CamRelaySessions=")
}
