package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Quantum1000/the-factory-must-grow/internal/app"
	"github.com/Quantum1000/the-factory-must-grow/internal/config"
	"github.com/Quantum1000/the-factory-must-grow/internal/metrics"
	"github.com/Quantum1000/the-factory-must-grow/internal/storage"
	"github.com/Quantum1000/the-factory-must-grow/internal/vec"
	"github.com/Quantum1000/the-factory-must-grow/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	rs   *RestServer
	game *app.Game
}

func newTestServer(t *testing.T, generate bool) *testServer {
	t.Helper()
	reg := prometheus.NewRegistry()
	game := app.New(app.Options{
		World:   config.WorldConfig{Size: 32, OreSpacing: 16, Seed: 5},
		WorldID: "api",
		Repo:    storage.NewMemorySnapshotRepo(),
		Metrics: metrics.NewCollector(reg),
	})
	if generate {
		_, err := game.Generate(context.Background())
		require.NoError(t, err)
	}
	rs := NewRestServer(Config{Game: game, Registerer: reg, Gatherer: reg})
	return &testServer{rs: rs, game: game}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, GenericResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.rs.Handler().ServeHTTP(w, req)

	var resp GenericResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestHealthAndWorldInfo(t *testing.T) {
	ts := newTestServer(t, true)

	w, _ := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Trace-Id"))

	w, resp := ts.do(t, http.MethodGet, "/api/world", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "generated", data["state"])
	assert.Equal(t, float64(32), data["size"])
}

func TestTileEndpoints(t *testing.T) {
	ts := newTestServer(t, true)

	// Центр занят 3D-принтером
	w, resp := ts.do(t, http.MethodGet, "/api/tiles/16/16", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tile := resp.Data.(map[string]interface{})
	contents := tile["contents"].([]interface{})
	require.Len(t, contents, 1)
	assert.Equal(t, "printer3d", contents[0].(map[string]interface{})["type"].(map[string]interface{})["kind"])

	w, _ = ts.do(t, http.MethodPost, "/api/tiles/16/16", PlaceRequest{Type: "wire_extruder"})
	assert.Equal(t, http.StatusConflict, w.Code, "здание на здании недопустимо")

	w, resp = ts.do(t, http.MethodPost, "/api/tiles/16/16", PlaceRequest{Type: "resource", Resources: []string{"wire", "iron"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "placed", resp.Data.(map[string]interface{})["outcome"])

	w, resp = ts.do(t, http.MethodPost, "/api/tiles/16/16", PlaceRequest{Type: "resource", Resources: []string{"wire"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "merged", resp.Data.(map[string]interface{})["outcome"])

	w, resp = ts.do(t, http.MethodDelete, "/api/tiles/16/16", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "removed", resp.Data.(map[string]interface{})["outcome"])

	w, _ = ts.do(t, http.MethodGet, "/api/tiles/99/0", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = ts.do(t, http.MethodGet, "/api/tiles/a/0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = ts.do(t, http.MethodPost, "/api/tiles/1/1", PlaceRequest{Type: "conveyor"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = ts.do(t, http.MethodPost, "/api/tiles/1/1", PlaceRequest{Type: "iron", Resources: []string{"wire"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = ts.do(t, http.MethodPost, "/api/tiles/1/1", map[string]int{"rotation": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code, "type обязателен")
}

func TestRegionAndMap(t *testing.T) {
	ts := newTestServer(t, true)

	w, resp := ts.do(t, http.MethodGet, "/api/region?x0=15&y0=15&x1=17&y1=17", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.GreaterOrEqual(t, len(resp.Data.([]interface{})), 5, "стартовая раскладка занимает крест из пяти клеток")

	w, _ = ts.do(t, http.MethodGet, "/api/region?x0=0&y0=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, resp = ts.do(t, http.MethodGet, "/api/region?x0=-9000000000000000000&y0=0&x1=9000000000000000000&y1=500", nil)
	require.Equal(t, http.StatusOK, w.Code, "область обрезается до сетки 32x32")
	assert.Len(t, resp.Data.([]interface{}), ts.game.Info().Occupied)

	w, _ = ts.do(t, http.MethodGet, "/api/world/map?radius=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	lines := strings.Split(strings.TrimRight(w.Body.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, byte('W'), lines[0][1], "рабочий над принтером")
	assert.Equal(t, byte('P'), lines[1][1])
	assert.Equal(t, byte('E'), lines[1][0])
}

func TestSaveAndLoad(t *testing.T) {
	ts := newTestServer(t, true)

	w, resp := ts.do(t, http.MethodPost, "/api/world/save", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "api", resp.Data.(map[string]interface{})["id"])

	w, _ = ts.do(t, http.MethodDelete, "/api/tiles/16/16", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = ts.do(t, http.MethodPost, "/api/world/load", LoadRequest{ID: "api"})
	require.Equal(t, http.StatusOK, w.Code)
	view, err := ts.game.Tile(vec.Vec2{X: 16, Y: 16})
	require.NoError(t, err)
	require.Len(t, view.Contents, 1, "загрузка возвращает сохранённую стопку")
	assert.Equal(t, world.KindPrinter3D, view.Contents[0].Type.Kind)

	w, _ = ts.do(t, http.MethodPost, "/api/world/load", LoadRequest{ID: "nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotGeneratedWorld(t *testing.T) {
	ts := newTestServer(t, false)
	w, _ := ts.do(t, http.MethodGet, "/api/tiles/0/0", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w, _ = ts.do(t, http.MethodPost, "/api/tiles/0/0", PlaceRequest{Type: "iron"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatsAndMetrics(t *testing.T) {
	ts := newTestServer(t, true)
	ts.do(t, http.MethodPost, "/api/tiles/16/16", PlaceRequest{Type: "worker"})

	w, resp := ts.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.Contains(t, data, "server")
	displayStats := data["display"].(map[string]interface{})
	assert.Greater(t, displayStats["live"].(float64), float64(0))

	w, _ = ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "factory_placement_rejections_total")
	assert.Contains(t, body, `factory_placements_total{kind="printer3d",outcome="placed",source="worldgen"} 1`)
	assert.Contains(t, body, "factory_api_http_request_duration_seconds")
}

func TestStatusForMapsErrors(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(world.ErrIllegalPlacement))
	assert.Equal(t, http.StatusNotFound, statusFor(storage.ErrNotFound))
	assert.Equal(t, http.StatusBadRequest, statusFor(app.ErrRegionTooLarge))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}

func TestPositionLookup(t *testing.T) {
	ts := newTestServer(t, true)

	w, resp := ts.do(t, http.MethodGet, "/api/positions/0/0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tile := resp.Data.(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"x": float64(16), "y": float64(16)}, tile["index"], "центр мира - центральная клетка сетки")

	w, resp = ts.do(t, http.MethodGet, "/api/positions/0/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	contents := resp.Data.(map[string]interface{})["contents"].([]interface{})
	require.Len(t, contents, 1)
	assert.Equal(t, "worker", contents[0].(map[string]interface{})["type"].(map[string]interface{})["kind"])

	w, _ = ts.do(t, http.MethodGet, "/api/positions/16/0", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStopBeforeStart(t *testing.T) {
	ts := newTestServer(t, false)
	ts.rs.port = "127.0.0.1:0"
	ts.rs.httpSrv.Addr = ts.rs.port

	require.NoError(t, ts.rs.Stop(context.Background()))

	done := make(chan error, 1)
	go func() { done <- ts.rs.Start() }()
	select {
	case err := <-done:
		assert.NoError(t, err, "остановленный сервер не начинает слушать")
	case <-time.After(2 * time.Second):
		t.Fatal("Start после Stop не вернул управление")
	}
}
