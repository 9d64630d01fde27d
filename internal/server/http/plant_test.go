package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	cfgpkg "github.com/loekd/MissionCriticalDemo/internal/config"
	"github.com/loekd/MissionCriticalDemo/internal/plant"
	"github.com/loekd/MissionCriticalDemo/internal/runtime"
	pebblestore "github.com/loekd/MissionCriticalDemo/internal/storage/pebble"
	logpkg "github.com/loekd/MissionCriticalDemo/pkg/log"
)

func newPlantFixture(t *testing.T) (*PlantServer, *plant.Store) {
	t.Helper()
	rt, err := runtime.Open(runtime.Options{
		DataDir: t.TempDir(),
		Fsync:   pebblestore.FsyncModeNever,
		Config:  cfgpkg.Default(),
		Logger:  logpkg.NewTestLogger(),
	})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	store := rt.PlantStore()
	return NewPlant(rt, store, logpkg.NewTestLogger()), store
}

func plantDo(s *PlantServer, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, req)
	return w
}

func TestPlantHealth(t *testing.T) {
	s, _ := newPlantFixture(t)
	w := plantDo(s, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
}

func TestPlantFillAndMax(t *testing.T) {
	s, store := newPlantFixture(t)
	if _, err := store.Inject(40); err != nil {
		t.Fatalf("inject: %v", err)
	}

	w := plantDo(s, httptest.NewRequest(http.MethodGet, "/api/gasinstore", nil))
	var body map[string]int
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if w.Code != http.StatusOK || body["fillLevel"] != 40 {
		t.Fatalf("fill: %d %s", w.Code, w.Body.String())
	}

	w = plantDo(s, httptest.NewRequest(http.MethodGet, "/api/gasinstore/maxfilllevel", nil))
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["maxFillLevel"] != plant.DefaultMaxFillLevel {
		t.Fatalf("max: %s", w.Body.String())
	}
}

func TestPlantSeed(t *testing.T) {
	s, store := newPlantFixture(t)
	w := plantDo(s, httptest.NewRequest(http.MethodPost, "/api/gasinstore/55", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d, body: %s", w.Code, w.Body.String())
	}
	if fill, _ := store.Fill(); fill != 55 {
		t.Fatalf("fill after seed: %d", fill)
	}

	w = plantDo(s, httptest.NewRequest(http.MethodPost, "/api/gasinstore/nonsense", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad amount status: %d", w.Code)
	}
}
