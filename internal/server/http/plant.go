package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/loekd/MissionCriticalDemo/internal/plant"
	"github.com/loekd/MissionCriticalDemo/internal/runtime"
	"github.com/loekd/MissionCriticalDemo/pkg/log"
)

// PlantServer is the plant-side HTTP surface.
type PlantServer struct {
	rt     *runtime.Runtime
	srv    *http.Server
	lis    net.Listener
	store  *plant.Store
	logger log.Logger
}

// NewPlant builds the plant server.
func NewPlant(rt *runtime.Runtime, store *plant.Store, logger log.Logger) *PlantServer {
	mux := http.NewServeMux()
	s := &PlantServer{
		rt:     rt,
		srv:    &http.Server{Handler: cors(mux)},
		store:  store,
		logger: logger.WithComponent("http"),
	}
	mux.HandleFunc("/v1/healthz", s.handleHealth)
	mux.HandleFunc("/api/gasinstore", s.handleGasInStore)
	mux.HandleFunc("/api/gasinstore/maxfilllevel", s.handleMaxFillLevel)
	mux.HandleFunc("/api/gasinstore/", s.handleSeed)
	return s
}

// ListenAndServe serves until ctx is cancelled.
func (s *PlantServer) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *PlantServer) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func (s *PlantServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_serving"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *PlantServer) handleGasInStore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	fill, err := s.store.Fill()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"fillLevel": fill})
}

func (s *PlantServer) handleMaxFillLevel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"maxFillLevel": s.store.MaxFillLevel()})
}

// handleSeed sets the overall fill level: POST /api/gasinstore/{amount}.
func (s *PlantServer) handleSeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	raw := strings.TrimPrefix(r.URL.Path, "/api/gasinstore/")
	amount, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("malformed amount %q", raw))
		return
	}
	if err := s.store.SetFill(amount); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	fill, err := s.store.Fill()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.logger.Info("gas in store seeded", log.Int("fill_level", fill))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"fillLevel": fill})
}
