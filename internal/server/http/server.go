package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/loekd/MissionCriticalDemo/internal/inbox"
	"github.com/loekd/MissionCriticalDemo/internal/ledger"
	"github.com/loekd/MissionCriticalDemo/internal/messages"
	"github.com/loekd/MissionCriticalDemo/internal/notify"
	"github.com/loekd/MissionCriticalDemo/internal/outbox"
	"github.com/loekd/MissionCriticalDemo/internal/runtime"
	"github.com/loekd/MissionCriticalDemo/internal/tracing"
	"github.com/loekd/MissionCriticalDemo/pkg/log"
)

// customerHeader names the customer on per-customer reads.
const customerHeader = "X-Customer-Id"

// Server is the dispatch-side HTTP surface.
type Server struct {
	rt     *runtime.Runtime
	srv    *http.Server
	lis    net.Listener
	outbox *outbox.Relay
	inbox  *inbox.Relay
	ledger *ledger.Ledger
	notify *notify.Service
	logger log.Logger
}

// New builds the dispatch server around the given facades.
func New(rt *runtime.Runtime, out *outbox.Relay, in *inbox.Relay, led *ledger.Ledger, ns *notify.Service, logger log.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{
		rt:     rt,
		srv:    &http.Server{Handler: cors(mux)},
		outbox: out,
		inbox:  in,
		ledger: led,
		notify: ns,
		logger: logger.WithComponent("http"),
	}
	mux.HandleFunc("/v1/healthz", s.handleHealth)
	mux.HandleFunc("/api/dispatch", s.handleDispatch)
	mux.HandleFunc("/api/dispatch/flowres", s.handleFlowResponse)
	mux.HandleFunc("/api/gasinstore", s.handleGasInStore)
	mux.HandleFunc("/api/gasinstore/overall", s.handleOverall)
	mux.HandleFunc("/api/gasinstore/maxfilllevel", s.handleMaxFillLevel)
	mux.HandleFunc("/api/notifications", s.handleNotificationsSSE)
	return s
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
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

func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Last-Event-ID, "+customerHeader)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_serving"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req messages.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("malformed request body: %w", err))
		return
	}
	if req.RequestID == uuid.Nil {
		req.RequestID = uuid.New()
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.outbox.Submit(r.Context(), req); err != nil {
		if errors.Is(err, ledger.ErrInsufficientStock) || errors.Is(err, ledger.ErrCapacityExceeded) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"requestId": req.RequestID.String()})
}

// handleFlowResponse is the inbound webhook for bus deliveries of plant
// responses. The trace parent travels in the traceparent/tracestate headers.
func (s *Server) handleFlowResponse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := messages.DecodeResponse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("malformed response payload: %w", err))
		return
	}
	ctx := tracing.ExtractHTTP(r.Context(), r.Header.Get("traceparent"), r.Header.Get("tracestate"))
	if err := s.inbox.Receive(ctx, resp, tracing.FromContext(ctx)); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGasInStore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	customerID, err := uuid.Parse(r.Header.Get(customerHeader))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing or malformed %s header", customerHeader))
		return
	}
	qty, err := s.ledger.Quantity(customerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"amountInGWh": qty})
}

func (s *Server) handleOverall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	fill, _, err := s.ledger.CachedFillLevel()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"fillLevel": fill})
}

func (s *Server) handleMaxFillLevel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	max, _, err := s.ledger.CachedMaxFillLevel()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"maxFillLevel": max})
}

// handleNotificationsSSE streams ledger status updates. Clients may pass an
// optional CEL ?filter= expression and resume via Last-Event-ID.
func (s *Server) handleNotificationsSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	filterExpr := r.URL.Query().Get("filter")
	sub, err := s.notify.Subscribe(filterExpr, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer s.notify.Unsubscribe(sub)

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var lastSent uint64
	if lastID := r.Header.Get("Last-Event-ID"); lastID != "" {
		after, err := strconv.ParseUint(lastID, 10, 64)
		if err == nil {
			events, err := s.notify.Replay(after, filterExpr, 1000)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			for _, ev := range events {
				writeSSE(w, ev)
				lastSent = ev.Seq
			}
			flusher.Flush()
		}
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-sub.Events():
			if !open {
				return
			}
			if ev.Seq <= lastSent {
				continue
			}
			writeSSE(w, ev)
			lastSent = ev.Seq
			flusher.Flush()
		}
	}
}

func writeSSE(w io.Writer, ev notify.Event) {
	fmt.Fprintf(w, "id: %d\n", ev.Seq)
	fmt.Fprintf(w, "data: %s\n\n", ev.Payload)
}
