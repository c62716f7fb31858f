package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/armon/go-metrics"
	"github.com/gorilla/mux"

	"github.com/GPTx-global/sun-network-oracle/oracle/log"
)

// SetupMetrics installs an in-memory global metrics sink
func SetupMetrics(service string, interval, retain time.Duration) (*metrics.InmemSink, error) {
	sink := metrics.NewInmemSink(interval, retain)

	cfg := metrics.DefaultConfig(service)
	cfg.EnableHostname = false
	cfg.EnableRuntimeMetrics = false

	if _, err := metrics.NewGlobal(cfg, sink); err != nil {
		return nil, err
	}

	return sink, nil
}

// Server exposes /health, /status and /metrics
type Server struct {
	checker  *Checker
	sink     *metrics.InmemSink
	inFlight func() int
	srv      *http.Server
	logger   log.Logger
}

// NewServer builds the server. sink and inFlight may be nil.
func NewServer(addr string, checker *Checker, sink *metrics.InmemSink, inFlight func() int, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNop()
	}

	s := &Server{
		checker:  checker,
		sink:     sink,
		inFlight: inFlight,
		logger:   logger.With("module", "health-server"),
	}

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	return r
}

// Start serves until ctx is done
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving health endpoint", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	code := http.StatusOK
	body := map[string]string{"status": "ok"}
	if !s.checker.IsHealthy() {
		code = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
	}

	writeJSON(w, code, body)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	body := struct {
		Healthy  bool              `json:"healthy"`
		InFlight int               `json:"in_flight"`
		Checks   map[string]Status `json:"checks"`
	}{
		Healthy: s.checker.IsHealthy(),
		Checks:  s.checker.Status(),
	}
	if s.inFlight != nil {
		body.InFlight = s.inFlight()
	}

	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.sink == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "metrics disabled"})
		return
	}

	summary, err := s.sink.DisplayMetrics(w, r)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
