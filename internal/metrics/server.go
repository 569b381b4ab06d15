package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-index/internal/logging"
)

// ProgressFunc returns a JSON-serializable snapshot of the current run.
type ProgressFunc func() interface{}

type healthResponse struct {
	Status string      `json:"status"`
	Build  interface{} `json:"build,omitempty"`
}

// NewRouter builds the status routes: /metrics, /healthz and /progress.
// build, if non-nil, is reported by /healthz.
func NewRouter(progress ProgressFunc, build interface{}) *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, healthResponse{Status: "ok", Build: build})
	}).Methods("GET")
	r.HandleFunc("/progress", func(w http.ResponseWriter, _ *http.Request) {
		if progress == nil {
			writeJSON(w, struct{}{})
			return
		}
		writeJSON(w, progress())
	}).Methods("GET")

	return r
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to encode status response: %v", err)
	}
}

// StatusServer exposes metrics and run progress over HTTP while an index
// run is in progress.
type StatusServer struct {
	srv      *http.Server
	listener net.Listener
}

// StartStatusServer listens on addr and serves the status routes in the
// background. Use ":0" to pick a free port.
func StartStatusServer(addr string, progress ProgressFunc, build interface{}) (*StatusServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s := &StatusServer{
		srv: &http.Server{
			Handler:           NewRouter(progress, build),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		listener: ln,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Status server error: %v", err)
		}
	}()

	logging.Info("Status server listening on %s", ln.Addr())
	return s, nil
}

// Addr returns the address the server is bound to.
func (s *StatusServer) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown stops the server, waiting for in-flight requests until ctx expires.
func (s *StatusServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
