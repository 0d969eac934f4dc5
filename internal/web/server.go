// Package web provides an HTTP status server for the maintenance-monitor
// daemon.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-logr/logr"

	"github.com/sweeney/maintenance-monitor/internal/logic"
	"github.com/sweeney/maintenance-monitor/internal/status"
)

// ErrUnknownMonitor is returned by a Commander for an id it does not own.
var ErrUnknownMonitor = errors.New("unknown monitor")

const commandTimeout = 5 * time.Second

// Commander applies maintenance commands. Implementations serialize the
// commands with every other event touching the monitor.
type Commander interface {
	Reset(ctx context.Context, id string, date *time.Time) error
	SetLastMaintenanceDate(ctx context.Context, id string, date time.Time) error
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	commander  Commander
	log        logr.Logger
}

// New creates a Server that reads state from the given tracker. metrics may
// be nil, in which case /metrics is not served.
func New(addr string, tracker *status.Tracker, commander Commander, metrics http.Handler, log logr.Logger) *Server {
	s := &Server{tracker: tracker, commander: commander, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	mux.HandleFunc("POST /api/monitors/{id}/reset", s.handleReset)
	mux.HandleFunc("POST /api/monitors/{id}/last-maintenance-date", s.handleSetDate)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		s.log.Error(err, "render index")
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var date *time.Time
	if raw := r.FormValue("date"); raw != "" {
		d, err := logic.ParseDate(raw, time.Local)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		date = &d
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()
	s.respond(w, r, id, s.commander.Reset(ctx, id, date))
}

func (s *Server) handleSetDate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	raw := r.FormValue("date")
	if raw == "" {
		writeError(w, http.StatusBadRequest, errors.New("date is required"))
		return
	}
	d, err := logic.ParseDate(raw, time.Local)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()
	s.respond(w, r, id, s.commander.SetLastMaintenanceDate(ctx, id, d))
}

// respond reports a command result. Browser forms ask to be redirected back
// to the status page; API callers get the monitor's new state.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, id string, err error) {
	switch {
	case errors.Is(err, ErrUnknownMonitor):
		writeError(w, http.StatusNotFound, err)
		return
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, err)
		return
	case err != nil:
		s.log.Error(err, "command failed", "monitor", id)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if r.FormValue("redirect") != "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	m, _ := s.tracker.Monitor(id)
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatMonitorState(m))
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
