// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tamzrod/postcode-monitor/internal/catalog"
	"github.com/tamzrod/postcode-monitor/internal/device"
	xlog "github.com/tamzrod/postcode-monitor/internal/log"
	"github.com/tamzrod/postcode-monitor/internal/monitor"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
	commandTimeout    = 10 * time.Second
	maxCommandBody    = 1 << 10
)

// Monitor is what the HTTP surface reads and drives. *monitor.Monitor implements it.
type Monitor interface {
	Status() monitor.Status
	Recent() []monitor.Record
	Command(ctx context.Context, text string) error
}

// Catalog exposes the published catalog. *catalog.Loader implements it.
type Catalog interface {
	Snapshot() *catalog.Snapshot
}

type Server struct {
	listen string
	mon    Monitor
	cat    Catalog
	log    zerolog.Logger
}

func New(listen string, mon Monitor, cat Catalog, logger zerolog.Logger) *Server {
	return &Server{listen: listen, mon: mon, cat: cat, log: logger}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/codes/recent", s.handleRecent)
		r.Post("/device/command", s.handleCommand)
	})
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("listen", s.listen).Msg("http listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ---- handlers ----

type catalogStatus struct {
	Updated    *time.Time `json:"updated,omitempty"`
	Built      time.Time  `json:"built"`
	PostCodes  int        `json:"post_codes"`
	ErrorMasks int        `json:"error_masks"`
	OSErrors   int        `json:"os_errors"`
}

type statusResponse struct {
	Monitor monitor.Status `json:"monitor"`
	Catalog catalogStatus  `json:"catalog"`
}

type commandRequest struct {
	Command string `json:"command"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.cat.Snapshot()
	pc, em, oe := snap.Counts()

	cs := catalogStatus{Built: snap.Built, PostCodes: pc, ErrorMasks: em, OSErrors: oe}
	if !snap.Updated.IsZero() {
		updated := snap.Updated
		cs.Updated = &updated
	}

	s.writeJSON(w, http.StatusOK, statusResponse{Monitor: s.mon.Status(), Catalog: cs})
}

func (s *Server) handleRecent(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.mon.Recent())
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	cmd := strings.TrimSpace(req.Command)
	if cmd == "" || strings.ContainsFunc(cmd, isControl) {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "command must be a single printable line"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	logger := s.log.With().
		Str(xlog.FieldCommand, cmd).
		Str("request_id", middleware.GetReqID(r.Context())).
		Logger()

	err := s.mon.Command(ctx, cmd)
	switch {
	case err == nil:
		logger.Info().Msg("device command applied")
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, monitor.ErrNotRunning), errors.Is(err, device.ErrNotConnected):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		s.writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: err.Error()})
	default:
		logger.Warn().Err(err).Msg("device command failed")
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7F
}
