// Package api serves report tables over HTTP as JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ppiankov/coctel/internal/rank"
	"github.com/ppiankov/coctel/internal/render"
	"github.com/ppiankov/coctel/internal/report"
)

const requestTimeout = 15 * time.Second

// Options configures a Server.
type Options struct {
	Runner    *report.Runner
	Regions   report.RegionResolver
	Location  *time.Location
	Precision int
	// TopN is the default ranking size for reports that rank.
	TopN   int
	Logger *log.Logger
}

// Server answers report requests.
type Server struct {
	opts Options
	log  *log.Logger
}

// New creates a server. Runner is required.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Server{opts: opts, log: logger}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/reports", s.handleList)
	r.Get("/reports/{name}", s.handleReport)

	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      requestTimeout + 5*time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("api server starting", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}

type errorResponse struct {
	Error string `json:"error"`
}

type reportInfo struct {
	Name    string   `json:"name"`
	Title   string   `json:"title"`
	Dims    []string `json:"dims"`
	Sources string   `json:"sources"`
	Ranked  bool     `json:"ranked"`
}

type reportResponse struct {
	render.Document
	Error string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	catalog := report.Catalog()
	out := make([]reportInfo, 0, len(catalog))
	for _, spec := range catalog {
		info := reportInfo{
			Name:    spec.Name,
			Title:   spec.Title,
			Sources: spec.Sources.String(),
			Ranked:  spec.Top != nil,
		}
		for _, d := range spec.Dims {
			info.Dims = append(info.Dims, string(d))
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	name := chi.URLParam(r, "name")
	spec, ok := report.Lookup(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown report " + strconv.Quote(name)})
		return
	}

	values := r.URL.Query()
	params := report.Params{
		From:      values.Get("from"),
		To:        values.Get("to"),
		Locations: listParam(values["location"]),
		Regions:   listParam(values["region"]),
		Sources:   values.Get("source"),
		Flag:      values.Get("flag"),
	}
	q, err := params.Query(s.opts.Location, s.opts.Regions)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	top := s.opts.TopN
	if raw := strings.TrimSpace(values.Get("top")); raw != "" {
		top, err = strconv.Atoi(raw)
		if err != nil || top < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "top: want a non-negative integer"})
			return
		}
	}
	spec = spec.WithTop(top)

	if raw := strings.TrimSpace(values.Get("rank")); raw != "" {
		mode, err := rank.ParseMode(raw)
		if err == nil {
			spec, err = spec.WithRankMode(mode)
		}
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "rank: " + err.Error()})
			return
		}
	}

	if raw := values.Get("all_positions"); raw != "" {
		spec.IncludeUndefined = !strings.EqualFold(raw, "false") && raw != "0"
	}

	res, err := s.opts.Runner.Run(ctx, q, spec)
	resp := reportResponse{Document: render.NewDocument(res, s.opts.Precision)}
	if err != nil {
		s.log.Error("report failed", "report", spec.Name, "request_id", requestID(r), "err", err)
		resp.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// listParam accepts repeated and comma separated values.
func listParam(raw []string) []string {
	var out []string
	for _, v := range raw {
		out = append(out, report.SplitList(v)...)
	}
	return out
}

type ctxKey struct{}

// requestLog tags each request with a UUID and logs its outcome.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, id))

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug("request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
