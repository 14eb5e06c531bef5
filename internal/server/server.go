// Package server exposes the diff, patch and rollback engines over HTTP
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Jeffail/gabs"
	"github.com/cespare/xxhash"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mcncl/jsondelta/internal/analyzer"
	"github.com/mcncl/jsondelta/internal/config"
	"github.com/mcncl/jsondelta/internal/diff"
	"github.com/mcncl/jsondelta/internal/errors"
	"github.com/mcncl/jsondelta/internal/models"
	"github.com/mcncl/jsondelta/internal/parser"
	"github.com/mcncl/jsondelta/internal/schema"
)

// Route names
const (
	Diff     = "Diff"
	Patch    = "Patch"
	Rollback = "Rollback"
	Health   = "Health"
	Metrics  = "Metrics"
)

// RequestIDHeader carries the id every response is tagged with
const RequestIDHeader = "X-Request-Id"

func NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.NewRoute().Name(Diff).Methods("POST").Path("/v1/diff")
	r.NewRoute().Name(Patch).Methods("POST").Path("/v1/patch")
	r.NewRoute().Name(Rollback).Methods("POST").Path("/v1/rollback")
	r.NewRoute().Name(Health).Methods("GET").Path("/healthz")
	r.NewRoute().Name(Metrics).Methods("GET").Path("/metrics")
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path), "")
	})
	return r
}

// Server answers diff requests. Handlers share only the diff cache.
type Server struct {
	engine   *diff.Engine
	cache    *lru.Cache[uint64, cacheEntry]
	logger   log.Logger
	maxBody  int64
	validate bool
	handler  http.Handler
}

// New wires a Server from configuration. A cache size of zero disables the
// diff cache.
func New(cfg *config.Config, engine *diff.Engine, logger log.Logger) (*Server, error) {
	s := &Server{
		engine:   engine,
		logger:   logger,
		maxBody:  cfg.Server.MaxBodyBytes,
		validate: cfg.Diff.ValidateDiffs,
	}
	if cfg.Server.CacheSize > 0 {
		cache, err := lru.New[uint64, cacheEntry](cfg.Server.CacheSize)
		if err != nil {
			return nil, errors.NewConfigError("cannot create diff cache", err)
		}
		s.cache = cache
	}
	s.handler = s.newHandler(NewRouter())
	return s, nil
}

func (s *Server) newHandler(r *mux.Router) http.Handler {
	for name, handlerFunc := range map[string]http.HandlerFunc{
		Diff:     s.handleDiff,
		Patch:    s.handlePatch,
		Rollback: s.handleRollback,
		Health:   handleHealth,
	} {
		r.Get(name).Handler(s.instrument(name, handlerFunc))
	}
	r.Get(Metrics).Handler(promhttp.Handler())
	return r
}

// ServeHTTP makes the Server an http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		level.Info(s.logger).Log("msg", "listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		level.Info(s.logger).Log("msg", "shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

type loggerKey struct{}

func requestLogger(r *http.Request, fallback log.Logger) log.Logger {
	if logger, ok := r.Context().Value(loggerKey{}).(log.Logger); ok {
		return logger
	}
	return fallback
}

func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		begin := time.Now()
		id := uuid.Must(uuid.NewV7()).String()
		logger := log.With(s.logger, "request_id", id, "route", route)

		w.Header().Set(RequestIDHeader, id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), loggerKey{}, logger)))

		took := time.Since(begin)
		requestDuration.With(LabelRoute, route, LabelSuccess, fmt.Sprint(rec.status < 400)).Observe(took.Seconds())
		level.Debug(logger).Log("method", r.Method, "path", r.URL.Path, "status", rec.status, "took", took)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	body := gabs.New()
	body.Set("ok", "status")
	writeJSON(w, http.StatusOK, body)
}

// readEnvelope parses a request body, keeping numbers exact, and returns the
// named members
func (s *Server) readEnvelope(w http.ResponseWriter, r *http.Request, fields ...string) ([]models.JSONValue, error) {
	var body io.Reader = r.Body
	if s.maxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, s.maxBody)
	}
	decoder := json.NewDecoder(body)
	decoder.UseNumber()

	envelope, err := gabs.ParseJSONDecoder(decoder)
	if err != nil {
		return nil, errors.NewParsingError("request body is not valid JSON", err)
	}

	// Exists treats an explicit null as missing, so members are looked up
	// directly
	members, err := envelope.ChildrenMap()
	if err != nil {
		return nil, errors.NewInputError("request body must be a JSON object", err)
	}

	values := make([]models.JSONValue, len(fields))
	for i, field := range fields {
		member, ok := members[field]
		if !ok {
			return nil, errors.NewInputError(fmt.Sprintf("request body has no %q member", field), errors.ErrNoInput)
		}
		values[i] = member.Data()
	}
	return values, nil
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r, s.logger)
	values, err := s.readEnvelope(w, r, "old", "new")
	if err != nil {
		s.fail(w, logger, err)
		return
	}

	result, err := s.diff(logger, values[0], values[1])
	if err != nil {
		s.fail(w, logger, err)
		return
	}

	resp := gabs.New()
	resp.Set(result.IsUndefined(), "undefined")
	resp.Set(result.Value(), "diff")
	writeJSON(w, http.StatusOK, resp)
}

// cacheEntry keeps the canonical request next to its diff so hash
// collisions are detected
type cacheEntry struct {
	request canonicalPair
	result  diff.Result
}

// canonicalPair is the sorted-key serialization of a diff request
type canonicalPair struct {
	oldText string
	newText string
}

func canonicalize(oldValue, newValue models.JSONValue) (canonicalPair, error) {
	oldText, err := parser.Serialize(oldValue)
	if err != nil {
		return canonicalPair{}, err
	}
	newText, err := parser.Serialize(newValue)
	if err != nil {
		return canonicalPair{}, err
	}
	return canonicalPair{oldText: oldText, newText: newText}, nil
}

func (p canonicalPair) key() uint64 {
	h := xxhash.New()
	h.Write([]byte(p.oldText))
	h.Write([]byte{0})
	h.Write([]byte(p.newText))
	return h.Sum64()
}

// diff consults the cache before computing. Keys hash both canonical
// serializations so equal documents hit regardless of key order.
func (s *Server) diff(logger log.Logger, oldValue, newValue models.JSONValue) (diff.Result, error) {
	if s.cache == nil {
		return s.compute(oldValue, newValue)
	}

	request, err := canonicalize(oldValue, newValue)
	if err != nil {
		return diff.Undefined(), err
	}
	key := request.key()
	if cached, ok := s.cache.Get(key); ok {
		if cached.request == request {
			cacheLookups.With(LabelResult, "hit").Add(1)
			level.Debug(logger).Log("msg", "diff cache hit")
			return cached.result, nil
		}
		cacheLookups.With(LabelResult, "collision").Add(1)
		level.Warn(logger).Log("msg", "diff cache key collision", "key", key)
	} else {
		cacheLookups.With(LabelResult, "miss").Add(1)
	}

	result, err := s.compute(oldValue, newValue)
	if err != nil {
		return diff.Undefined(), err
	}
	s.cache.Add(key, cacheEntry{request: request, result: result})
	return result, nil
}

func (s *Server) compute(oldValue, newValue models.JSONValue) (diff.Result, error) {
	result, err := s.engine.Diff(oldValue, newValue)
	if err != nil {
		return diff.Undefined(), err
	}
	documentDepth.Observe(float64(analyzer.AnalyzeFrom(result, oldValue).Depth))
	return result, nil
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	s.apply(w, r, "old", s.engine.Patch)
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	s.apply(w, r, "new", s.engine.Rollback)
}

func (s *Server) apply(w http.ResponseWriter, r *http.Request, base string, fn func(models.JSONValue, diff.Result) (models.JSONValue, error)) {
	logger := requestLogger(r, s.logger)
	values, err := s.readEnvelope(w, r, base, "diff")
	if err != nil {
		s.fail(w, logger, err)
		return
	}

	if s.validate {
		if err := schema.ValidateDiff(values[1]); err != nil {
			s.fail(w, logger, err)
			return
		}
	}

	d := diff.Undefined()
	if values[1] != nil {
		d = diff.Wrap(values[1])
	}
	value, err := fn(values[0], d)
	if err != nil {
		s.fail(w, logger, err)
		return
	}

	resp := gabs.New()
	resp.Set(value, "value")
	writeJSON(w, http.StatusOK, resp)
}

func statusFor(err error) int {
	switch errors.TypeOf(err) {
	case errors.ErrorTypeParsing, errors.ErrorTypeInput:
		return http.StatusBadRequest
	case errors.ErrorTypeUnsupportedType, errors.ErrorTypeMalformedDiff, errors.ErrorTypeDepth:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, logger log.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		level.Error(logger).Log("msg", "request failed", "err", err)
	} else {
		level.Debug(logger).Log("msg", "request rejected", "err", err)
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		writeError(w, status, string(appErr.Type), appErr.Message, appErr.Path)
		return
	}
	writeError(w, status, string(errors.ErrorTypeUnknown), err.Error(), "")
}

func writeError(w http.ResponseWriter, status int, kind, message, path string) {
	body := gabs.New()
	body.Set(kind, "error")
	body.Set(message, "message")
	body.Set(path, "path")
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body *gabs.Container) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body.Bytes())
}
