// Package api provides the HTTP server for the file metadata service.
package api

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/VinodKandula/file-metadata-app/internal/apierror"
	"github.com/VinodKandula/file-metadata-app/internal/auth"
	"github.com/VinodKandula/file-metadata-app/internal/logging"
	"github.com/VinodKandula/file-metadata-app/internal/metrics"
	"github.com/VinodKandula/file-metadata-app/internal/quota"
	"github.com/VinodKandula/file-metadata-app/internal/storage"
	"github.com/VinodKandula/file-metadata-app/pkg/models"
	"github.com/VinodKandula/file-metadata-app/pkg/protocol"
	"github.com/VinodKandula/file-metadata-app/pkg/tree"
)

// Prefix is the route prefix of the metadata endpoints.
const Prefix = "/filemetadata"

// DefaultAppName is reported in error envelopes when none is configured.
const DefaultAppName = "file-metadata-server"

// Server is the metadata HTTP server.
type Server struct {
	storage storage.Storage
	auth    *auth.Auth         // nil disables token checks
	limiter *quota.RateLimiter // nil disables rate limiting
	appName string
	gzip    bool
}

// Option configures a Server.
type Option func(*Server)

// WithAuth requires a valid bearer token on the metadata endpoints.
func WithAuth(a *auth.Auth) Option {
	return func(s *Server) { s.auth = a }
}

// WithRateLimit limits each client's calls to the metadata endpoints.
func WithRateLimit(l *quota.RateLimiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithAppName sets the app_name reported in error envelopes.
func WithAppName(name string) Option {
	return func(s *Server) {
		if name != "" {
			s.appName = name
		}
	}
}

// WithGzip enables or disables gzip-encoded responses.
func WithGzip(enabled bool) Option {
	return func(s *Server) { s.gzip = enabled }
}

// NewServer creates a new metadata server.
func NewServer(store storage.Storage, opts ...Option) *Server {
	s := &Server{
		storage: store,
		appName: DefaultAppName,
		gzip:    true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler with logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", s.handleHealth)

	// Metadata API
	var lookups http.Handler = http.HandlerFunc(s.handleFile)
	var dirLookups http.Handler = http.HandlerFunc(s.handleDirectory)
	if s.auth != nil {
		authn := s.auth.Middleware(s.errWriter())
		lookups = authn(lookups)
		dirLookups = authn(dirLookups)
	}
	if s.limiter != nil {
		limit := quota.RateLimitMiddleware(s.limiter, s.errWriter())
		lookups = limit(lookups)
		dirLookups = limit(dirLookups)
	}
	mux.Handle("GET "+Prefix+protocol.FilePath, lookups)
	mux.Handle("GET "+Prefix+protocol.DirectoryPath, dirLookups)
	mux.HandleFunc("OPTIONS "+Prefix+"/", handlePreflight)

	return logging.Middleware(metrics.Middleware(corsMiddleware(mux)))
}

// corsMiddleware allows any origin on the metadata endpoints.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, Prefix+"/") {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		next.ServeHTTP(w, r)
	})
}

func handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, "+logging.RequestIDHeader)
	w.Header().Set("Access-Control-Max-Age", "3600")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(protocol.HealthResponse{Status: "ok"})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	s.lookup(w, r, "file", s.storage.FileMetadata)
}

func (s *Server) handleDirectory(w http.ResponseWriter, r *http.Request) {
	s.lookup(w, r, "directory", s.storage.DirectoryMetadata)
}

type lookupFunc func(ctx context.Context, path string) (*models.FileNode, error)

func (s *Server) lookup(w http.ResponseWriter, r *http.Request, kind string, fn lookupFunc) {
	path := r.URL.Query().Get(protocol.PathParam)
	if path == "" {
		metrics.RecordLookup(kind, protocol.CodeMissingParameter, 0)
		s.sendError(w, r, http.StatusBadRequest, protocol.CodeMissingParameter,
			"required parameter 'path' is not present", "", path)
		return
	}

	node, err := fn(r.Context(), path)
	if err != nil {
		if pe, ok := storage.AsPathError(err); ok {
			metrics.RecordLookup(kind, pe.Code(), 0)
			s.sendError(w, r, http.StatusNotFound, pe.Code(), pe.Err.Error(),
				"no such "+kind+": "+path, path)
			return
		}
		metrics.RecordLookup(kind, protocol.CodeInternalServerError, 0)
		logging.WithContext(r.Context()).Error("metadata lookup failed",
			zap.String("kind", kind), zap.String("path", path), zap.Error(err))
		s.sendError(w, r, http.StatusInternalServerError, protocol.CodeInternalServerError,
			"internal server error", err.Error(), path)
		return
	}

	nodes := tree.CountNodes(node)
	metrics.RecordLookup(kind, "OK", nodes)
	fields := []zap.Field{
		zap.String("kind", kind),
		zap.String("path", path),
		zap.Int("nodes", nodes),
		zap.Int64("bytes", tree.TotalSize(node)),
	}
	if claims := auth.GetClaims(r.Context()); claims != nil {
		fields = append(fields, zap.String("subject", claims.Subject))
	}
	logging.WithContext(r.Context()).Debug("metadata lookup", fields...)
	s.writeJSON(w, r, http.StatusOK, node)
}

// writeJSON writes an indented JSON body, gzip-encoded when the client
// accepts it.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")

	var out io.Writer = w
	if s.gzip && acceptsGzip(r) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		gw := gzip.NewWriter(w)
		defer gw.Close()
		out = &gzipResponseWriter{ResponseWriter: w, gw: gw}
	}
	w.WriteHeader(status)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logging.WithContext(r.Context()).Warn("write response", zap.Error(err))
	}
}

func (s *Server) errWriter() apierror.Writer {
	return apierror.Writer{AppName: s.appName}
}

func (s *Server) sendError(w http.ResponseWriter, r *http.Request, status int, code, message, description, path string) {
	resp := s.errWriter().New(r, status, code, message)
	resp.ErrorDescription = description
	if path != "" {
		resp.Params = map[string]string{protocol.PathParam: path}
	}
	s.writeJSON(w, r, status, resp)
}

type gzipResponseWriter struct {
	http.ResponseWriter
	gw *gzip.Writer
}

func (g *gzipResponseWriter) Write(data []byte) (int, error) {
	return g.gw.Write(data)
}

func (g *gzipResponseWriter) Flush() {
	g.gw.Flush()
	if f, ok := g.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func acceptsGzip(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}
