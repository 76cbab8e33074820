// Package web serves the metadata lookup page and its action endpoints.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/VinodKandula/file-metadata-app/internal/events"
	"github.com/VinodKandula/file-metadata-app/internal/logging"
	"github.com/VinodKandula/file-metadata-app/internal/metrics"
	"github.com/VinodKandula/file-metadata-app/internal/view"
	"github.com/VinodKandula/file-metadata-app/pkg/protocol"
)

// Server is the application shell around one View.
type Server struct {
	view      *view.View
	templates *template.Template
}

// NewServer parses the embedded templates and creates a server for v.
func NewServer(v *view.View) (*Server, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"pretty": prettyJSON,
	}).ParseFS(Assets, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Server{view: v, templates: tmpl}, nil
}

// Handler returns the HTTP handler with logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /file", s.handleLookup(view.KindFile))
	mux.HandleFunc("POST /directory", s.handleLookup(view.KindDirectory))
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /health", handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	return logging.Middleware(metrics.Middleware(mux))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", s.view.Snapshot()); err != nil {
		logging.WithContext(r.Context()).Error("render index", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	buf.WriteTo(w)
}

// handleLookup binds the submitted path and dispatches the lookup. It
// answers 303 to the page right away unless the form asks to wait, in which
// case it answers with the resulting state once the lookup completes.
func (s *Server) handleLookup(kind view.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		path := r.PostFormValue(protocol.PathParam)
		if kind == view.KindDirectory {
			s.view.SetDirPath(path)
		} else {
			s.view.SetFilePath(path)
		}

		// The lookup outlives this request.
		done := s.view.Get(context.WithoutCancel(r.Context()), kind)

		if r.PostFormValue("wait") == "" {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		select {
		case <-done:
		case <-r.Context().Done():
			return
		}
		writeJSON(w, http.StatusOK, s.view.State(kind))
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.view.Snapshot())
}

// stateEvent carries the full snapshot sent when a client subscribes.
const stateEvent = "state"

// handleEvents streams view transitions as Server-Sent Events. The first
// event is the current snapshot, so a client that subscribes after a lookup
// completed still learns about it.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	eventCh := s.view.Subscribe()
	if eventCh == nil {
		http.Error(w, "events not enabled", http.StatusServiceUnavailable)
		return
	}
	defer s.view.Unsubscribe(eventCh)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	log := logging.WithContext(r.Context())
	log.Debug("SSE client connected", zap.String("remote", r.RemoteAddr))

	fmt.Fprintf(w, ": connected\n\n")
	if data, err := json.Marshal(s.view.Snapshot()); err == nil {
		fmt.Fprintf(w, "event: %s\n", stateEvent)
		fmt.Fprintf(w, "data: %s\n\n", data)
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			log.Debug("SSE client disconnected", zap.String("remote", r.RemoteAddr))
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			data, err := events.MarshalEvent(event)
			if err != nil {
				log.Warn("marshal event", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\n", event.Type)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.HealthResponse{Status: "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// prettyJSON indents a metadata document for display, falling back to the
// raw text when it is not valid JSON.
func prettyJSON(doc protocol.FileMetadata) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, doc, "", "  "); err != nil {
		return string(doc)
	}
	return buf.String()
}
