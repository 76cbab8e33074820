// Package view holds the state behind the metadata lookup page: two path
// inputs and, for each, an independent request state that follows
// Idle -> Loading -> Success|Failed and back to idle.
package view

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/VinodKandula/file-metadata-app/internal/events"
	"github.com/VinodKandula/file-metadata-app/internal/metrics"
	"github.com/VinodKandula/file-metadata-app/pkg/client"
	"github.com/VinodKandula/file-metadata-app/pkg/protocol"
)

// Kind names a lookup flow.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

// errNoResponse stands in when a lookup ends without a usable failure payload.
var errNoResponse = errors.New("request failed")

// Transport performs the lookups. *client.Client satisfies it.
type Transport interface {
	FetchFileMetadata(ctx context.Context, path string) <-chan client.Result
	FetchDirectoryMetadata(ctx context.Context, path string) <-chan client.Result
}

// RequestState is the display state of one lookup flow.
type RequestState struct {
	Loading      bool                    `json:"loading"`
	ErrorMessage string                  `json:"errorMessage"`
	Results      []protocol.FileMetadata `json:"results"` // nil until the first success
	Path         string                  `json:"path"`    // path of the latest dispatch
}

// Snapshot is a copy of the whole view for rendering.
type Snapshot struct {
	FilePath  string       `json:"filePath"`
	DirPath   string       `json:"dirPath"`
	File      RequestState `json:"file"`
	Directory RequestState `json:"directory"`
}

type flow struct {
	state RequestState
	seq   uint64
}

// View is safe for concurrent use.
type View struct {
	transport Transport
	events    *events.Broadcaster
	log       *zap.Logger

	mu        sync.Mutex
	filePath  string
	dirPath   string
	file      flow
	directory flow
}

// Option configures a View.
type Option func(*View)

// WithBroadcaster publishes every state transition to b.
func WithBroadcaster(b *events.Broadcaster) Option {
	return func(v *View) { v.events = b }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(v *View) { v.log = l }
}

// New creates a view backed by transport.
func New(transport Transport, opts ...Option) *View {
	v := &View{
		transport: transport,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// SetFilePath binds the file path input.
func (v *View) SetFilePath(path string) {
	v.mu.Lock()
	v.filePath = path
	v.mu.Unlock()
}

// SetDirPath binds the directory path input.
func (v *View) SetDirPath(path string) {
	v.mu.Lock()
	v.dirPath = path
	v.mu.Unlock()
}

// GetFileMetadata looks up the bound file path. Loading is set before it
// returns; the returned channel is closed once the outcome has been applied.
func (v *View) GetFileMetadata(ctx context.Context) <-chan struct{} {
	return v.dispatch(ctx, KindFile)
}

// GetDirectoryMetadata looks up the bound directory path, like
// GetFileMetadata.
func (v *View) GetDirectoryMetadata(ctx context.Context) <-chan struct{} {
	return v.dispatch(ctx, KindDirectory)
}

// Get dispatches the lookup for kind.
func (v *View) Get(ctx context.Context, kind Kind) <-chan struct{} {
	return v.dispatch(ctx, kind)
}

// State returns a copy of one flow's state.
func (v *View) State(kind Kind) RequestState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return copyState(v.flow(kind).state)
}

// Snapshot returns a copy of the whole view.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Snapshot{
		FilePath:  v.filePath,
		DirPath:   v.dirPath,
		File:      copyState(v.file.state),
		Directory: copyState(v.directory.state),
	}
}

// Subscribe returns a channel of state transitions. It returns nil when the
// view has no broadcaster.
func (v *View) Subscribe() chan events.Event {
	if v.events == nil {
		return nil
	}
	return v.events.Subscribe()
}

// Unsubscribe releases a channel obtained from Subscribe.
func (v *View) Unsubscribe(ch chan events.Event) {
	if v.events == nil || ch == nil {
		return
	}
	v.events.Unsubscribe(ch)
}

func (v *View) flow(kind Kind) *flow {
	if kind == KindDirectory {
		return &v.directory
	}
	return &v.file
}

func (v *View) dispatch(ctx context.Context, kind Kind) <-chan struct{} {
	v.mu.Lock()
	path := v.filePath
	if kind == KindDirectory {
		path = v.dirPath
	}
	f := v.flow(kind)
	f.seq++
	seq := f.seq
	f.state.Loading = true
	f.state.ErrorMessage = ""
	f.state.Path = path
	v.mu.Unlock()

	metrics.LookupDispatched(string(kind))
	v.log.Debug("lookup dispatched", zap.String("kind", string(kind)), zap.String("path", path), zap.Uint64("seq", seq))
	v.publish(events.Event{Type: events.EventLoading, Lookup: string(kind), Path: path})

	var results <-chan client.Result
	if kind == KindDirectory {
		results = v.transport.FetchDirectoryMetadata(ctx, path)
	} else {
		results = v.transport.FetchFileMetadata(ctx, path)
	}

	done := make(chan struct{})
	start := time.Now()
	go func() {
		defer close(done)
		res, ok := <-results
		if !ok {
			res = client.Result{Err: errNoResponse}
		}
		metrics.LookupCompleted(string(kind), res.OK(), time.Since(start))
		v.complete(kind, seq, path, res)
	}()
	return done
}

// complete applies a lookup outcome. Both branches clear Loading here.
// Outcomes of superseded dispatches are dropped.
func (v *View) complete(kind Kind, seq uint64, path string, res client.Result) {
	v.mu.Lock()
	f := v.flow(kind)
	if latest := f.seq; seq != latest {
		v.mu.Unlock()
		v.log.Debug("stale lookup discarded", zap.String("kind", string(kind)), zap.String("path", path),
			zap.Uint64("seq", seq), zap.Uint64("latest", latest))
		return
	}

	event := events.Event{Lookup: string(kind), Path: path}
	if res.OK() {
		f.state.Results = res.Data
		event.Type = events.EventSuccess
		event.Results = len(res.Data)
	} else {
		msg := res.Message()
		if msg == "" {
			msg = errNoResponse.Error()
		}
		f.state.ErrorMessage = msg
		event.Type = events.EventFailure
		event.Error = msg
	}
	f.state.Loading = false
	v.mu.Unlock()

	if res.OK() {
		v.log.Debug("lookup succeeded", zap.String("kind", string(kind)), zap.String("path", path), zap.Int("results", len(res.Data)))
	} else {
		v.log.Debug("lookup failed", zap.String("kind", string(kind)), zap.String("path", path), zap.Error(res.Err))
	}
	v.publish(event)
}

func (v *View) publish(e events.Event) {
	if v.events != nil {
		v.events.Publish(e)
	}
}

func copyState(s RequestState) RequestState {
	if s.Results != nil {
		s.Results = append([]protocol.FileMetadata(nil), s.Results...)
	}
	return s
}
