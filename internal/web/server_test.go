package web

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/VinodKandula/file-metadata-app/internal/events"
	"github.com/VinodKandula/file-metadata-app/internal/logging"
	"github.com/VinodKandula/file-metadata-app/internal/view"
	"github.com/VinodKandula/file-metadata-app/pkg/client"
)

func init() {
	logging.InitNop()
}

// setupShell starts a fake metadata backend and the shell in front of it.
func setupShell(t *testing.T) (*httptest.Server, *view.View) {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/filemetadata/file" && r.URL.Query().Get("path") == "/tmp/data.txt":
			w.Write([]byte(`{"name":"data.txt","size":42}`))
		case r.URL.Path == "/filemetadata/directory" && r.URL.Query().Get("path") == "/tmp":
			w.Write([]byte(`[{"name":"a.txt"},{"name":"b.txt"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`"file not found"`))
		}
	}))
	t.Cleanup(backend.Close)

	c := client.New(client.Config{BaseURL: backend.URL + "/filemetadata"})
	v := view.New(c, view.WithBroadcaster(events.NewBroadcaster()))
	srv, err := NewServer(v)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, v
}

func noRedirect() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func waitIdle(t *testing.T, v *view.View, kind view.Kind) view.RequestState {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st := v.State(kind); !st.Loading {
			return st
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("%s lookup did not complete", kind)
	return view.RequestState{}
}

func TestIndexRenders(t *testing.T) {
	ts, _ := setupShell(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected html, got %q", ct)
	}
	var body strings.Builder
	bufio.NewReader(resp.Body).WriteTo(&body)
	for _, want := range []string{`action="/file"`, `action="/directory"`, "EventSource"} {
		if !strings.Contains(body.String(), want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestUnknownRoute(t *testing.T) {
	ts, _ := setupShell(t)

	resp, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestFileLookupRedirects(t *testing.T) {
	ts, v := setupShell(t)

	resp, err := noRedirect().PostForm(ts.URL+"/file", url.Values{"path": {"/tmp/data.txt"}})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/" {
		t.Errorf("expected redirect to /, got %q", loc)
	}

	st := waitIdle(t, v, view.KindFile)
	if len(st.Results) != 1 || string(st.Results[0]) != `{"name":"data.txt","size":42}` {
		t.Errorf("unexpected results %v", st.Results)
	}

	page, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer page.Body.Close()
	var body strings.Builder
	bufio.NewReader(page.Body).WriteTo(&body)
	if !strings.Contains(body.String(), "data.txt") {
		t.Error("expected results rendered on the page")
	}
}

func TestDirectoryLookupWait(t *testing.T) {
	ts, _ := setupShell(t)

	resp, err := http.PostForm(ts.URL+"/directory", url.Values{"path": {"/tmp"}, "wait": {"1"}})
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var st view.RequestState
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Loading {
		t.Error("expected completed state")
	}
	if len(st.Results) != 2 {
		t.Errorf("expected 2 results, got %d", len(st.Results))
	}
}

func TestFailureShownInState(t *testing.T) {
	ts, _ := setupShell(t)

	resp, err := http.PostForm(ts.URL+"/file", url.Values{"path": {"/nonexistent"}, "wait": {"1"}})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	stateResp, err := http.Get(ts.URL + "/state")
	if err != nil {
		t.Fatal(err)
	}
	defer stateResp.Body.Close()
	var snap view.Snapshot
	if err := json.NewDecoder(stateResp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.FilePath != "/nonexistent" {
		t.Errorf("expected bound path /nonexistent, got %q", snap.FilePath)
	}
	if snap.File.ErrorMessage != "file not found" {
		t.Errorf("expected 'file not found', got %q", snap.File.ErrorMessage)
	}
	if snap.Directory.ErrorMessage != "" {
		t.Errorf("file failure leaked into directory state: %q", snap.Directory.ErrorMessage)
	}
}

func TestEventsStream(t *testing.T) {
	ts, _ := setupShell(t)

	resp, err := http.Get(ts.URL + "/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream, got %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil || !strings.HasPrefix(line, ": connected") {
		t.Fatalf("expected connected comment, got %q (%v)", line, err)
	}

	go noRedirect().PostForm(ts.URL+"/file", url.Values{"path": {"/tmp/data.txt"}})

	seen := map[string]bool{}
	deadline := time.After(3 * time.Second)
	lines := make(chan string)
	go func() {
		for {
			l, err := reader.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			lines <- l
		}
	}()
	for !seen[events.EventSuccess] {
		select {
		case l, ok := <-lines:
			if !ok {
				t.Fatal("stream closed early")
			}
			if strings.HasPrefix(l, "event: ") {
				seen[strings.TrimSpace(strings.TrimPrefix(l, "event: "))] = true
			}
		case <-deadline:
			t.Fatalf("timed out, saw %v", seen)
		}
	}
	if !seen[events.EventLoading] {
		t.Error("expected loading event before success")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts, _ := setupShell(t)

	for _, p := range []string{"/health", "/metrics"} {
		resp, err := http.Get(ts.URL + p)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", p, resp.StatusCode)
		}
	}
}

func TestPrettyJSON(t *testing.T) {
	if got := prettyJSON([]byte(`{"a":1}`)); got != "{\n  \"a\": 1\n}" {
		t.Errorf("unexpected indent: %q", got)
	}
	if got := prettyJSON([]byte(`not json`)); got != "not json" {
		t.Errorf("expected raw fallback, got %q", got)
	}
}

func TestEventsStartWithSnapshot(t *testing.T) {
	ts, _ := setupShell(t)

	// The lookup finishes before anyone subscribes.
	resp, err := http.PostForm(ts.URL+"/file", url.Values{"path": {"/tmp/data.txt"}, "wait": {"1"}})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	stream, err := http.Get(ts.URL + "/events")
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Body.Close()

	reader := bufio.NewReader(stream.Body)
	var eventType string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("stream ended before snapshot: %v", err)
		}
		if strings.HasPrefix(line, "event: ") {
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
			continue
		}
		if strings.HasPrefix(line, "data: ") {
			if eventType != stateEvent {
				t.Fatalf("expected first event %q, got %q", stateEvent, eventType)
			}
			var snap view.Snapshot
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &snap); err != nil {
				t.Fatalf("decode snapshot: %v", err)
			}
			if snap.File.Loading {
				t.Error("expected completed file lookup in snapshot")
			}
			if len(snap.File.Results) != 1 {
				t.Errorf("expected 1 result in snapshot, got %d", len(snap.File.Results))
			}
			return
		}
	}
}

func TestIndexCarriesLoadingFlags(t *testing.T) {
	ts, _ := setupShell(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body strings.Builder
	bufio.NewReader(resp.Body).WriteTo(&body)
	for _, want := range []string{`data-file-loading="false"`, `data-directory-loading="false"`, `addEventListener("state"`} {
		if !strings.Contains(body.String(), want) {
			t.Errorf("page missing %q", want)
		}
	}
}
