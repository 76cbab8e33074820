package api

import (
	"compress/gzip"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/VinodKandula/file-metadata-app/internal/auth"
	"github.com/VinodKandula/file-metadata-app/internal/logging"
	"github.com/VinodKandula/file-metadata-app/internal/quota"
	"github.com/VinodKandula/file-metadata-app/internal/storage"
	"github.com/VinodKandula/file-metadata-app/pkg/models"
	"github.com/VinodKandula/file-metadata-app/pkg/protocol"
	"github.com/VinodKandula/file-metadata-app/pkg/tree"
)

func init() {
	logging.InitNop()
}

func setupServer(t *testing.T, opts ...Option) (*httptest.Server, string) {
	t.Helper()
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hello world"), 0644)
	os.MkdirAll(filepath.Join(dir, "sub"), 0755)
	os.WriteFile(filepath.Join(dir, "sub", "nested.txt"), []byte("nested"), 0644)

	store, err := storage.NewLocalStorage("")
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	ts := httptest.NewServer(NewServer(store, opts...).Handler())
	t.Cleanup(ts.Close)
	return ts, dir
}

func lookupURL(ts *httptest.Server, endpoint, path string) string {
	return ts.URL + Prefix + endpoint + "?" + url.Values{protocol.PathParam: {path}}.Encode()
}

func decodeError(t *testing.T, resp *http.Response) protocol.ErrorResponse {
	t.Helper()
	var er protocol.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return er
}

func TestHealth(t *testing.T) {
	ts, _ := setupServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var h protocol.HealthResponse
	json.NewDecoder(resp.Body).Decode(&h)
	if h.Status != "ok" {
		t.Errorf("expected ok, got %q", h.Status)
	}
	if resp.Header.Get(logging.RequestIDHeader) == "" {
		t.Error("expected request ID header")
	}
}

func TestFileLookup(t *testing.T) {
	ts, dir := setupServer(t)
	path := filepath.Join(dir, "readme.txt")

	resp, err := http.Get(lookupURL(ts, protocol.FilePath, path))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS header on metadata route")
	}

	var node models.FileNode
	if err := json.NewDecoder(resp.Body).Decode(&node); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if node.Name != "readme.txt" {
		t.Errorf("expected name readme.txt, got %s", node.Name)
	}
	if node.Size != 11 {
		t.Errorf("expected size 11, got %d", node.Size)
	}
	if !node.IsFile || node.IsDirectory {
		t.Error("expected a regular file")
	}
}

func TestDirectoryLookup(t *testing.T) {
	ts, dir := setupServer(t)

	resp, err := http.Get(lookupURL(ts, protocol.DirectoryPath, dir))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var root models.FileNode
	if err := json.NewDecoder(resp.Body).Decode(&root); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !root.IsDirectory {
		t.Error("expected a directory")
	}
	// root, readme.txt, sub, sub/nested.txt
	if n := tree.CountNodes(&root); n != 4 {
		t.Errorf("expected 4 nodes, got %d", n)
	}
	nested := false
	tree.Walk(&root, func(n *models.FileNode) {
		if n.Path == filepath.Join(dir, "sub", "nested.txt") {
			nested = true
		}
	})
	if !nested {
		t.Error("expected nested file in tree")
	}
}

func TestLookupErrors(t *testing.T) {
	ts, dir := setupServer(t)

	cases := []struct {
		name     string
		endpoint string
		path     string
		status   int
		code     string
	}{
		{"missing path", protocol.FilePath, "", http.StatusBadRequest, protocol.CodeMissingParameter},
		{"file is a directory", protocol.FilePath, dir, http.StatusNotFound, protocol.CodeInvalidFilePath},
		{"file does not exist", protocol.FilePath, filepath.Join(dir, "nope"), http.StatusNotFound, protocol.CodeInvalidFilePath},
		{"directory is a file", protocol.DirectoryPath, filepath.Join(dir, "readme.txt"), http.StatusNotFound, protocol.CodeInvalidDirectoryPath},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Get(lookupURL(ts, tc.endpoint, tc.path))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
			er := decodeError(t, resp)
			if er.AppErrorCode != tc.code {
				t.Errorf("expected code %s, got %s", tc.code, er.AppErrorCode)
			}
			if er.StatusCode != tc.status {
				t.Errorf("expected status_code %d, got %d", tc.status, er.StatusCode)
			}
			if er.ExceptionID == "" {
				t.Error("expected exception_id")
			}
			if er.AppName != DefaultAppName {
				t.Errorf("expected app_name %s, got %s", DefaultAppName, er.AppName)
			}
			if tc.path != "" && er.Params[protocol.PathParam] != tc.path {
				t.Errorf("expected path param %q, got %q", tc.path, er.Params[protocol.PathParam])
			}
		})
	}
}

func TestMissingPathParameter(t *testing.T) {
	ts, _ := setupServer(t)

	resp, err := http.Get(ts.URL + Prefix + protocol.DirectoryPath)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if er := decodeError(t, resp); er.AppErrorCode != protocol.CodeMissingParameter {
		t.Errorf("expected %s, got %s", protocol.CodeMissingParameter, er.AppErrorCode)
	}
}

func TestPreflight(t *testing.T) {
	ts, _ := setupServer(t)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+Prefix+protocol.FilePath, nil)
	req.Header.Set("Origin", "http://localhost:4200")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected wildcard origin")
	}
	if resp.Header.Get("Access-Control-Allow-Methods") == "" {
		t.Error("expected allowed methods")
	}
}

func TestGzipResponse(t *testing.T) {
	ts, dir := setupServer(t)

	req, _ := http.NewRequest(http.MethodGet, lookupURL(ts, protocol.DirectoryPath, dir), nil)
	req.Header.Set("Accept-Encoding", "gzip")
	// Setting Accept-Encoding explicitly disables transparent decompression.
	resp, err := http.DefaultTransport.RoundTrip(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip encoding, got %q", resp.Header.Get("Content-Encoding"))
	}
	gr, err := gzip.NewReader(resp.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	var root models.FileNode
	if err := json.NewDecoder(gr).Decode(&root); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !root.IsDirectory {
		t.Error("expected directory")
	}
}

func TestGzipDisabled(t *testing.T) {
	ts, dir := setupServer(t, WithGzip(false))

	req, _ := http.NewRequest(http.MethodGet, lookupURL(ts, protocol.DirectoryPath, dir), nil)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := http.DefaultTransport.RoundTrip(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get("Content-Encoding") != "" {
		t.Errorf("expected identity encoding, got %q", resp.Header.Get("Content-Encoding"))
	}
}

func TestAuthRequired(t *testing.T) {
	a := auth.New("test-secret")
	ts, dir := setupServer(t, WithAuth(a), WithAppName("metadata-test"))
	target := lookupURL(ts, protocol.FilePath, filepath.Join(dir, "readme.txt"))

	resp, err := http.Get(target)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		resp.Body.Close()
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	er := decodeError(t, resp)
	resp.Body.Close()
	if er.AppName != "metadata-test" {
		t.Errorf("expected app name on 401, got %q", er.AppName)
	}
	if er.Path != resp.Request.URL.RequestURI() {
		t.Errorf("expected path %q, got %q", resp.Request.URL.RequestURI(), er.Path)
	}

	token, _, err := a.IssueToken("tester", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	req, _ := http.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}

	// Health stays public.
	resp, err = http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected public health, got %d", resp.StatusCode)
	}
}

func TestAppNameInErrors(t *testing.T) {
	ts, _ := setupServer(t, WithAppName("metadata-test"))

	resp, err := http.Get(lookupURL(ts, protocol.FilePath, ""))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if er := decodeError(t, resp); er.AppName != "metadata-test" {
		t.Errorf("expected app_name metadata-test, got %s", er.AppName)
	}
}

func TestRateLimited(t *testing.T) {
	ts, dir := setupServer(t, WithRateLimit(quota.NewRateLimiter(1)), WithAppName("metadata-test"))
	target := lookupURL(ts, protocol.FilePath, filepath.Join(dir, "readme.txt"))

	resp, err := http.Get(target)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected first lookup allowed, got %d", resp.StatusCode)
	}

	resp, err = http.Get(target)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	er := decodeError(t, resp)
	if er.AppErrorCode != protocol.CodeRateLimited {
		t.Errorf("expected %s, got %s", protocol.CodeRateLimited, er.AppErrorCode)
	}
	if er.AppName != "metadata-test" || er.Path != resp.Request.URL.RequestURI() {
		t.Errorf("expected app name and request URI on 429, got %q %q", er.AppName, er.Path)
	}

	// Health is not limited.
	health, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Errorf("expected health 200, got %d", health.StatusCode)
	}
}
