// Package apierror builds the ErrorResponse envelope returned by every
// endpoint of the metadata service.
package apierror

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/VinodKandula/file-metadata-app/pkg/protocol"
)

// Writer stamps envelopes with the service's app name.
type Writer struct {
	AppName string
}

// New returns an envelope for r with a fresh exception ID.
func (e Writer) New(r *http.Request, status int, code, message string) protocol.ErrorResponse {
	return protocol.ErrorResponse{
		AppName:      e.AppName,
		StatusCode:   status,
		Timestamp:    time.Now().UTC(),
		Error:        message,
		Path:         r.URL.RequestURI(),
		AppErrorCode: code,
		ExceptionID:  uuid.NewString(),
	}
}

// Send writes a new envelope as the response.
func (e Writer) Send(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	Write(w, status, e.New(r, status, code, message))
}

// Write writes resp as indented JSON with the given status.
func Write(w http.ResponseWriter, status int, resp protocol.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(resp)
}
