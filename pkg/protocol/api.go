// Package protocol defines the API request/response types shared by the
// metadata service and its clients.
package protocol

import (
	"encoding/json"
	"time"
)

// Endpoint paths, relative to the service base URL (".../filemetadata").
const (
	FilePath      = "/file"
	DirectoryPath = "/directory"
	PathParam     = "path"
)

// FileMetadata is a metadata document exactly as the service returned it.
// Clients store and display it without inspecting its shape.
type FileMetadata = json.RawMessage

// Application error codes carried in ErrorResponse.AppErrorCode.
const (
	CodeMissingParameter     = "MISSING_PARAMETER"
	CodeInvalidFilePath      = "INVALID_FILE_PATH"
	CodeInvalidDirectoryPath = "INVALID_DIRECTORY_PATH"
	CodeResourceNotFound     = "RESOURCE_NOT_FOUND"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeRateLimited          = "RATE_LIMITED"
	CodeInternalServerError  = "INTERNAL_SERVER_ERROR"
)

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	AppName          string            `json:"app_name,omitempty"`
	StatusCode       int               `json:"status_code"`
	Timestamp        time.Time         `json:"timestamp"`
	Error            string            `json:"error"`
	ErrorDescription string            `json:"error_description,omitempty"`
	Path             string            `json:"path,omitempty"` // request URI
	AppErrorCode     string            `json:"app_error_code,omitempty"`
	ExceptionID      string            `json:"exception_id,omitempty"`
	Params           map[string]string `json:"params,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
