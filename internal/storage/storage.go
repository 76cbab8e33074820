// Package storage builds file metadata from the local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/VinodKandula/file-metadata-app/pkg/models"
	"github.com/VinodKandula/file-metadata-app/pkg/protocol"
)

// Storage is the interface for metadata backends.
type Storage interface {
	// FileMetadata returns metadata for a single file. The path must name a
	// file, otherwise the error wraps ErrInvalidFilePath.
	FileMetadata(ctx context.Context, path string) (*models.FileNode, error)

	// DirectoryMetadata returns metadata for a directory with its children
	// populated recursively. The path must name a directory, otherwise the
	// error wraps ErrInvalidDirectoryPath.
	DirectoryMetadata(ctx context.Context, path string) (*models.FileNode, error)
}

var (
	ErrInvalidFilePath      = errors.New("invalid file path")
	ErrInvalidDirectoryPath = errors.New("invalid directory path")
)

// PathError reports a lookup on a path of the wrong kind, or one that does
// not exist or lies outside the served root.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err, e.Path)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// Code returns the application error code for the failure.
func (e *PathError) Code() string {
	if errors.Is(e.Err, ErrInvalidDirectoryPath) {
		return protocol.CodeInvalidDirectoryPath
	}
	return protocol.CodeInvalidFilePath
}

// AsPathError checks if an error is a PathError and returns it.
func AsPathError(err error) (*PathError, bool) {
	var pe *PathError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
