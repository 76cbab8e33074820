package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/VinodKandula/file-metadata-app/pkg/models"
)

// LocalStorage implements Storage using the local filesystem.
type LocalStorage struct {
	// rootDir confines lookups when non-empty; "" serves any path.
	rootDir string
}

// NewLocalStorage creates a new local storage backend. An empty rootDir
// leaves lookups unconfined.
func NewLocalStorage(rootDir string) (*LocalStorage, error) {
	if rootDir == "" {
		return &LocalStorage{}, nil
	}

	absPath, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	canonical, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return nil, fmt.Errorf("root directory error: %w", err)
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("root directory error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", canonical)
	}
	return &LocalStorage{rootDir: canonical}, nil
}

// RootDir returns the confining root, or "" when unconfined.
func (s *LocalStorage) RootDir() string {
	return s.rootDir
}

// FileMetadata returns metadata for a regular file.
func (s *LocalStorage) FileMetadata(ctx context.Context, path string) (*models.FileNode, error) {
	info, err := s.stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, &PathError{Path: path, Err: ErrInvalidFilePath}
	}
	return s.infoToNode(path, info)
}

// DirectoryMetadata returns the directory and everything below it.
func (s *LocalStorage) DirectoryMetadata(ctx context.Context, path string) (*models.FileNode, error) {
	info, err := s.stat(path)
	if err != nil || !info.IsDir() {
		return nil, &PathError{Path: path, Err: ErrInvalidDirectoryPath}
	}

	node, err := s.infoToNode(path, info)
	if err != nil {
		return nil, err
	}
	if err := s.traverse(ctx, path, node); err != nil {
		return nil, err
	}
	return node, nil
}

// stat resolves path (following symlinks) and enforces the root.
func (s *LocalStorage) stat(path string) (os.FileInfo, error) {
	if path == "" {
		return nil, os.ErrNotExist
	}
	if !s.within(path) {
		return nil, os.ErrNotExist
	}
	return os.Stat(path)
}

func (s *LocalStorage) within(path string) bool {
	if s.rootDir == "" {
		return true
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(s.rootDir, canonical)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// traverse fills node.Children recursively. Symlinked directories are
// listed but not descended into, so link cycles terminate.
func (s *LocalStorage) traverse(ctx context.Context, dirPath string, node *models.FileNode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil // Unreadable directory: report it without children
	}

	for _, entry := range entries {
		childPath := filepath.Join(dirPath, entry.Name())
		if !s.within(childPath) {
			continue // Link resolving outside the root
		}
		info, err := os.Stat(childPath)
		if err != nil {
			continue // Skip dangling links and entries that vanished
		}

		child, err := s.infoToNode(childPath, info)
		if err != nil {
			continue
		}
		node.AddChild(child)

		if info.IsDir() && !child.IsSymbolicLink {
			if err := s.traverse(ctx, childPath, child); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *LocalStorage) infoToNode(path string, info os.FileInfo) (*models.FileNode, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	canonical, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		canonical = absPath
	}

	isLink := false
	if linfo, err := os.Lstat(path); err == nil {
		isLink = linfo.Mode()&os.ModeSymlink != 0
	}

	name := filepath.Base(filepath.Clean(path))
	if name == string(filepath.Separator) || name == "." {
		name = ""
	}

	created, accessed := fileTimes(path, info)

	return &models.FileNode{
		Name:             name,
		Path:             path,
		Size:             info.Size(),
		Parent:           parentOf(path),
		AbsolutePath:     absPath,
		IsAbsolute:       filepath.IsAbs(path),
		CanonicalPath:    canonical,
		CreationTime:     formatTime(created),
		LastAccessTime:   formatTime(accessed),
		LastModifiedTime: formatTime(info.ModTime()),
		IsDirectory:      info.IsDir(),
		IsFile:           !info.IsDir(),
		IsHidden:         strings.HasPrefix(name, "."),
		IsRegularFile:    info.Mode().IsRegular(),
		IsSymbolicLink:   isLink,
		CanRead:          readable(path),
		CanWrite:         writable(path),
		CanExecute:       executable(path),
		Children:         []*models.FileNode{},
	}, nil
}

// parentOf returns the parent component of path as written, or "" when the
// path has none.
func parentOf(path string) string {
	clean := filepath.Clean(path)
	if !strings.ContainsRune(clean, filepath.Separator) || clean == string(filepath.Separator) {
		return ""
	}
	return filepath.Dir(clean)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
