// Package models contains the metadata types produced by the backend.
package models

// FileNode describes a file or directory on the backend host.
// Directory lookups populate Children recursively; file lookups leave it empty.
type FileNode struct {
	Name          string `json:"name"`
	Path          string `json:"path"`
	Size          int64  `json:"size"`
	Parent        string `json:"parent,omitempty"`
	AbsolutePath  string `json:"absolute_path"`
	IsAbsolute    bool   `json:"is_absolute"`
	CanonicalPath string `json:"canonical_path"`

	// RFC 3339 timestamps. CreationTime falls back to the change time on
	// filesystems that do not record a birth time.
	CreationTime     string `json:"creation_time"`
	LastAccessTime   string `json:"last_access_time"`
	LastModifiedTime string `json:"last_modified_time"`

	IsDirectory    bool `json:"is_directory"`
	IsFile         bool `json:"is_file"`
	IsHidden       bool `json:"is_hidden"`
	IsRegularFile  bool `json:"is_regular_file"`
	IsSymbolicLink bool `json:"is_symbolic_link"`

	CanRead    bool `json:"can_read"`
	CanWrite   bool `json:"can_write"`
	CanExecute bool `json:"can_execute"`

	Children []*FileNode `json:"children"`
}

// AddChild appends a child node.
func (n *FileNode) AddChild(child *FileNode) {
	n.Children = append(n.Children, child)
}
