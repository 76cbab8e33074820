// Package tree provides utilities for working with metadata trees.
package tree

import "github.com/VinodKandula/file-metadata-app/pkg/models"

// CountNodes counts all nodes in a tree.
func CountNodes(root *models.FileNode) int {
	if root == nil {
		return 0
	}
	count := 1
	for _, child := range root.Children {
		count += CountNodes(child)
	}
	return count
}

// TotalSize sums the size of every regular file in the tree.
func TotalSize(root *models.FileNode) int64 {
	var total int64
	Walk(root, func(n *models.FileNode) {
		if n.IsRegularFile {
			total += n.Size
		}
	})
	return total
}

// Walk visits every node depth-first, parents before children.
func Walk(root *models.FileNode, fn func(*models.FileNode)) {
	if root == nil {
		return
	}
	fn(root)
	for _, child := range root.Children {
		Walk(child, fn)
	}
}
