package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Node is one file or directory in a project listing.
type Node struct {
	Name     string  `json:"name"`
	Path     string  `json:"path"`
	Size     int64   `json:"size"`
	Type     string  `json:"type"` // file extension or "directory"
	Ignored  bool    `json:"ignored,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// Directory names excluded from project listings. Ignored directories
// appear as leaf nodes but are not descended into.
var ignoredDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	".idea":        {},
}

// Tree builds the recursive listing of a project's root directory.
// Symlinks are skipped, which also rules out walk cycles. A missing root
// returns a nil tree and no error.
func Tree(root string) (*Node, error) {
	info, err := os.Lstat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}
	return makeNode(root, info)
}

func makeNode(path string, info os.FileInfo) (*Node, error) {
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, nil
	}

	node := &Node{
		Name: filepath.Base(path),
		Path: path,
		Size: info.Size(),
		Type: strings.TrimPrefix(filepath.Ext(path), "."),
	}

	if !info.IsDir() {
		return node, nil
	}
	node.Type = "directory"

	if _, ok := ignoredDirs[node.Name]; ok {
		node.Ignored = true
		return node, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	for _, entry := range entries {
		childInfo, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}
		child, err := makeNode(filepath.Join(path, entry.Name()), childInfo)
		if err != nil {
			return nil, err
		}
		if child != nil {
			node.Children = append(node.Children, child)
		}
	}
	return node, nil
}
