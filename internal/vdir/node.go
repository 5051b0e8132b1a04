// Package vdir reconstructs a navigable folder hierarchy out of a flat list
// of storage object keys.
//
// The tree is a tagged variant of *Folder and *File nodes. Folders own their
// children; the parent pointer each node keeps is a non-owning back-reference
// used only to derive paths and to step back up. A node's path is never
// stored: Path walks the parent chain, so it stays correct by construction.
package vdir

import (
	"time"

	"github.com/rescale/bucketdesk/internal/pathkey"
)

// Node is either a *Folder or a *File.
type Node interface {
	// Name is the node's segment within its parent ("" for the root).
	Name() string

	// Parent is the containing folder, nil for the root.
	Parent() *Folder

	// IsFolder distinguishes the two variants.
	IsFolder() bool

	node()
}

// File is a leaf: one storage object.
type File struct {
	name   string
	parent *Folder

	Size       int64
	ModifiedAt time.Time

	// Metadata is provider-specific and opaque to the tree
	// (ETag, storage class, content type...).
	Metadata any
}

// Name returns the file name.
func (f *File) Name() string { return f.name }

// Parent returns the containing folder.
func (f *File) Parent() *Folder { return f.parent }

// IsFolder is always false for files.
func (f *File) IsFolder() bool { return false }

func (f *File) node() {}

// Folder holds children in insertion order. Names are unique within a folder
// regardless of variant.
type Folder struct {
	name     string
	parent   *Folder // non-owning
	children map[string]Node
	order    []string
}

func newFolder(name string, parent *Folder) *Folder {
	return &Folder{
		name:     name,
		parent:   parent,
		children: make(map[string]Node),
	}
}

// Name returns the folder name ("" for the root).
func (d *Folder) Name() string { return d.name }

// Parent returns the containing folder, nil for the root.
func (d *Folder) Parent() *Folder { return d.parent }

// IsFolder is always true for folders.
func (d *Folder) IsFolder() bool { return true }

func (d *Folder) node() {}

// IsRoot reports whether the folder is a tree root.
func (d *Folder) IsRoot() bool { return d.parent == nil }

// Child looks up a direct child by name.
func (d *Folder) Child(name string) (Node, bool) {
	n, ok := d.children[name]
	return n, ok
}

// Children returns the direct children in insertion order.
func (d *Folder) Children() []Node {
	out := make([]Node, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.children[name])
	}
	return out
}

// Len returns the number of direct children.
func (d *Folder) Len() int {
	return len(d.order)
}

func (d *Folder) attach(name string, n Node) {
	d.children[name] = n
	d.order = append(d.order, name)
}

// folder returns the child folder called name, creating it when absent.
// It fails with ErrConflict when name is already taken by a file.
func (d *Folder) folder(name string) (*Folder, error) {
	if existing, ok := d.children[name]; ok {
		sub, isFolder := existing.(*Folder)
		if !isFolder {
			return nil, ErrConflict
		}
		return sub, nil
	}
	sub := newFolder(name, d)
	d.attach(name, sub)
	return sub, nil
}

// Path derives the full path of n by walking parent references up to the
// root and joining the raw segment names. The root's path is "". For a file
// the path is exactly the key it was built from.
func Path(n Node) string {
	var segs []string
	for cur := n; cur.Parent() != nil; cur = cur.Parent() {
		segs = append(segs, cur.Name())
	}
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return pathkey.Join(segs...)
}

// Key returns the storage key n stands for: the path of a file, or the folder
// marker (path plus trailing separator) of a folder. The root's key is "".
// Keys of children are Key(parent) + name.
func Key(n Node) string {
	if d, ok := n.(*Folder); ok {
		if d.IsRoot() {
			return ""
		}
		return Path(d) + pathkey.Separator
	}
	return Path(n)
}

// Walk visits n and every descendant depth-first in insertion order.
// Returning false from fn stops descent below that node.
func Walk(n Node, fn func(Node) bool) {
	if !fn(n) {
		return
	}
	if d, ok := n.(*Folder); ok {
		for _, child := range d.Children() {
			Walk(child, fn)
		}
	}
}

// CountNodes counts n and all of its descendants.
func CountNodes(n Node) int {
	count := 0
	Walk(n, func(Node) bool {
		count++
		return true
	})
	return count
}
