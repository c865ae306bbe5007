// Package tree holds a directory tree in memory so pipeline stages can map
// one tree to another without touching the filesystem between stages.
//
// Paths are slash separated and relative to the tree root ("css/site.css").
// Files are immutable once put into a tree: stages that change content put a
// new *File instead of editing the existing one, which keeps every input tree
// intact.
package tree

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// File is a single file in a Tree.
type File struct {
	Data []byte
	Mode fs.FileMode
}

// Size returns the length of the file content.
func (f *File) Size() int64 {
	return int64(len(f.Data))
}

// Tree is an in-memory directory tree.
type Tree struct {
	files map[string]*File
}

// New creates an empty tree.
func New() *Tree {
	return &Tree{files: make(map[string]*File)}
}

// SkipFunc reports whether a path relative to the load root should be left out.
// For directories, returning true skips the whole subtree.
type SkipFunc func(rel string, d fs.DirEntry) bool

// Load reads every regular file under root into a new tree.
func Load(root string, skip SkipFunc) (*Tree, error) {
	t := New()
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if skip != nil && skip(rel, d) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		t.files[rel] = &File{Data: data, Mode: info.Mode().Perm()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Clean normalizes p into a tree path. It returns "" for the root.
func Clean(p string) string {
	p = path.Clean("/" + filepath.ToSlash(p))
	return strings.TrimPrefix(p, "/")
}

// Put stores f at p, replacing any existing file.
func (t *Tree) Put(p string, f *File) {
	t.files[Clean(p)] = f
}

// Get returns the file at p.
func (t *Tree) Get(p string) (*File, bool) {
	f, ok := t.files[Clean(p)]
	return f, ok
}

// Delete removes the file at p.
func (t *Tree) Delete(p string) {
	delete(t.files, Clean(p))
}

// Len returns the number of files.
func (t *Tree) Len() int {
	return len(t.files)
}

// Paths returns every file path in sorted order.
func (t *Tree) Paths() []string {
	paths := make([]string, 0, len(t.files))
	for p := range t.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Size returns the total content size of all files.
func (t *Tree) Size() int64 {
	var n int64
	for _, f := range t.files {
		n += f.Size()
	}
	return n
}

// Clone returns a new tree holding the same files.
func (t *Tree) Clone() *Tree {
	c := &Tree{files: make(map[string]*File, len(t.files))}
	for p, f := range t.files {
		c.files[p] = f
	}
	return c
}

// Changed counts files of t that are new or different compared to base.
func (t *Tree) Changed(base *Tree) int {
	n := 0
	for p, f := range t.files {
		if old, ok := base.files[p]; !ok || old != f {
			n++
		}
	}
	return n
}

// Write writes every file under root, creating directories as needed.
func (t *Tree) Write(root string) error {
	for _, p := range t.Paths() {
		f := t.files[p]
		dst := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		mode := f.Mode
		if mode == 0 {
			mode = 0644
		}
		if err := os.WriteFile(dst, f.Data, mode); err != nil {
			return err
		}
	}
	return nil
}
