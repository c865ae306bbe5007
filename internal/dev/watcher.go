package dev

import (
	"context"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ChangeType represents the type of file change.
type ChangeType int

const (
	ChangeAsset ChangeType = iota
	ChangeCSS
	ChangeHTML
)

func (t ChangeType) String() string {
	switch t {
	case ChangeCSS:
		return "css"
	case ChangeHTML:
		return "html"
	default:
		return "asset"
	}
}

// Change represents a detected file change.
type Change struct {
	Path string
	Type ChangeType
}

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// Paths are the directories to watch.
	Paths []string

	// Ignore patterns to skip (globs or path segments).
	Ignore []string

	// SkipDirs are absolute directories never scanned, such as a nested
	// build output.
	SkipDirs []string

	// Interval is the polling interval.
	Interval time.Duration
}

// DefaultIgnore contains default patterns to ignore.
var DefaultIgnore = []string{
	".git",
	"node_modules",
	".DS_Store",
	"*.tmp",
	"*.swp",
	"*~",
}

// Watcher polls directories for changes.
type Watcher struct {
	config   WatcherConfig
	onChange func([]Change)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	files   map[string]time.Time
}

// NewWatcher creates a new file watcher.
func NewWatcher(config WatcherConfig) *Watcher {
	if config.Interval == 0 {
		config.Interval = 100 * time.Millisecond
	}
	if len(config.Ignore) == 0 {
		config.Ignore = DefaultIgnore
	}
	return &Watcher{config: config}
}

// OnChange sets the callback receiving each batch of changes.
func (w *Watcher) OnChange(fn func([]Change)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// Start polls until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	stopCh := w.stopCh
	w.files = w.scan()
	w.mu.Unlock()

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			w.poll()
		}
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		close(w.stopCh)
		w.running = false
	}
}

// IsRunning returns whether the watcher is running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// poll rescans the watched paths and reports the difference.
func (w *Watcher) poll() {
	current := w.scan()

	w.mu.Lock()
	previous := w.files
	w.files = current
	callback := w.onChange
	w.mu.Unlock()

	changes := diff(previous, current)
	if len(changes) > 0 && callback != nil {
		callback(changes)
	}
}

// scan records the modification time of every watched file.
func (w *Watcher) scan() map[string]time.Time {
	files := make(map[string]time.Time)
	for _, root := range w.config.Paths {
		filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if p != root && (w.shouldIgnore(p) || w.skipDir(p)) {
					return filepath.SkipDir
				}
				return nil
			}
			if w.shouldIgnore(p) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			files[p] = info.ModTime()
			return nil
		})
	}
	return files
}

func diff(previous, current map[string]time.Time) []Change {
	var changes []Change
	for p, mod := range current {
		if old, ok := previous[p]; !ok || !mod.Equal(old) {
			changes = append(changes, Change{Path: p, Type: classifyChange(p)})
		}
	}
	for p := range previous {
		if _, ok := current[p]; !ok {
			changes = append(changes, Change{Path: p, Type: classifyChange(p)})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}

func (w *Watcher) skipDir(p string) bool {
	for _, dir := range w.config.SkipDirs {
		if filepath.Clean(dir) == filepath.Clean(p) {
			return true
		}
	}
	return false
}

// shouldIgnore checks if a path should be ignored. Patterns without a slash
// match the base name or any path segment; patterns with one match the
// slash-separated path.
func (w *Watcher) shouldIgnore(fullPath string) bool {
	name := filepath.Base(fullPath)
	normalized := filepath.ToSlash(fullPath)
	segments := strings.Split(normalized, "/")

	for _, pattern := range w.config.Ignore {
		pattern = filepath.ToSlash(strings.TrimSpace(pattern))
		if pattern == "" {
			continue
		}
		if strings.Contains(pattern, "/") {
			if ok, _ := path.Match(pattern, normalized); ok || strings.Contains(normalized+"/", "/"+strings.Trim(pattern, "/")+"/") {
				return true
			}
			continue
		}
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
		for _, seg := range segments {
			if seg == pattern {
				return true
			}
		}
	}
	return false
}

// classifyChange determines the type of change based on file extension.
func classifyChange(p string) ChangeType {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".css":
		return ChangeCSS
	case ".html", ".htm":
		return ChangeHTML
	default:
		return ChangeAsset
	}
}
