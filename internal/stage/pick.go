package stage

import (
	"context"
	"path"
	"strings"

	"github.com/shipsite/shipsite/internal/errors"
	"github.com/shipsite/shipsite/internal/tree"
)

// PickName is the pipeline name of the file selection stage.
const PickName = "pick-files"

// PickOptions configures Pick.
type PickOptions struct {
	// SrcDir is the directory of the input tree to select from ("/" = root).
	SrcDir string

	// DestDir is where the selection is placed in the output tree ("/" = root).
	DestDir string

	// Files keeps only paths (relative to SrcDir) matching one of these globs.
	// Empty keeps everything.
	Files []string

	// Exclude drops paths matching one of these globs.
	Exclude []string
}

// Pick selects a sub-tree and re-roots it.
type Pick struct {
	opts PickOptions
}

// NewPick creates the file selection stage.
func NewPick(opts PickOptions) *Pick {
	return &Pick{opts: opts}
}

// Name implements pipeline.Stage.
func (s *Pick) Name() string { return PickName }

// Apply implements pipeline.Stage.
func (s *Pick) Apply(ctx context.Context, in *tree.Tree) (*tree.Tree, error) {
	src := tree.Clean(s.opts.SrcDir)
	dest := tree.Clean(s.opts.DestDir)

	out := tree.New()
	found := false
	for _, p := range in.Paths() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rel := p
		if src != "" {
			if !strings.HasPrefix(p, src+"/") {
				continue
			}
			rel = strings.TrimPrefix(p, src+"/")
		}
		found = true

		if len(s.opts.Files) > 0 && !matchAny(s.opts.Files, rel) {
			continue
		}
		if matchAny(s.opts.Exclude, rel) {
			continue
		}

		f, _ := in.Get(p)
		out.Put(path.Join(dest, rel), f)
	}

	if src != "" && !found {
		return nil, errors.New("E203").
			WithDetail("Directory " + s.opts.SrcDir + " does not exist in the processed tree").
			WithSuggestion("Check build.srcDir in shipsite.json")
	}
	return out, nil
}

// matchAny reports whether rel matches one of the glob patterns.
func matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if matchGlob(pattern, rel) {
			return true
		}
	}
	return false
}

// matchGlob matches a slash-separated path against a glob. Patterns without a
// slash match the base name; "**" matches any number of directories.
func matchGlob(pattern, rel string) bool {
	pattern = strings.TrimPrefix(strings.TrimSpace(pattern), "/")
	if pattern == "" {
		return false
	}
	if !strings.Contains(pattern, "/") {
		ok, _ := path.Match(pattern, path.Base(rel))
		return ok
	}
	return matchSegments(strings.Split(pattern, "/"), strings.Split(rel, "/"))
}

func matchSegments(pattern, parts []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			rest := pattern[1:]
			for i := 0; i <= len(parts); i++ {
				if matchSegments(rest, parts[i:]) {
					return true
				}
			}
			return false
		}
		if len(parts) == 0 {
			return false
		}
		if ok, _ := path.Match(pattern[0], parts[0]); !ok {
			return false
		}
		pattern, parts = pattern[1:], parts[1:]
	}
	return len(parts) == 0
}
