// Package stage provides the pipeline stages of the asset build: CSS and HTML
// minification, gzip compression and file selection.
package stage

import (
	"context"
	stderrors "errors"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tdewolff/parse/v2"
	"golang.org/x/sync/errgroup"

	"github.com/shipsite/shipsite/internal/errors"
	"github.com/shipsite/shipsite/internal/tree"
)

// fileFunc rewrites one file. Returning the input file means "unchanged".
type fileFunc func(p string, f *tree.File) (*tree.File, error)

// transform applies fn to every file of in accepted by match and returns a
// copy of in holding the results. Files are processed concurrently; the
// output does not depend on scheduling.
func transform(ctx context.Context, in *tree.Tree, match func(string) bool, fn fileFunc) (*tree.Tree, error) {
	var paths []string
	for _, p := range in.Paths() {
		if match(p) {
			paths = append(paths, p)
		}
	}

	results := make([]*tree.File, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, _ := in.Get(p)
			out, err := fn(p, f)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := in.Clone()
	for i, p := range paths {
		out.Put(p, results[i])
	}
	return out, nil
}

// ExtMatcher matches paths by extension, case-insensitively. Extensions may
// be given with or without the leading dot.
func ExtMatcher(exts []string) func(string) bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(e, "."))
		if e != "" {
			set[e] = true
		}
	}
	return func(p string) bool {
		ext := strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
		return set[ext]
	}
}

// minifyError turns a minifier failure into a coded error, with the source
// position when the parser reported one.
func minifyError(code, sourceRoot, p string, err error) error {
	se := errors.New(code).WithDetail("Failed to minify " + p).Wrap(err)

	var perr *parse.Error
	if stderrors.As(err, &perr) && perr.Line > 0 {
		file := p
		if sourceRoot != "" {
			file = filepath.Join(sourceRoot, filepath.FromSlash(p))
		}
		se.WithLocation(file, perr.Line, perr.Column)
	}
	return se
}
