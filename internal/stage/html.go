package stage

import (
	"bytes"
	"context"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"

	"github.com/shipsite/shipsite/internal/tree"
)

// HTMLMinifyName is the pipeline name of the HTML minification stage.
const HTMLMinifyName = "htmlmin"

// HTMLOptions configures HTMLMinify.
type HTMLOptions struct {
	// Extensions selects the files to minify. Default: html, htm.
	Extensions []string

	KeepComments     bool
	KeepWhitespace   bool
	KeepEndTags      bool
	KeepDocumentTags bool
	KeepQuotes       bool

	// SourceRoot is used to point error locations at the original files.
	SourceRoot string
}

// HTMLMinify minifies HTML documents, including inline <style> blocks.
type HTMLMinify struct {
	opts HTMLOptions
	m    *minify.M
}

// NewHTMLMinify creates the HTML minification stage.
func NewHTMLMinify(opts HTMLOptions) *HTMLMinify {
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{"html", "htm"}
	}
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.Add("text/html", &html.Minifier{
		KeepComments:     opts.KeepComments,
		KeepWhitespace:   opts.KeepWhitespace,
		KeepEndTags:      opts.KeepEndTags,
		KeepDocumentTags: opts.KeepDocumentTags,
		KeepQuotes:       opts.KeepQuotes,
	})
	return &HTMLMinify{opts: opts, m: m}
}

// Name implements pipeline.Stage.
func (s *HTMLMinify) Name() string { return HTMLMinifyName }

// Apply implements pipeline.Stage.
func (s *HTMLMinify) Apply(ctx context.Context, in *tree.Tree) (*tree.Tree, error) {
	return transform(ctx, in, ExtMatcher(s.opts.Extensions), func(p string, f *tree.File) (*tree.File, error) {
		out, err := s.m.Bytes("text/html", f.Data)
		if err != nil {
			return nil, minifyError("E201", s.opts.SourceRoot, p, err)
		}
		if bytes.Equal(out, f.Data) {
			return f, nil
		}
		return &tree.File{Data: out, Mode: f.Mode}, nil
	})
}
