package stage

import (
	"bytes"
	"context"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"

	"github.com/shipsite/shipsite/internal/tree"
)

// CSSMinifyName is the pipeline name of the CSS minification stage.
const CSSMinifyName = "clean-css"

// CSSOptions configures CSSMinify.
type CSSOptions struct {
	// Extensions selects the files to minify. Default: css.
	Extensions []string

	// Precision is the number of significant digits kept in numbers (0 = lossless).
	Precision int

	// SourceRoot is used to point error locations at the original files.
	SourceRoot string
}

// CSSMinify minifies stylesheets.
type CSSMinify struct {
	opts CSSOptions
	m    *minify.M
}

// NewCSSMinify creates the CSS minification stage.
func NewCSSMinify(opts CSSOptions) *CSSMinify {
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{"css"}
	}
	m := minify.New()
	m.Add("text/css", &css.Minifier{Precision: opts.Precision})
	return &CSSMinify{opts: opts, m: m}
}

// Name implements pipeline.Stage.
func (s *CSSMinify) Name() string { return CSSMinifyName }

// Apply implements pipeline.Stage.
func (s *CSSMinify) Apply(ctx context.Context, in *tree.Tree) (*tree.Tree, error) {
	return transform(ctx, in, ExtMatcher(s.opts.Extensions), func(p string, f *tree.File) (*tree.File, error) {
		out, err := s.m.Bytes("text/css", f.Data)
		if err != nil {
			return nil, minifyError("E200", s.opts.SourceRoot, p, err)
		}
		if bytes.Equal(out, f.Data) {
			return f, nil
		}
		return &tree.File{Data: out, Mode: f.Mode}, nil
	})
}
