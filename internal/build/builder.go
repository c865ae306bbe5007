package build

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shipsite/shipsite/internal/config"
	"github.com/shipsite/shipsite/internal/errors"
	"github.com/shipsite/shipsite/internal/metrics"
	"github.com/shipsite/shipsite/internal/pipeline"
	"github.com/shipsite/shipsite/internal/stage"
	"github.com/shipsite/shipsite/internal/tree"
)

// Result contains the build output.
type Result struct {
	// Duration is how long the build took.
	Duration time.Duration

	// Output is the path to the output directory.
	Output string

	// Files is the number of files written.
	Files int

	// InputBytes is the total size of the source tree.
	InputBytes int64

	// OutputBytes is the total size of the output tree.
	OutputBytes int64

	// Reports holds one entry per pipeline stage, in order.
	Reports []pipeline.Report
}

// Options configures the builder.
type Options struct {
	// OnProgress is called with progress updates.
	OnProgress func(step string)

	// Logger receives build logs. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Metrics records stage and build metrics. May be nil.
	Metrics *metrics.Metrics
}

// Builder handles asset builds.
type Builder struct {
	config  *config.Config
	options Options
}

// New creates a new builder.
func New(cfg *config.Config, options Options) *Builder {
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Builder{
		config:  cfg,
		options: options,
	}
}

// Pipeline assembles the stages configured for this build.
func (b *Builder) Pipeline() *pipeline.Pipeline {
	bc := b.config.Build
	src := b.config.SourcePath()

	p := pipeline.New(pipeline.Options{
		Logger:  b.options.Logger,
		Metrics: b.options.Metrics,
		OnStage: func(name string) { b.progress("Running " + name + "...") },
	})
	if bc.CSS.Enabled {
		p.Append(stage.NewCSSMinify(stage.CSSOptions{
			Precision:  bc.CSS.Precision,
			SourceRoot: src,
		}))
	}
	if bc.HTML.Enabled {
		p.Append(stage.NewHTMLMinify(stage.HTMLOptions{
			KeepComments:     bc.HTML.KeepComments,
			KeepWhitespace:   bc.HTML.KeepWhitespace,
			KeepEndTags:      bc.HTML.KeepEndTags,
			KeepDocumentTags: bc.HTML.KeepDocumentTags,
			KeepQuotes:       bc.HTML.KeepQuotes,
			SourceRoot:       src,
		}))
	}
	if bc.Gzip.Enabled {
		p.Append(stage.NewGzip(stage.GzipOptions{
			Extensions:       bc.Gzip.Extensions,
			KeepUncompressed: bc.Gzip.KeepUncompressed,
			AppendSuffix:     bc.Gzip.AppendSuffix,
			Level:            bc.Gzip.Level,
		}))
	}
	p.Append(stage.NewPick(stage.PickOptions{
		SrcDir:  bc.SrcDir,
		DestDir: bc.DestDir,
		Files:   bc.Files,
		Exclude: bc.Exclude,
	}))
	return p
}

// Stages returns the names of the configured stages, in order.
func (b *Builder) Stages() []string {
	return b.Pipeline().Stages()
}

// Build performs an asset build.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	result, err := b.build(ctx)
	b.options.Metrics.ObserveBuild(err)
	return result, err
}

func (b *Builder) build(ctx context.Context) (*Result, error) {
	start := time.Now()
	sourceDir := b.config.SourcePath()
	outputDir := b.config.OutputPath()

	info, err := os.Stat(sourceDir)
	if err != nil || !info.IsDir() {
		e := errors.New("E143").WithDetail("Looked for " + sourceDir)
		if err != nil {
			return nil, e.Wrap(err)
		}
		return nil, e
	}
	if within(outputDir, sourceDir) {
		return nil, errors.New("E123").
			WithDetail("build.output " + outputDir + " would replace the source directory")
	}

	b.progress("Reading " + b.config.Build.Source + "...")
	in, err := tree.Load(sourceDir, skipOutput(sourceDir, outputDir))
	if err != nil {
		return nil, errors.New("E142").WithDetail("Failed to read " + sourceDir).Wrap(err)
	}

	out, reports, err := b.Pipeline().Run(ctx, in)
	if err != nil {
		return nil, err
	}

	b.progress("Writing " + b.config.Build.Output + "...")
	if err := os.RemoveAll(outputDir); err != nil {
		return nil, errors.New("E142").Wrap(err)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, errors.New("E142").Wrap(err)
	}
	if err := out.Write(outputDir); err != nil {
		return nil, errors.New("E142").WithDetail("Failed to write " + outputDir).Wrap(err)
	}

	result := &Result{
		Duration:    time.Since(start),
		Output:      outputDir,
		Files:       out.Len(),
		InputBytes:  in.Size(),
		OutputBytes: out.Size(),
		Reports:     reports,
	}
	b.options.Logger.Info("build complete",
		"files", result.Files,
		"bytes_in", result.InputBytes,
		"bytes_out", result.OutputBytes,
		"duration", result.Duration)
	return result, nil
}

// skipOutput leaves the output directory out of the source tree when it is
// nested inside the source directory.
func skipOutput(sourceDir, outputDir string) tree.SkipFunc {
	rel, err := filepath.Rel(sourceDir, outputDir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	rel = filepath.ToSlash(rel)
	return func(p string, d os.DirEntry) bool {
		return p == rel
	}
}

// within reports whether p is dir or lies below it.
func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// progress reports build progress.
func (b *Builder) progress(step string) {
	if b.options.OnProgress != nil {
		b.options.OnProgress(step)
	}
}

// Clean removes the build output directory.
func (b *Builder) Clean() error {
	return os.RemoveAll(b.config.OutputPath())
}
