package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	shiperrors "github.com/shipsite/shipsite/internal/errors"
	"github.com/shipsite/shipsite/internal/metrics"
	"github.com/shipsite/shipsite/internal/tree"
)

const tracerName = "github.com/shipsite/shipsite/internal/pipeline"

// Stage is a transform from one directory tree to another.
// Apply must not modify in.
type Stage interface {
	Name() string
	Apply(ctx context.Context, in *tree.Tree) (*tree.Tree, error)
}

// Report describes one stage run.
type Report struct {
	Stage    string
	Files    int
	Changed  int
	BytesIn  int64
	BytesOut int64
	Duration time.Duration
}

// Options configures a pipeline.
type Options struct {
	// Logger receives one debug line per stage. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Metrics records stage reports. May be nil.
	Metrics *metrics.Metrics

	// Tracer creates a span per stage. If nil, the global tracer provider is used.
	Tracer trace.Tracer

	// OnStage is called before each stage runs.
	OnStage func(name string)
}

// Pipeline is an ordered list of stages.
type Pipeline struct {
	stages []Stage
	opts   Options
}

// New creates a pipeline running stages in the given order.
func New(opts Options, stages ...Stage) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	return &Pipeline{
		stages: append([]Stage(nil), stages...),
		opts:   opts,
	}
}

// Append adds a stage at the end.
func (p *Pipeline) Append(s Stage) {
	p.stages = append(p.stages, s)
}

// InsertAfter inserts s right after the stage called name.
func (p *Pipeline) InsertAfter(name string, s Stage) error {
	i := p.index(name)
	if i < 0 {
		return errors.Errorf("no stage named %q", name)
	}
	p.stages = append(p.stages[:i+1], append([]Stage{s}, p.stages[i+1:]...)...)
	return nil
}

// Remove drops the stage called name and reports whether it was present.
func (p *Pipeline) Remove(name string) bool {
	i := p.index(name)
	if i < 0 {
		return false
	}
	p.stages = append(p.stages[:i], p.stages[i+1:]...)
	return true
}

// Stages returns the stage names in run order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

func (p *Pipeline) index(name string) int {
	for i, s := range p.stages {
		if s.Name() == name {
			return i
		}
	}
	return -1
}

// Run feeds in through every stage and returns the last stage's output.
// It stops at the first failing stage. A stage failure is returned as a
// coded error naming the stage; uncoded failures get E204.
func (p *Pipeline) Run(ctx context.Context, in *tree.Tree) (*tree.Tree, []Report, error) {
	if in == nil {
		return nil, nil, errors.New("pipeline input tree is nil")
	}

	reports := make([]Report, 0, len(p.stages))
	cur := in
	for _, s := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, reports, errors.Wrapf(err, "before stage %q", s.Name())
		}

		out, report, err := p.runStage(ctx, s, cur)
		if err != nil {
			se := shiperrors.FromError(err, "E204").WithStage(s.Name())
			return nil, reports, errors.Wrapf(se, "stage %q", s.Name())
		}
		reports = append(reports, report)
		cur = out
	}

	return cur, reports, nil
}

func (p *Pipeline) runStage(ctx context.Context, s Stage, in *tree.Tree) (*tree.Tree, Report, error) {
	name := s.Name()
	if p.opts.OnStage != nil {
		p.opts.OnStage(name)
	}

	ctx, span := p.opts.Tracer.Start(ctx, "stage "+name, trace.WithAttributes(
		attribute.String("shipsite.stage", name),
		attribute.Int("shipsite.files_in", in.Len()),
	))
	defer span.End()

	start := time.Now()
	out, err := s.Apply(ctx, in)
	if err == nil && out == nil {
		err = errors.New("stage returned no tree")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, Report{}, err
	}

	report := Report{
		Stage:    name,
		Files:    out.Len(),
		Changed:  out.Changed(in),
		BytesIn:  in.Size(),
		BytesOut: out.Size(),
		Duration: time.Since(start),
	}

	span.SetAttributes(
		attribute.Int("shipsite.files_out", report.Files),
		attribute.Int("shipsite.files_changed", report.Changed),
	)
	p.opts.Metrics.ObserveStage(name, report.Files, report.Changed, report.BytesIn, report.BytesOut, report.Duration)
	p.opts.Logger.Debug("stage complete",
		"stage", name,
		"files", report.Files,
		"changed", report.Changed,
		"bytesIn", report.BytesIn,
		"bytesOut", report.BytesOut,
		"duration", report.Duration,
	)

	return out, report, nil
}

// StageFunc adapts a function to the Stage interface.
type StageFunc struct {
	StageName string
	Fn        func(ctx context.Context, in *tree.Tree) (*tree.Tree, error)
}

// Name returns the stage name.
func (f StageFunc) Name() string { return f.StageName }

// Apply calls Fn.
func (f StageFunc) Apply(ctx context.Context, in *tree.Tree) (*tree.Tree, error) {
	return f.Fn(ctx, in)
}
