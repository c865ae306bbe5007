// Package pipeline composes named stages over an in-memory directory tree.
//
// A Stage maps one input tree to one output tree. A Pipeline runs its stages
// strictly in order, feeding each stage the previous stage's output, so stages
// can be appended, removed or inserted (for example re-enabling compression)
// without touching the orchestration code.
//
//	p := pipeline.New(pipeline.Options{Logger: logger},
//	    stage.NewCSSMinify(stage.CSSOptions{}),
//	    stage.NewHTMLMinify(stage.HTMLOptions{}),
//	    stage.NewPick(stage.PickOptions{SrcDir: "/", DestDir: "/"}),
//	)
//	out, reports, err := p.Run(ctx, in)
package pipeline
