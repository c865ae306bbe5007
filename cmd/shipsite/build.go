package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shipsite/shipsite/internal/build"
)

func buildCmd(a *app) *cobra.Command {
	var (
		output string
		gzip   bool
		clean  bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the site into the output directory",
		Long: `Build the site from the source directory.

Stages:
  clean-css    minify stylesheets
  htmlmin      minify HTML pages
  gzip         write .gz siblings (off unless enabled)
  pick-files   copy build.srcDir into build.destDir of the output

Examples:
  shipsite build
  shipsite build --output=public
  shipsite build --gzip`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBuild(cmd, output, gzip, clean)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output directory (default from shipsite.json)")
	cmd.Flags().BoolVar(&gzip, "gzip", false, "Enable the gzip stage")
	cmd.Flags().BoolVar(&clean, "clean", false, "Remove the output directory and exit")

	return cmd
}

func (a *app) runBuild(cmd *cobra.Command, output string, gzip, clean bool) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	if output != "" {
		cfg.Build.Output = output
	}
	if cmd.Flags().Changed("gzip") {
		cfg.Build.Gzip.Enabled = gzip
	}

	builder := build.New(cfg, build.Options{
		Logger:     a.logger,
		Metrics:    a.metrics,
		OnProgress: func(step string) { info("%s", step) },
	})

	if clean {
		if err := builder.Clean(); err != nil {
			return err
		}
		success("Removed %s", cfg.Build.Output)
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := builder.Build(ctx)
	a.writeMetrics(cfg)
	if err != nil {
		return err
	}

	fmt.Println()
	for _, r := range result.Reports {
		info("%-11s %4d files  %10s -> %-10s %s",
			r.Stage, r.Files, formatBytes(r.BytesIn), formatBytes(r.BytesOut), r.Duration.Round(time.Millisecond))
	}
	fmt.Println()
	success("Built %d files into %s/ in %s (%s -> %s)",
		result.Files, cfg.Build.Output, result.Duration.Round(time.Millisecond),
		formatBytes(result.InputBytes), formatBytes(result.OutputBytes))
	return nil
}
