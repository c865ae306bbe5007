package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shipsite/shipsite/internal/config"
	"github.com/shipsite/shipsite/internal/errors"
	"github.com/shipsite/shipsite/internal/logging"
	"github.com/shipsite/shipsite/internal/metrics"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// app holds state shared by all commands.
type app struct {
	logLevel    string
	logFormat   string
	noColor     bool
	metricsFile string

	logger  *slog.Logger
	metrics *metrics.Metrics
}

func main() {
	a := &app{}
	if err := a.rootCmd().Execute(); err != nil {
		a.printError(err)
		os.Exit(1)
	}
}

// printError reports err on stderr, as JSON when logs are JSON.
func (a *app) printError(err error) {
	errors.Print(os.Stderr, err, a.logFormat == string(logging.FormatJSON))
}

func newRootCmd() *cobra.Command {
	return (&app{}).rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shipsite",
		Short: "Build a static site and ship it to S3",
		Long: `shipsite minifies a static site and uploads it to an S3-compatible bucket.

  build    src/ -> clean-css -> htmlmin -> [gzip] -> pick-files -> dist/
  deploy   dist/ -> s3://bucket/prefix
  serve    preview dist/ with live reload`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "text", "Log format (text, json)")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable colored output")
	flags.StringVar(&a.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")

	rootCmd.AddCommand(
		initCmd(a),
		buildCmd(a),
		deployCmd(a),
		serveCmd(a),
		versionCmd(),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.noColor || os.Getenv("NO_COLOR") != "" {
		errors.SetColors(false)
		colors = false
	}
	logger, err := logging.Setup(a.logLevel, logging.Format(a.logFormat), cmd.ErrOrStderr())
	if err != nil {
		return errors.New("E123").WithDetail(err.Error())
	}
	a.logger = logger
	a.metrics = metrics.New(metrics.DefaultNamespace)
	return nil
}

// loadConfig loads shipsite.json for the working directory.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		return nil, err
	}
	if !config.Exists(cfg.Dir()) {
		a.logger.Debug("no shipsite.json, using defaults", "dir", cfg.Dir())
	}
	return cfg, nil
}

// writeMetrics writes the textfile when one is configured.
func (a *app) writeMetrics(cfg *config.Config) {
	path := a.metricsFile
	if path == "" {
		path = cfg.MetricsPath()
	}
	if path == "" {
		return
	}
	if err := a.metrics.WriteTextfile(path); err != nil {
		warn("Could not write metrics to %s: %v", path, err)
		return
	}
	a.logger.Debug("wrote metrics", "file", path)
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Println("\n  Shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

var colors = true

func paint(code, text string) string {
	if !colors {
		return text
	}
	return code + text + "\033[0m"
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("%s %s\n", paint("\033[32m", "✓"), fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("%s %s\n", paint("\033[33m", "⚠"), fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func errorMsg(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", paint("\033[31m", "✗"), fmt.Sprintf(format, args...))
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
