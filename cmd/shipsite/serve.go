package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/shipsite/shipsite/internal/build"
	"github.com/shipsite/shipsite/internal/dev"
)

func serveCmd(a *app) *cobra.Command {
	var (
		port     int
		host     string
		noReload bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Preview the site with live reload",
		Long: `Build the site, serve the output directory and rebuild on change.

Connected browsers reload after each rebuild; stylesheet-only changes
are swapped in place. Build errors are shown in the page.

Examples:
  shipsite serve
  shipsite serve --port=8080
  shipsite serve --no-reload`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(port, host, noReload)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from shipsite.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from shipsite.json)")
	cmd.Flags().BoolVar(&noReload, "no-reload", false, "Disable live reload")

	return cmd
}

func (a *app) runServe(port int, host string, noReload bool) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	if port > 0 {
		cfg.Serve.Port = port
	}
	if host != "" {
		cfg.Serve.Host = host
	}
	if noReload {
		cfg.Serve.HotReload = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	server := dev.NewServer(dev.ServerOptions{
		Config:  cfg,
		Logger:  a.logger,
		Metrics: a.metrics,
		OnBuild: func(result *build.Result, err error) {
			if err != nil {
				errorMsg("Build failed")
				a.printError(err)
				return
			}
			success("Built %d files in %s", result.Files, result.Duration.Round(time.Millisecond))
		},
		OnReload: func(clients int) {
			success("Reloaded %d browsers", clients)
		},
	})

	ctx, cancel := signalContext()
	defer cancel()

	info("Serving %s at %s", cfg.Build.Output, cfg.ServeURL())
	err = server.Start(ctx)
	a.writeMetrics(cfg)
	return err
}
