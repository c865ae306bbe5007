package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shipsite/shipsite/internal/config"
	"github.com/shipsite/shipsite/internal/errors"
)

func initCmd(a *app) *cobra.Command {
	var (
		name  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default shipsite.json",
		Long: `Write shipsite.json with the default settings to the current directory.

Examples:
  shipsite init
  shipsite init --name=docs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			return runInit(wd, name, force)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Project name (default: directory name)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing shipsite.json")

	return cmd
}

func runInit(dir, name string, force bool) error {
	if config.Exists(dir) && !force {
		return errors.New("E140").
			WithDetail(filepath.Join(dir, config.ConfigFileName) + " already exists").
			WithSuggestion("Use --force to overwrite it")
	}

	cfg := config.New()
	cfg.Name = name
	if cfg.Name == "" {
		cfg.Name = filepath.Base(dir)
	}
	if err := cfg.SaveTo(filepath.Join(dir, config.ConfigFileName)); err != nil {
		return err
	}

	success("Created %s", config.ConfigFileName)
	if _, err := os.Stat(cfg.SourcePath()); os.IsNotExist(err) {
		info("Put your site in %s/ and run: shipsite build", cfg.Build.Source)
	}
	return nil
}
