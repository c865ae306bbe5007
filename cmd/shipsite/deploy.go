package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shipsite/shipsite/internal/config"
	"github.com/shipsite/shipsite/internal/deploy"
	"github.com/shipsite/shipsite/internal/errors"
)

type deployFlags struct {
	src         string
	loadEnv     bool
	verbose     bool
	bucket      string
	prefix      string
	concurrency int
	dryRun      bool
}

func deployCmd(a *app) *cobra.Command {
	var f deployFlags

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy to S3",
		Long: `Upload the built site to an S3-compatible bucket.

Credentials come from the AWS SDK's default chain: environment variables,
shared credentials and config files (AWS_PROFILE), SSO and instance roles.
With --load-env, a .env file in the project directory is read into the
environment first. S3_BUCKET, S3_PREFIX, S3_ENDPOINT and AWS_REGION override
shipsite.json; command-line flags override both.

Objects whose content is already in the bucket are skipped.

Examples:
  shipsite deploy
  shipsite deploy --bucket=my-site --prefix=v2
  shipsite deploy --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDeploy(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.src, "src", config.DefaultDeploySrc, "Directory to upload")
	cmd.Flags().BoolVar(&f.loadEnv, "load-env", true, "Load .env before reading credentials")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", true, "Log every object")
	cmd.Flags().StringVar(&f.bucket, "bucket", "", "Destination bucket")
	cmd.Flags().StringVar(&f.prefix, "prefix", "", "Key prefix")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", config.DefaultConcurrency, "Parallel uploads")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Show what would be uploaded")

	return cmd
}

// resolveDeploy merges the deploy settings in precedence order:
// shipsite.json, then the environment, then command-line flags.
func resolveDeploy(cmd *cobra.Command, cfg *config.Config, f deployFlags) (config.DeployConfig, error) {
	loadEnv := cfg.Deploy.LoadEnv
	if cmd.Flags().Changed("load-env") {
		loadEnv = f.loadEnv
	}
	env, err := config.LoadEnv(cfg.Dir(), loadEnv)
	if err != nil {
		return config.DeployConfig{}, err
	}
	return applyDeployFlags(cmd, env.ApplyDeploy(cfg.Deploy), f), nil
}

// applyDeployFlags overrides the deploy section with flags set on the
// command line.
func applyDeployFlags(cmd *cobra.Command, d config.DeployConfig, f deployFlags) config.DeployConfig {
	flags := cmd.Flags()
	if flags.Changed("src") {
		d.Src = f.src
	}
	if flags.Changed("load-env") {
		d.LoadEnv = f.loadEnv
	}
	if flags.Changed("verbose") {
		d.Verbose = f.verbose
	}
	if flags.Changed("bucket") {
		d.Bucket = f.bucket
	}
	if flags.Changed("prefix") {
		d.Prefix = f.prefix
	}
	if flags.Changed("concurrency") {
		d.Concurrency = f.concurrency
	}
	return d
}

func (a *app) runDeploy(cmd *cobra.Command, f deployFlags) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	cfg.Deploy, err = resolveDeploy(cmd, cfg, f)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Deploy.Bucket == "" {
		return errors.New("E223")
	}

	d := cfg.Deploy
	target := "s3://" + d.Bucket
	if d.Prefix != "" {
		target += "/" + d.Prefix
	}
	info("Deploying %s to %s", d.Src, target)

	ctx, cancel := signalContext()
	defer cancel()

	client, err := deploy.NewS3Client(ctx, d.Region, d.Endpoint)
	if err != nil {
		return err
	}
	deployer := deploy.New(deploy.Options{
		Src:            cfg.DeploySrcPath(),
		Bucket:         d.Bucket,
		Prefix:         d.Prefix,
		Concurrency:    d.Concurrency,
		RateLimit:      d.RateLimit,
		CacheControl:   d.CacheControl,
		ACL:            d.ACL,
		GzipExtensions: cfg.Build.Gzip.Extensions,
		DryRun:         f.dryRun,
		Verbose:        d.Verbose,
		Logger:         a.logger,
		Metrics:        a.metrics,
	}, client)

	result, err := deployer.Deploy(ctx)
	a.writeMetrics(cfg)
	if err != nil {
		return err
	}

	fmt.Println()
	verb := "Uploaded"
	if f.dryRun {
		verb = "Would upload"
	}
	success("%s %d objects (%s), %d unchanged, in %s",
		verb, len(result.Uploaded), formatBytes(result.Bytes), len(result.Skipped),
		result.Duration.Round(time.Millisecond))
	return nil
}
