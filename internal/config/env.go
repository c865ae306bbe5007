package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/shipsite/shipsite/internal/errors"
)

// EnvFileName is the dotenv file read when loadEnv is enabled.
const EnvFileName = ".env"

// Env holds deploy settings read from the process environment. Credentials
// are not part of it: the AWS SDK resolves them from its default chain once
// LoadEnv has put .env into the environment.
type Env struct {
	Region   string `envconfig:"AWS_REGION"`
	Bucket   string `envconfig:"S3_BUCKET"`
	Prefix   string `envconfig:"S3_PREFIX"`
	Endpoint string `envconfig:"S3_ENDPOINT"`
}

// LoadEnv reads deploy settings from the environment. When loadDotEnv is set,
// <dir>/.env is loaded first; variables already present in the environment
// are not overridden.
func LoadEnv(dir string, loadDotEnv bool) (*Env, error) {
	if loadDotEnv {
		envPath := filepath.Join(dir, EnvFileName)
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return nil, errors.New("E121").
					WithDetail("Failed to read " + envPath).
					Wrap(err)
			}
			slog.Debug("loaded .env file", "file", envPath)
		}
	}

	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return nil, errors.New("E121").Wrap(err)
	}
	return &env, nil
}

// ApplyDeploy overlays environment values onto a copy of the deploy section.
// Environment values win over shipsite.json; command-line flags are applied
// afterwards and win over both.
func (e *Env) ApplyDeploy(d DeployConfig) DeployConfig {
	if e.Bucket != "" {
		d.Bucket = e.Bucket
	}
	if e.Prefix != "" {
		d.Prefix = e.Prefix
	}
	if e.Endpoint != "" {
		d.Endpoint = e.Endpoint
	}
	if e.Region != "" {
		d.Region = e.Region
	}
	return d
}
