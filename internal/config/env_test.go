package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var envKeys = []string{
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"AWS_SESSION_TOKEN",
	"AWS_REGION",
	"AWS_SHARED_CREDENTIALS_FILE",
	"S3_BUCKET",
	"S3_PREFIX",
	"S3_ENDPOINT",
}

// clearEnv unsets every variable Env reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadEnv_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("S3_BUCKET", "site")
	t.Setenv("AWS_REGION", "eu-central-1")

	env, err := LoadEnv(t.TempDir(), false)
	if err != nil {
		t.Fatalf("LoadEnv error: %v", err)
	}
	if env.Bucket != "site" {
		t.Errorf("Bucket = %q, want site", env.Bucket)
	}
	if env.Region != "eu-central-1" {
		t.Errorf("Region = %q, want eu-central-1", env.Region)
	}
}

func TestLoadEnv_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	dotenv := "AWS_ACCESS_KEY_ID=from-file\nAWS_SECRET_ACCESS_KEY=file-secret\nS3_PREFIX=www/\n"
	if err := os.WriteFile(filepath.Join(dir, EnvFileName), []byte(dotenv), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AWS_ACCESS_KEY_ID", "from-process")

	env, err := LoadEnv(dir, true)
	if err != nil {
		t.Fatalf("LoadEnv error: %v", err)
	}
	if env.Prefix != "www/" {
		t.Errorf("Prefix = %q, want www/", env.Prefix)
	}
	if got := os.Getenv("AWS_ACCESS_KEY_ID"); got != "from-process" {
		t.Errorf("AWS_ACCESS_KEY_ID = %q, process environment should win over .env", got)
	}
	if got := os.Getenv("AWS_SECRET_ACCESS_KEY"); got != "file-secret" {
		t.Errorf("AWS_SECRET_ACCESS_KEY = %q, want value from .env", got)
	}
}

func TestLoadEnv_DotEnvIgnoredWhenDisabled(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, EnvFileName), []byte("S3_BUCKET=from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}

	env, err := LoadEnv(dir, false)
	if err != nil {
		t.Fatalf("LoadEnv error: %v", err)
	}
	if env.Bucket != "" {
		t.Errorf("Bucket = %q, .env should not be read when disabled", env.Bucket)
	}
}

func TestLoadEnv_NoCredentialsRequired(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	creds := filepath.Join(dir, "credentials")
	if err := os.WriteFile(creds, []byte("[default]\naws_access_key_id = AKID\naws_secret_access_key = secret\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", creds)

	env, err := LoadEnv(dir, true)
	if err != nil {
		t.Fatalf("LoadEnv error: %v, credentials belong to the SDK chain", err)
	}
	if env.Bucket != "" || env.Region != "" {
		t.Errorf("env = %+v, want empty", env)
	}
}

func TestLoadEnv_BadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, EnvFileName), []byte("S3_BUCKET=\"unterminated\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadEnv(dir, true)
	if err == nil {
		t.Fatal("Expected error for malformed .env")
	}
	if !strings.Contains(err.Error(), "E121") {
		t.Errorf("Expected E121 error, got: %v", err)
	}
}

func TestEnv_ApplyDeploy(t *testing.T) {
	clearEnv(t)

	d := New().Deploy
	d.Bucket = "from-config"
	d.Region = "eu-west-1"

	env := &Env{Prefix: "v2/"}
	got := env.ApplyDeploy(d)
	if got.Bucket != "from-config" {
		t.Errorf("Bucket = %q, config value should stay when env is empty", got.Bucket)
	}
	if got.Prefix != "v2/" {
		t.Errorf("Prefix = %q, want v2/", got.Prefix)
	}
	if got.Region != "eu-west-1" {
		t.Errorf("Region = %q, config region should stay when AWS_REGION is unset", got.Region)
	}

	env = &Env{Region: "ap-south-1", Bucket: "from-env"}
	got = env.ApplyDeploy(d)
	if got.Bucket != "from-env" || got.Region != "ap-south-1" {
		t.Errorf("ApplyDeploy = %+v, environment should win", got)
	}
}
