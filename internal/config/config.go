package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shipsite/shipsite/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "shipsite.json"

	// DefaultSource is the default build source directory.
	DefaultSource = "src"

	// DefaultOutput is the default build output directory.
	DefaultOutput = "dist"

	// DefaultDeploySrc is the default directory uploaded by deploy.
	DefaultDeploySrc = "./dist"

	// DefaultPort is the default preview server port.
	DefaultPort = 4200

	// DefaultHost is the default preview server host.
	DefaultHost = "localhost"

	// DefaultConcurrency is the default number of parallel uploads.
	DefaultConcurrency = 4

	// DefaultGzipLevel is the default gzip compression level.
	DefaultGzipLevel = 9
)

// DefaultGzipExtensions are the file extensions compressed when gzip is enabled.
var DefaultGzipExtensions = []string{"js", "css", "png", "jpg"}

// Config represents the complete shipsite.json configuration.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty"`

	// Build contains asset pipeline configuration.
	Build BuildConfig `json:"build"`

	// Deploy contains bucket upload configuration.
	Deploy DeployConfig `json:"deploy"`

	// Serve contains preview server configuration.
	Serve ServeConfig `json:"serve"`

	// Metrics contains run metrics configuration.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// BuildConfig contains asset pipeline settings.
type BuildConfig struct {
	// Source is the directory the pipeline reads from.
	Source string `json:"source,omitempty"`

	// Output is the directory the pipeline writes to.
	Output string `json:"output,omitempty"`

	// SrcDir is the sub-directory of the processed tree picked into the output.
	SrcDir string `json:"srcDir,omitempty"`

	// DestDir is where SrcDir is placed inside the output.
	DestDir string `json:"destDir,omitempty"`

	// Files restricts picked files to these glob patterns (empty = all).
	Files []string `json:"files,omitempty"`

	// Exclude removes picked files matching these glob patterns.
	Exclude []string `json:"exclude,omitempty"`

	CSS  CSSConfig  `json:"css"`
	HTML HTMLConfig `json:"html"`
	Gzip GzipConfig `json:"gzip"`
}

// CSSConfig configures the CSS minification stage.
type CSSConfig struct {
	Enabled bool `json:"enabled"`

	// Precision is the number of significant digits kept in numbers (0 = lossless).
	Precision int `json:"precision,omitempty"`
}

// HTMLConfig configures the HTML minification stage.
type HTMLConfig struct {
	Enabled          bool `json:"enabled"`
	KeepComments     bool `json:"keepComments,omitempty"`
	KeepWhitespace   bool `json:"keepWhitespace,omitempty"`
	KeepEndTags      bool `json:"keepEndTags,omitempty"`
	KeepDocumentTags bool `json:"keepDocumentTags,omitempty"`
	KeepQuotes       bool `json:"keepQuotes,omitempty"`
}

// GzipConfig configures the compression stage. It is off unless enabled.
type GzipConfig struct {
	Enabled bool `json:"enabled"`

	// Extensions lists the extensions (without dot) that are compressed.
	Extensions []string `json:"extensions,omitempty"`

	// KeepUncompressed keeps the original file next to the compressed one.
	KeepUncompressed bool `json:"keepUncompressed"`

	// AppendSuffix writes compressed files as <name>.gz.
	AppendSuffix bool `json:"appendSuffix"`

	// Level is the gzip compression level (1-9).
	Level int `json:"level,omitempty"`
}

// DeployConfig contains bucket upload settings.
type DeployConfig struct {
	// Src is the local directory to upload.
	Src string `json:"src,omitempty"`

	// LoadEnv seeds the environment from .env before reading credentials.
	LoadEnv bool `json:"loadEnv"`

	// Verbose logs every uploaded object.
	Verbose bool `json:"verbose"`

	// Bucket is the destination bucket. S3_BUCKET takes precedence.
	Bucket string `json:"bucket,omitempty"`

	// Prefix is prepended to every object key. S3_PREFIX takes precedence.
	Prefix string `json:"prefix,omitempty"`

	// Region is the bucket region. AWS_REGION takes precedence.
	Region string `json:"region,omitempty"`

	// Endpoint points the client at an S3-compatible service. S3_ENDPOINT takes precedence.
	Endpoint string `json:"endpoint,omitempty"`

	// Concurrency is the number of parallel uploads.
	Concurrency int `json:"concurrency,omitempty"`

	// RateLimit caps uploads per second (0 = unlimited).
	RateLimit float64 `json:"rateLimit,omitempty"`

	// CacheControl is sent as the Cache-Control header of every object.
	CacheControl string `json:"cacheControl,omitempty"`

	// ACL is the canned ACL applied to every object (e.g. "public-read").
	ACL string `json:"acl,omitempty"`
}

// ServeConfig contains preview server settings.
type ServeConfig struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`

	// HotReload rebuilds on source changes and reloads connected browsers.
	HotReload bool `json:"hotReload"`

	// Watch lists extra directories to watch besides the build source.
	Watch []string `json:"watch,omitempty"`

	// Ignore lists patterns skipped by the watcher.
	Ignore []string `json:"ignore,omitempty"`
}

// MetricsConfig contains run metrics settings.
type MetricsConfig struct {
	// Textfile is a path where Prometheus metrics are written after each run.
	Textfile string `json:"textfile,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Build: BuildConfig{
			Source:  DefaultSource,
			Output:  DefaultOutput,
			SrcDir:  "/",
			DestDir: "/",
			CSS:     CSSConfig{Enabled: true},
			HTML:    HTMLConfig{Enabled: true},
			Gzip: GzipConfig{
				Enabled:          false,
				Extensions:       append([]string(nil), DefaultGzipExtensions...),
				KeepUncompressed: true,
				AppendSuffix:     true,
				Level:            DefaultGzipLevel,
			},
		},
		Deploy: DeployConfig{
			Src:         DefaultDeploySrc,
			LoadEnv:     true,
			Verbose:     true,
			Concurrency: DefaultConcurrency,
		},
		Serve: ServeConfig{
			Host:      DefaultHost,
			Port:      DefaultPort,
			HotReload: true,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for shipsite.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
// Fields absent from the file keep their default values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("E120").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E120").
			WithDetail("Failed to parse shipsite.json: " + err.Error()).
			WithSuggestion("Check that shipsite.json is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E120").Wrap(err)
	}

	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E120").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// SetDir roots a config that was not loaded from disk at dir.
func (c *Config) SetDir(dir string) {
	c.configPath = filepath.Join(dir, ConfigFileName)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Build.Source == "" {
		c.Build.Source = DefaultSource
	}
	if c.Build.Output == "" {
		c.Build.Output = DefaultOutput
	}
	if c.Build.SrcDir == "" {
		c.Build.SrcDir = "/"
	}
	if c.Build.DestDir == "" {
		c.Build.DestDir = "/"
	}
	if len(c.Build.Gzip.Extensions) == 0 {
		c.Build.Gzip.Extensions = append([]string(nil), DefaultGzipExtensions...)
	}
	if c.Build.Gzip.Level == 0 {
		c.Build.Gzip.Level = DefaultGzipLevel
	}

	if c.Deploy.Src == "" {
		c.Deploy.Src = DefaultDeploySrc
	}
	if c.Deploy.Concurrency == 0 {
		c.Deploy.Concurrency = DefaultConcurrency
	}

	if c.Serve.Host == "" {
		c.Serve.Host = DefaultHost
	}
	if c.Serve.Port == 0 {
		c.Serve.Port = DefaultPort
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Serve.Port < 0 || c.Serve.Port > 65535 {
		return errors.New("E122").
			WithDetail("Port must be between 0 and 65535, got " + strconv.Itoa(c.Serve.Port))
	}
	if c.Build.Gzip.Level < 1 || c.Build.Gzip.Level > 9 {
		return errors.New("E123").
			WithDetail("build.gzip.level must be between 1 and 9, got " + strconv.Itoa(c.Build.Gzip.Level))
	}
	if c.Build.CSS.Precision < 0 {
		return errors.New("E123").
			WithDetail("build.css.precision must not be negative")
	}
	if c.Deploy.Concurrency < 1 {
		return errors.New("E123").
			WithDetail("deploy.concurrency must be at least 1, got " + strconv.Itoa(c.Deploy.Concurrency))
	}
	if c.Deploy.RateLimit < 0 {
		return errors.New("E123").
			WithDetail("deploy.rateLimit must not be negative")
	}
	return nil
}

// resolve returns path joined to the config directory unless it is absolute.
func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// SourcePath returns the absolute path to the build source directory.
func (c *Config) SourcePath() string {
	return c.resolve(c.Build.Source)
}

// OutputPath returns the absolute path to the build output directory.
func (c *Config) OutputPath() string {
	return c.resolve(c.Build.Output)
}

// DeploySrcPath returns the absolute path to the directory uploaded by deploy.
func (c *Config) DeploySrcPath() string {
	return c.resolve(c.Deploy.Src)
}

// MetricsPath returns the absolute path of the metrics textfile, or "".
func (c *Config) MetricsPath() string {
	if c.Metrics.Textfile == "" {
		return ""
	}
	return c.resolve(c.Metrics.Textfile)
}

// ServeAddress returns the address string for the preview server.
func (c *Config) ServeAddress() string {
	return c.Serve.Host + ":" + strconv.Itoa(c.Serve.Port)
}

// ServeURL returns the full URL for the preview server.
func (c *Config) ServeURL() string {
	return "http://" + c.ServeAddress()
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindProjectRoot walks up directories to find the directory containing
// shipsite.json. It reports false when none is found.
func FindProjectRoot(startDir string) (string, bool, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, err
	}

	for {
		if Exists(dir) {
			return dir, true, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// LoadFromDir loads the configuration for the project containing dir.
// Without a shipsite.json, defaults rooted at dir are returned.
func LoadFromDir(dir string) (*Config, error) {
	root, found, err := FindProjectRoot(dir)
	if err != nil {
		return nil, err
	}
	if !found {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		cfg := New()
		cfg.SetDir(abs)
		return cfg, nil
	}
	return Load(root)
}

// LoadFromWorkingDir loads configuration for the current working directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return LoadFromDir(wd)
}
