// Package config provides configuration loading and management for the repository manager.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crpaas/repo-custodian/internal/telemetry"
)

// EnvPrefix is the prefix for environment variables consumed by the
// server (e.g. CRPAAS_LOG_LEVEL).
const EnvPrefix = "CRPAAS"

const (
	// StorageModePostgres persists repository records in PostgreSQL
	StorageModePostgres = "postgres"

	// StorageModeMemory keeps repository records in process memory
	StorageModeMemory = "memory"
)

const (
	// BackendTypeKubernetes runs clone and cleanup tasks as Kubernetes Jobs
	BackendTypeKubernetes = "kubernetes"

	// BackendTypeDirect runs clone and cleanup tasks inline on a local volume
	BackendTypeDirect = "direct"
)

// Defaults applied by the getter methods when a field is unset.
const (
	DefaultServerAddress      = ":8080"
	DefaultWatchInterval      = 5 * time.Second
	DefaultAutoSyncInterval   = time.Minute
	DefaultSweepInterval      = 5 * time.Minute
	DefaultMaxConcurrentTasks = 4
	DefaultOpenGrokDeployment = "opengrok"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Server     ServerConfig     `yaml:"server,omitempty"`
	Storage    StorageConfig    `yaml:"storage"`
	Backend    BackendConfig    `yaml:"backend"`
	Controller ControllerConfig `yaml:"controller,omitempty"`

	// Reindex, when set, enables best-effort search reindex notification
	// after successful clone and cleanup tasks
	Reindex *ReindexConfig `yaml:"reindex,omitempty"`

	// OpenGrok carries the location of the search deployment this manager
	// provisions sources for
	OpenGrok *OpenGrokConfig `yaml:"opengrok,omitempty"`

	// Telemetry enables OpenTelemetry tracing and metrics export
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// ServerConfig defines the HTTP listener settings
type ServerConfig struct {
	// Address is the host:port the API server binds to
	Address string `yaml:"address,omitempty"`
}

// GetAddress returns the listen address, using ":8080" if not specified
func (s *ServerConfig) GetAddress() string {
	if s.Address == "" {
		return DefaultServerAddress
	}
	return s.Address
}

// StorageConfig selects and parameterizes the repository store
type StorageConfig struct {
	// Mode selects the store implementation (postgres or memory)
	Mode string `yaml:"mode"`

	// Database holds connection settings; required when mode is postgres
	Database *DatabaseConfig `yaml:"database,omitempty"`
}

// BackendConfig selects the task execution backend.
// Exactly one of the nested sections must be set.
type BackendConfig struct {
	Kubernetes *KubernetesBackendConfig `yaml:"kubernetes,omitempty"`
	Direct     *DirectBackendConfig     `yaml:"direct,omitempty"`
}

// GetType returns the inferred backend type based on which section is present
func (b *BackendConfig) GetType() string {
	if b.Kubernetes != nil {
		return BackendTypeKubernetes
	}
	if b.Direct != nil {
		return BackendTypeDirect
	}
	return ""
}

// KubernetesBackendConfig defines Job submission settings for the
// Kubernetes execution backend
type KubernetesBackendConfig struct {
	// Namespace is where clone and cleanup Jobs run
	Namespace string `yaml:"namespace"`

	// Image is the container image carrying git and the clone script
	Image string `yaml:"image"`

	// PVCName is the claim backing the shared source volume
	PVCName string `yaml:"pvcName"`

	// ScriptConfigMap holds the clone-or-pull script mounted into Jobs
	ScriptConfigMap string `yaml:"scriptConfigMap"`

	// BackoffLimit is the Job retry budget
	BackoffLimit int32 `yaml:"backoffLimit,omitempty"`

	// SSHSecretName is a secret with an id_rsa key, projected into clone
	// Jobs for private repositories
	SSHSecretName string `yaml:"sshSecretName,omitempty"`

	// SSHConfigMapName is an optional SSH client config projected next to
	// the key
	SSHConfigMapName string `yaml:"sshConfigMapName,omitempty"`
}

// DirectBackendConfig defines settings for the inline execution backend
type DirectBackendConfig struct {
	// Root is the directory clones are materialized under
	Root string `yaml:"root"`
}

// ControllerConfig tunes the background reconciliation loops.
// Intervals are duration strings (e.g., "5s", "1m").
type ControllerConfig struct {
	WatchInterval      string `yaml:"watchInterval,omitempty"`
	AutoSyncInterval   string `yaml:"autoSyncInterval,omitempty"`
	SweepInterval      string `yaml:"sweepInterval,omitempty"`
	MaxConcurrentTasks int    `yaml:"maxConcurrentTasks,omitempty"`
}

// GetWatchInterval returns the watcher tick interval
func (c *ControllerConfig) GetWatchInterval() time.Duration {
	return durationOrDefault(c.WatchInterval, DefaultWatchInterval)
}

// GetAutoSyncInterval returns the auto-sync scheduler tick interval
func (c *ControllerConfig) GetAutoSyncInterval() time.Duration {
	return durationOrDefault(c.AutoSyncInterval, DefaultAutoSyncInterval)
}

// GetSweepInterval returns the expiration sweeper tick interval
func (c *ControllerConfig) GetSweepInterval() time.Duration {
	return durationOrDefault(c.SweepInterval, DefaultSweepInterval)
}

// GetMaxConcurrentTasks returns the dispatcher concurrency bound
func (c *ControllerConfig) GetMaxConcurrentTasks() int {
	if c.MaxConcurrentTasks <= 0 {
		return DefaultMaxConcurrentTasks
	}
	return c.MaxConcurrentTasks
}

func durationOrDefault(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// ReindexConfig defines the search reindex trigger endpoint
type ReindexConfig struct {
	// URL is requested with GET after successful tasks
	URL string `yaml:"url"`
}

// OpenGrokConfig locates the OpenGrok deployment served by this manager
type OpenGrokConfig struct {
	// BaseURL is the externally visible OpenGrok URL, reported to API
	// clients so they can link provisioned sources
	BaseURL string `yaml:"baseUrl,omitempty"`

	// Namespace is where the OpenGrok deployment runs; defaults to the
	// backend namespace when the kubernetes backend is configured
	Namespace string `yaml:"namespace,omitempty"`

	// Deployment is the deployment name monitored by the status endpoint
	Deployment string `yaml:"deployment,omitempty"`
}

// GetDeployment returns the deployment name, using "opengrok" if not specified
func (o *OpenGrokConfig) GetDeployment() string {
	if o == nil || o.Deployment == "" {
		return DefaultOpenGrokDeployment
	}
	return o.Deployment
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password
	// This is the recommended approach for production deployments
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from CRPAAS_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	// Priority 1: Read from file if specified
	if d.PasswordFile != "" {
		// Use filepath.Clean to prevent path traversal attacks
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		// Trim whitespace (including newlines) from file content
		password := strings.TrimSpace(string(data))
		return password, nil
	}

	// Priority 2: Check environment variable
	if envPassword := os.Getenv("CRPAAS_DATABASE_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or CRPAAS_DATABASE_PASSWORD environment variable",
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	// URL-escape the password to handle special characters
	escapedPassword := url.QueryEscape(password)

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		escapedPassword,
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	// As of now, this is required because there's no other options to load
	// configuration. Once we add more options, we can remove this check.
	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	// Read the entire file into memory
	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML content
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Validate the config
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if err := c.validateBackend(); err != nil {
		return err
	}

	if err := c.validateController(); err != nil {
		return err
	}

	if c.Reindex != nil && c.Reindex.URL == "" {
		return fmt.Errorf("reindex: url is required")
	}

	if err := c.Telemetry.Validate(); err != nil {
		return err
	}

	return nil
}

// validateStorage validates the storage mode and its database settings
func (c *Config) validateStorage() error {
	switch c.Storage.Mode {
	case StorageModePostgres:
		if c.Storage.Database == nil {
			return fmt.Errorf("storage: database configuration is required for postgres mode")
		}
		return c.Storage.Database.validate()
	case StorageModeMemory:
		return nil
	case "":
		return fmt.Errorf("storage: mode is required")
	default:
		return fmt.Errorf("storage: mode must be %s or %s, got %s",
			StorageModePostgres, StorageModeMemory, c.Storage.Mode)
	}
}

// validateBackend ensures exactly one backend section is configured
func (c *Config) validateBackend() error {
	configCount := 0
	if c.Backend.Kubernetes != nil {
		configCount++
	}
	if c.Backend.Direct != nil {
		configCount++
	}

	if configCount == 0 {
		return fmt.Errorf("backend: one of kubernetes or direct configuration must be specified")
	}
	if configCount > 1 {
		return fmt.Errorf("backend: only one of kubernetes or direct configuration may be specified")
	}

	if k := c.Backend.Kubernetes; k != nil {
		if k.Namespace == "" {
			return fmt.Errorf("backend.kubernetes: namespace is required")
		}
		if k.Image == "" {
			return fmt.Errorf("backend.kubernetes: image is required")
		}
		if k.PVCName == "" {
			return fmt.Errorf("backend.kubernetes: pvcName is required")
		}
		if k.ScriptConfigMap == "" {
			return fmt.Errorf("backend.kubernetes: scriptConfigMap is required")
		}
	}

	if d := c.Backend.Direct; d != nil && d.Root == "" {
		return fmt.Errorf("backend.direct: root is required")
	}

	return nil
}

// validateController checks that configured intervals parse as durations
func (c *Config) validateController() error {
	for field, value := range map[string]string{
		"watchInterval":    c.Controller.WatchInterval,
		"autoSyncInterval": c.Controller.AutoSyncInterval,
		"sweepInterval":    c.Controller.SweepInterval,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("controller: %s must be a valid duration (e.g., '30s', '5m'): %w", field, err)
		}
	}

	if c.Controller.MaxConcurrentTasks < 0 {
		return fmt.Errorf("controller: maxConcurrentTasks must not be negative")
	}

	return nil
}

// validate checks the required database connection fields
func (d *DatabaseConfig) validate() error {
	if d.Host == "" {
		return fmt.Errorf("storage.database: host is required")
	}
	if d.Port <= 0 {
		return fmt.Errorf("storage.database: port is required")
	}
	if d.User == "" {
		return fmt.Errorf("storage.database: user is required")
	}
	if d.Database == "" {
		return fmt.Errorf("storage.database: database is required")
	}
	return nil
}
