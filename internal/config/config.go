package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/muurk/photorelay/internal/protocol"
	"gopkg.in/yaml.v3"
)

// Environment variables read on top of the config file. SSL_CERT and SSL_KEY
// keep the names used by existing .env files.
const (
	EnvCertPath   = "SSL_CERT"
	EnvKeyPath    = "SSL_KEY"
	EnvMode       = "PHOTORELAY_MODE"
	EnvStorageDir = "PHOTORELAY_STORAGE_DIR"
	EnvLogFile    = "PHOTORELAY_LOG_FILE"
	EnvPort       = "PHOTORELAY_PORT"

	// DefaultEnvFile is loaded when present and no other env file is given
	DefaultEnvFile = ".env"
)

// Config holds the relay configuration
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	CertPath     string `yaml:"cert_path,omitempty"`
	KeyPath      string `yaml:"key_path,omitempty"`
	GenerateCert bool   `yaml:"generate_cert"`

	Mode       string `yaml:"mode"`
	StorageDir string `yaml:"storage_dir"`
	ImageExt   string `yaml:"image_ext"`

	LogFile  string `yaml:"log_file,omitempty"`
	LogLevel string `yaml:"log_level"`

	ExplicitErrors  bool  `yaml:"explicit_errors"`
	MaxMessageBytes int64 `yaml:"max_message_bytes"`

	Advertise    bool   `yaml:"advertise"`
	InstanceName string `yaml:"instance_name,omitempty"`
}

// Default returns the configuration used when nothing else is set
func Default() *Config {
	return &Config{
		Host:            "127.0.0.1",
		Port:            8888,
		Mode:            string(protocol.ModeInline),
		StorageDir:      filepath.Join(os.TempDir(), "photorelay"),
		ImageExt:        "png",
		LogLevel:        "info",
		MaxMessageBytes: 16 << 20,
	}
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ParsedMode returns the validated mode
func (c *Config) ParsedMode() (protocol.Mode, error) {
	return protocol.ParseMode(c.Mode)
}

// Load builds a configuration from defaults, the YAML file at path, the env
// file and the process environment, in increasing order of precedence.
// An empty path loads the default config file if it exists. An empty envFile
// loads .env from the working directory if it exists.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		defaultPath, err := GetConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
		path = defaultPath
	}

	if err := cfg.mergeFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	env, err := readEnvFile(envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}

	return cfg, nil
}

// mergeFile overlays the YAML file at path onto c
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// readEnvFile returns the variables in envFile. A missing default .env is not
// an error.
func readEnvFile(envFile string) (map[string]string, error) {
	if envFile == "" {
		if _, err := os.Stat(DefaultEnvFile); err != nil {
			return map[string]string{}, nil
		}
		envFile = DefaultEnvFile
	}

	env, err := godotenv.Read(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", envFile, err)
	}
	return env, nil
}

// applyEnv overlays env file values, then the process environment
func (c *Config) applyEnv(file map[string]string) error {
	// an empty process variable does not hide the env file value
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := file[key]
		return v, ok
	}

	if v, ok := lookup(EnvCertPath); ok && v != "" {
		c.CertPath = v
	}
	if v, ok := lookup(EnvKeyPath); ok && v != "" {
		c.KeyPath = v
	}
	if v, ok := lookup(EnvMode); ok && v != "" {
		c.Mode = v
	}
	if v, ok := lookup(EnvStorageDir); ok && v != "" {
		c.StorageDir = v
	}
	if v, ok := lookup(EnvLogFile); ok && v != "" {
		c.LogFile = v
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		c.Port = port
	}
	return nil
}

// Validate checks the configuration and normalises the mode name
func (c *Config) Validate() error {
	mode, err := protocol.ParseMode(c.Mode)
	if err != nil {
		return err
	}
	c.Mode = string(mode)

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	if !c.GenerateCert {
		if c.CertPath == "" || c.KeyPath == "" {
			return fmt.Errorf("cert_path and key_path are required (set %s and %s, or enable generate_cert)", EnvCertPath, EnvKeyPath)
		}
	}

	if mode == protocol.ModeDisk && strings.TrimSpace(c.StorageDir) == "" {
		return fmt.Errorf("storage_dir is required in disk mode")
	}

	if c.MaxMessageBytes < 0 {
		return fmt.Errorf("max_message_bytes must not be negative")
	}

	return nil
}

// Save writes the configuration to path. Performs an atomic write to prevent
// corruption on crash.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# photorelay configuration file
#
# SSL_CERT, SSL_KEY and PHOTORELAY_* environment variables override
# these values; command line flags override both.
#
# Location: ` + path + `

`)
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}
