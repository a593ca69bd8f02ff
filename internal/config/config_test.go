package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// isolateEnv points the config dir at a temp dir and clears the variables
// Load reads.
func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, key := range []string{EnvCertPath, EnvKeyPath, EnvMode, EnvStorageDir, EnvLogFile, EnvPort} {
		t.Setenv(key, "")
	}
	return dir
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Port != 8888 {
		t.Errorf("Port = %d, want 8888", cfg.Port)
	}
	if cfg.Mode != "inline" {
		t.Errorf("Mode = %q, want inline", cfg.Mode)
	}
	if cfg.MaxMessageBytes != 16<<20 {
		t.Errorf("MaxMessageBytes = %d", cfg.MaxMessageBytes)
	}
	if cfg.Addr() != "127.0.0.1:8888" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
}

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != Default().Port || cfg.Mode != Default().Mode {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	isolateEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), ""); err == nil {
		t.Error("Load() with a missing explicit file should fail")
	}
}

func TestLoad_YAMLThenEnvPrecedence(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	configPath := filepath.Join(dir, "relay.yaml")
	yamlData := `
host: 0.0.0.0
port: 9443
mode: disk
storage_dir: /srv/images
cert_path: /etc/relay/file-cert.pem
key_path: /etc/relay/file-key.pem
explicit_errors: true
`
	if err := os.WriteFile(configPath, []byte(yamlData), 0600); err != nil {
		t.Fatal(err)
	}

	envPath := filepath.Join(dir, "relay.env")
	envData := "SSL_CERT=/etc/relay/env-cert.pem\nSSL_KEY=/etc/relay/env-key.pem\nPHOTORELAY_MODE=log\n"
	if err := os.WriteFile(envPath, []byte(envData), 0600); err != nil {
		t.Fatal(err)
	}

	// the process environment beats the env file
	t.Setenv(EnvMode, "inline")

	cfg, err := Load(configPath, envPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Host != "0.0.0.0" || cfg.Port != 9443 {
		t.Errorf("address = %s, want 0.0.0.0:9443", cfg.Addr())
	}
	if cfg.StorageDir != "/srv/images" {
		t.Errorf("StorageDir = %q", cfg.StorageDir)
	}
	if !cfg.ExplicitErrors {
		t.Error("ExplicitErrors should be read from the file")
	}
	if cfg.CertPath != "/etc/relay/env-cert.pem" || cfg.KeyPath != "/etc/relay/env-key.pem" {
		t.Errorf("cert/key = %q/%q, want the env file values", cfg.CertPath, cfg.KeyPath)
	}
	if cfg.Mode != "inline" {
		t.Errorf("Mode = %q, want inline from the environment", cfg.Mode)
	}
	// unset keys keep their defaults
	if cfg.ImageExt != "png" {
		t.Errorf("ImageExt = %q, want png", cfg.ImageExt)
	}
}

func TestLoad_DefaultConfigFile(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME is only honoured on Linux")
	}
	configHome := isolateEnv(t)

	path := filepath.Join(configHome, appName, configFile)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("port: 7000\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 7000 {
		t.Errorf("Port = %d, want 7000", cfg.Port)
	}
}

func TestLoad_InvalidInput(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("port: [1, 2\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad, ""); err == nil {
		t.Error("Load() should fail on malformed YAML")
	}

	t.Setenv(EnvPort, "eighty")
	if _, err := Load("", ""); err == nil || !strings.Contains(err.Error(), EnvPort) {
		t.Errorf("Load() error = %v, want an invalid port error", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"generated cert", func(c *Config) { c.GenerateCert = true }, false},
		{"cert files", func(c *Config) { c.CertPath, c.KeyPath = "c.pem", "k.pem" }, false},
		{"missing cert", func(c *Config) {}, true},
		{"only cert", func(c *Config) { c.CertPath = "c.pem" }, true},
		{"unknown mode", func(c *Config) { c.GenerateCert = true; c.Mode = "broadcast" }, true},
		{"zero port", func(c *Config) { c.GenerateCert = true; c.Port = 0 }, true},
		{"port too large", func(c *Config) { c.GenerateCert = true; c.Port = 70000 }, true},
		{"disk without dir", func(c *Config) { c.GenerateCert = true; c.Mode = "disk"; c.StorageDir = " " }, true},
		{"negative max size", func(c *Config) { c.GenerateCert = true; c.MaxMessageBytes = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_NormalisesMode(t *testing.T) {
	cfg := Default()
	cfg.GenerateCert = true
	cfg.Mode = " DISK "
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Mode != "disk" {
		t.Errorf("Mode = %q, want disk", cfg.Mode)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Mode = "disk"
	cfg.Port = 9000
	cfg.Advertise = true
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should not remain after Save()")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# photorelay configuration file") {
		t.Error("saved file should start with the header comment")
	}

	loaded, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Mode != "disk" || loaded.Port != 9000 || !loaded.Advertise {
		t.Errorf("Load() after Save() = %+v", loaded)
	}
}

func TestGetConfigPath(t *testing.T) {
	dir := isolateEnv(t)

	path, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	// XDG_CONFIG_HOME is honoured on Linux only
	if filepath.Base(path) != configFile {
		t.Errorf("GetConfigPath() = %q", path)
	}
	if strings.HasPrefix(path, dir) && filepath.Dir(path) != filepath.Join(dir, appName) {
		t.Errorf("GetConfigPath() = %q, want it under %s", path, dir)
	}
}

func TestLoad_EmptyProcessVariableFallsBackToEnvFile(t *testing.T) {
	dir := isolateEnv(t)

	envPath := filepath.Join(dir, "relay.env")
	if err := os.WriteFile(envPath, []byte("SSL_CERT=/c.pem\nSSL_KEY=/k.pem\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvCertPath, "")

	cfg, err := Load("", envPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CertPath != "/c.pem" || cfg.KeyPath != "/k.pem" {
		t.Errorf("cert/key = %q/%q, want /c.pem and /k.pem from the env file", cfg.CertPath, cfg.KeyPath)
	}
}
