// Package config loads the relay configuration.
//
// Values are layered, later sources winning:
//
//  1. built-in defaults (Default)
//  2. a YAML file, by default in the OS configuration directory
//  3. an env file (.env) and the process environment
//  4. command line flags, applied by the caller
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/photorelay/config.yaml or $HOME/.config/photorelay/config.yaml
//   - macOS: $HOME/.config/photorelay/config.yaml
//   - Windows: %LOCALAPPDATA%\photorelay\config.yaml
//
// # Environment
//
// SSL_CERT and SSL_KEY name the certificate and private key files.
// PHOTORELAY_MODE, PHOTORELAY_STORAGE_DIR, PHOTORELAY_LOG_FILE and
// PHOTORELAY_PORT override the matching file settings.
//
// # Usage Example
//
//	cfg, err := config.Load("", "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.Port = 9443
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config
