// Photorelay is a TLS WebSocket relay for passing images between clients.
//
// The server runs in one of three modes: inline (images travel as strings
// inside JSON messages and are kept in memory), disk (images travel as binary
// frames and are written to a storage directory) or log (frames are only
// logged). The same binary carries a small client for uploading and
// downloading images and an mDNS scanner for finding relays on the LAN.
//
// Usage:
//
//	photorelay serve [flags]
//	photorelay upload [flags] <image>
//	photorelay download [flags] <id|name>
//	photorelay scan
//
// See 'photorelay <command> --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/photorelay/internal/logging"
	"github.com/muurk/photorelay/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "photorelay",
	Short: "TLS WebSocket image relay",
	Long: `A minimal TLS WebSocket relay for passing images between clients.

Every client is greeted with "Hello" on connect. In inline mode clients send
UPIMG messages and get back a numeric id that any client can pass to DOWNIMG.
In disk mode clients send binary frames which are stored as files; the reply
names the file. In log mode the relay only logs what it receives.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// serve re-initializes from the merged config
		if logLevel == "" {
			return nil
		}
		return logging.Initialize(logLevel)
	},
}

// Global flags
var (
	configPath string
	envFile    string
	logLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to env file with SSL_CERT/SSL_KEY (default: ./.env if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "photorelay %s\n", version.Full())
	},
}
