package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/photorelay/internal/client"
	"github.com/muurk/photorelay/internal/config"
	"github.com/muurk/photorelay/internal/discovery"
	"github.com/muurk/photorelay/internal/logging"
	"github.com/muurk/photorelay/internal/server"
	"github.com/muurk/photorelay/internal/ui"
	"github.com/muurk/photorelay/internal/version"
)

// Serve command and flags
var (
	host            string
	port            int
	certPath        string
	keyPath         string
	generateCert    bool
	mode            string
	storageDir      string
	imageExt        string
	logFile         string
	explicitErrors  bool
	maxMessageBytes int64
	advertise       bool
	instanceName    string
	profileMode     string
	profileDir      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay server",
	Long: `Start the TLS WebSocket relay.

Settings come from the config file, then the env file (SSL_CERT, SSL_KEY),
then the process environment, then the flags below. Flags only override the
settings they are given for.

A certificate and key are required unless --generate-cert is set, in which
case a self-signed certificate is created in memory.`,
	Example: `  # Inline mode with the key pair named in .env
  photorelay serve

  # Disk mode writing jpg files under ./images
  photorelay serve --mode disk --storage-dir ./images --image-ext jpg

  # Throwaway certificate, listen on all interfaces, advertise over mDNS
  photorelay serve --generate-cert --host 0.0.0.0 --advertise`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&host, "host", "", "Interface to listen on")
	f.IntVar(&port, "port", 0, "Port to listen on")
	f.StringVar(&certPath, "cert", "", "Path to TLS certificate file")
	f.StringVar(&keyPath, "key", "", "Path to TLS private key file")
	f.BoolVar(&generateCert, "generate-cert", false, "Use an in-memory self-signed certificate")
	f.StringVar(&mode, "mode", "", "Relay mode (inline, disk, log)")
	f.StringVar(&storageDir, "storage-dir", "", "Directory for stored images in disk mode")
	f.StringVar(&imageExt, "image-ext", "", "File extension for stored images in disk mode")
	f.StringVar(&logFile, "log-file", "", "Also write logs to this file")
	f.BoolVar(&explicitErrors, "explicit-errors", false, "Reply with ERROR messages instead of staying silent")
	f.Int64Var(&maxMessageBytes, "max-message-bytes", 0, "Largest accepted frame in bytes (0 = default 16 MiB)")
	f.BoolVar(&advertise, "advertise", false, "Advertise the relay over mDNS")
	f.StringVar(&instanceName, "instance-name", "", "mDNS instance name (default: photorelay on <hostname>)")
	f.StringVar(&profileMode, "profile", "", "Write a cpu or mem profile while serving")
	f.StringVar(&profileDir, "profile-dir", ".", "Directory for profile output")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}
	applyServeFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	if stop, err := startProfile(profileMode, profileDir); err != nil {
		return err
	} else if stop != nil {
		defer stop()
	}

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	params := []ui.Field{
		{Key: "Address", Value: cfg.Addr()},
		{Key: "Mode", Value: cfg.Mode},
	}
	if cfg.Mode == "disk" {
		params = append(params, ui.Field{Key: "Storage", Value: cfg.StorageDir})
	}
	if cfg.GenerateCert {
		params = append(params, ui.Field{Key: "Certificate", Value: "self-signed"})
	} else {
		params = append(params, ui.Field{Key: "Certificate", Value: cfg.CertPath})
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.NewHeader("Photorelay Server", "photorelay serve", params...).Render())

	if cfg.Advertise {
		adv, err := discovery.Advertise(discovery.Advertisement{
			Instance: cfg.InstanceName,
			Port:     cfg.Port,
			Mode:     cfg.Mode,
			Version:  version.Version,
		})
		if err != nil {
			logging.Warn("mDNS advertising disabled", zap.Error(err))
		} else {
			defer adv.Shutdown()
		}
	}

	return srv.Start()
}

// applyServeFlags overlays the flags the user actually set onto cfg
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = host
	}
	if flags.Changed("port") {
		cfg.Port = port
	}
	if flags.Changed("cert") {
		cfg.CertPath = certPath
	}
	if flags.Changed("key") {
		cfg.KeyPath = keyPath
	}
	if flags.Changed("generate-cert") {
		cfg.GenerateCert = generateCert
	}
	if flags.Changed("mode") {
		cfg.Mode = mode
	}
	if flags.Changed("storage-dir") {
		cfg.StorageDir = storageDir
	}
	if flags.Changed("image-ext") {
		cfg.ImageExt = imageExt
	}
	if flags.Changed("log-file") {
		cfg.LogFile = logFile
	}
	if flags.Changed("explicit-errors") {
		cfg.ExplicitErrors = explicitErrors
	}
	if flags.Changed("max-message-bytes") {
		cfg.MaxMessageBytes = maxMessageBytes
	}
	if flags.Changed("advertise") {
		cfg.Advertise = advertise
	}
	if flags.Changed("instance-name") {
		cfg.InstanceName = instanceName
	}
	if cmd.Root().PersistentFlags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
}

// startProfile starts a pkg/profile session. It returns a nil stop function
// when profiling is off.
func startProfile(kind, dir string) (func(), error) {
	var opt func(*profile.Profile)
	switch kind {
	case "":
		return nil, nil
	case "cpu":
		opt = profile.CPUProfile
	case "mem":
		opt = profile.MemProfile
	default:
		return nil, fmt.Errorf("unknown profile %q (want cpu or mem)", kind)
	}
	p := profile.Start(opt, profile.ProfilePath(dir), profile.NoShutdownHook, profile.Quiet)
	return p.Stop, nil
}

// Client flags shared by upload and download
var (
	relayURL      string
	relayInstance string
	caPath        string
	insecure      bool
	binary        bool
	timeout       time.Duration
)

func addClientFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&relayURL, "url", "", "Relay URL (default: wss://<host>:<port>/ from config)")
	f.StringVar(&relayInstance, "instance", "", "Find the relay by mDNS instance name instead of --url")
	f.StringVar(&caPath, "ca", "", "PEM certificate to trust (e.g. the relay's self-signed certificate)")
	f.BoolVarP(&insecure, "insecure", "k", false, "Skip TLS certificate verification")
	f.BoolVar(&binary, "binary", false, "Use binary frames (disk mode relays)")
	f.DurationVar(&timeout, "timeout", client.DefaultTimeout, "Time to wait for the relay")
}

var uploadCmd = &cobra.Command{
	Use:   "upload <image>",
	Short: "Upload an image to a relay",
	Long: `Upload an image to a relay.

In inline mode the argument is sent as the image string and the relay replies
with a numeric id. With --binary the argument is a file path whose contents
are sent as a binary frame and the relay replies with the stored file name.`,
	Example: `  photorelay upload --url wss://relay.local:8888/ "data:image/png;base64,..."
  photorelay upload --binary --ca cert.pem ./photo.png`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

var downloadCmd = &cobra.Command{
	Use:   "download <id|name>",
	Short: "Download an image from a relay",
	Long: `Download an image from a relay.

In inline mode the argument is the id returned by upload and the image string
is written to stdout or --output. With --binary the argument is a stored file
name and the raw bytes are written to --output (default: the same name).`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

var outputPath string

func init() {
	addClientFlags(uploadCmd)
	addClientFlags(downloadCmd)
	downloadCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the image to this file")
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	c, url, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	var result *ui.Result
	if binary {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		name, err := c.UploadBinary(ctx, data)
		if err != nil {
			return uploadFailed(cmd, err)
		}
		result = ui.NewSuccessResult("Image uploaded",
			ui.Field{Key: "Relay", Value: url},
			ui.Field{Key: "Name", Value: name},
			ui.Field{Key: "Size", Value: fmt.Sprintf("%d bytes", len(data))},
		).AddHint("photorelay download --binary " + name)
	} else {
		id, err := c.UploadInline(ctx, args[0])
		if err != nil {
			return uploadFailed(cmd, err)
		}
		result = ui.NewSuccessResult("Image uploaded",
			ui.Field{Key: "Relay", Value: url},
			ui.Field{Key: "ID", Value: strconv.Itoa(id)},
		).AddHint(fmt.Sprintf("photorelay download %d", id))
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Render())
	return nil
}

func uploadFailed(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), ui.RenderFailure("Upload failed", err,
		"Check that the relay runs in the matching mode (--binary for disk mode)"))
	return err
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	ref := args[0]
	var id int
	if !binary {
		n, err := parseImageID(ref)
		if err != nil {
			return err
		}
		id = n
	}

	c, _, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if binary {
		data, err := c.DownloadFile(ctx, ref)
		if err != nil {
			return downloadFailed(cmd, ref, err)
		}
		out := outputPath
		if out == "" {
			out = filepath.Base(ref)
		}
		if err := os.WriteFile(out, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.RenderSuccess("Image downloaded",
			ui.Field{Key: "Name", Value: ref},
			ui.Field{Key: "Saved to", Value: out},
			ui.Field{Key: "Size", Value: fmt.Sprintf("%d bytes", len(data))},
		))
		return nil
	}

	image, err := c.DownloadInline(ctx, id)
	if err != nil {
		return downloadFailed(cmd, ref, err)
	}
	if outputPath == "" {
		fmt.Fprintln(cmd.OutOrStdout(), image)
		return nil
	}
	if err := os.WriteFile(outputPath, []byte(image), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.RenderSuccess("Image downloaded",
		ui.Field{Key: "ID", Value: ref},
		ui.Field{Key: "Saved to", Value: outputPath},
	))
	return nil
}

func downloadFailed(cmd *cobra.Command, ref string, err error) error {
	var hints []string
	var serverErr *client.ServerError
	if !errors.As(err, &serverErr) {
		hints = append(hints, "The relay stays silent for unknown images unless it runs with --explicit-errors")
	}
	fmt.Fprintln(cmd.ErrOrStderr(), ui.RenderFailure("Download of "+ref+" failed", err, hints...))
	return err
}

// parseImageID parses an inline image id
func parseImageID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid image id %q (use --binary for file names)", s)
	}
	return id, nil
}

// connect resolves the relay URL and dials it
func connect(ctx context.Context) (*client.Client, string, error) {
	url, err := resolveURL(ctx)
	if err != nil {
		return nil, "", err
	}

	tlsConfig, err := clientTLSConfig(caPath, insecure)
	if err != nil {
		return nil, "", err
	}

	c, err := client.Dial(ctx, url, tlsConfig)
	if err != nil {
		return nil, "", err
	}
	return c, url, nil
}

func resolveURL(ctx context.Context) (string, error) {
	if relayURL != "" {
		return relayURL, nil
	}

	if relayInstance != "" {
		scanner := discovery.NewScanner()
		relay, err := scanner.WaitForRelay(ctx, relayInstance)
		if err != nil {
			return "", err
		}
		return relay.URL(), nil
	}

	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return "", err
	}
	return "wss://" + cfg.Addr() + "/", nil
}

// clientTLSConfig builds the dialer TLS settings. A nil config means the
// system roots.
func clientTLSConfig(caFile string, skipVerify bool) (*tls.Config, error) {
	if caFile == "" && !skipVerify {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: skipVerify, //nolint:gosec // opt-in via --insecure
	}

	if caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", caFile)
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}

var scanTimeout time.Duration

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find relays on the local network",
	Long: `Browse for relays advertised over mDNS (_photorelay._tcp).

Relays are only visible when started with --advertise.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", discovery.DefaultScanTimeout, "How long to listen for announcements")
}

func runScan(cmd *cobra.Command, args []string) error {
	relays, err := discovery.ScanForRelays(cmd.Context(), scanTimeout)
	if err != nil {
		return err
	}

	if len(relays) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), ui.NewWarningResult("No relays found",
			ui.Field{Key: "Service", Value: discovery.ServiceType},
			ui.Field{Key: "Waited", Value: scanTimeout.String()},
		).AddHint("Start a relay with: photorelay serve --advertise").Render())
		return nil
	}

	table := ui.NewTable("INSTANCE", "URL", "MODE", "VERSION")
	for _, relay := range relays {
		table.AddRow(relay.Instance, relay.URL(), relay.Mode(), relay.GetMetadata(discovery.TXTVersion))
	}
	fmt.Fprintln(cmd.OutOrStdout(), table.Render())
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
}

var forceInit bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default settings",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		p, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
	}

	if err := config.Default().Save(path); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.RenderSuccess("Config file written", ui.Field{Key: "Path", Value: path}))
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}

	table := ui.NewTable("SETTING", "VALUE")
	table.AddRow("address", cfg.Addr())
	table.AddRow("mode", cfg.Mode)
	table.AddRow("cert_path", cfg.CertPath)
	table.AddRow("key_path", cfg.KeyPath)
	table.AddRow("generate_cert", strconv.FormatBool(cfg.GenerateCert))
	table.AddRow("storage_dir", cfg.StorageDir)
	table.AddRow("image_ext", cfg.ImageExt)
	table.AddRow("log_level", cfg.LogLevel)
	table.AddRow("log_file", cfg.LogFile)
	table.AddRow("explicit_errors", strconv.FormatBool(cfg.ExplicitErrors))
	table.AddRow("max_message_bytes", strconv.FormatInt(cfg.MaxMessageBytes, 10))
	table.AddRow("advertise", strconv.FormatBool(cfg.Advertise))
	fmt.Fprintln(cmd.OutOrStdout(), table.Render())
	return nil
}
