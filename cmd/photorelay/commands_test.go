package main

import (
	"bytes"
	"context"
	"encoding/pem"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/muurk/photorelay/internal/config"
	"github.com/muurk/photorelay/internal/imagestore"
	"github.com/muurk/photorelay/internal/protocol"
	"github.com/muurk/photorelay/internal/server"
)

func TestApplyServeFlags(t *testing.T) {
	cfg := config.Default()
	cfg.StorageDir = "/from/config"

	if err := serveCmd.Flags().Parse([]string{"--port", "9443", "--mode", "disk", "--explicit-errors"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	applyServeFlags(serveCmd, cfg)

	if cfg.Port != 9443 {
		t.Errorf("Port = %d, want 9443", cfg.Port)
	}
	if cfg.Mode != "disk" {
		t.Errorf("Mode = %q, want disk", cfg.Mode)
	}
	if !cfg.ExplicitErrors {
		t.Error("ExplicitErrors should be set")
	}
	if cfg.StorageDir != "/from/config" {
		t.Errorf("StorageDir = %q, unset flags must not override config", cfg.StorageDir)
	}
	if cfg.Host != config.Default().Host {
		t.Errorf("Host = %q, unset flags must not override config", cfg.Host)
	}
}

func TestParseImageID(t *testing.T) {
	if id, err := parseImageID("12"); err != nil || id != 12 {
		t.Errorf("parseImageID(12) = %d, %v", id, err)
	}
	for _, bad := range []string{"", "-1", "abc", "photo.png"} {
		if _, err := parseImageID(bad); err == nil {
			t.Errorf("parseImageID(%q) should fail", bad)
		}
	}
}

func TestStartProfile(t *testing.T) {
	stop, err := startProfile("", t.TempDir())
	if err != nil || stop != nil {
		t.Errorf("startProfile(\"\") = %v, %v, want nil, nil", stop != nil, err)
	}
	if _, err := startProfile("trace-everything", t.TempDir()); err == nil {
		t.Error("startProfile() should reject unknown profile kinds")
	}
}

func TestClientTLSConfig(t *testing.T) {
	cfg, err := clientTLSConfig("", false)
	if err != nil || cfg != nil {
		t.Errorf("clientTLSConfig() = %v, %v, want system roots", cfg, err)
	}

	cfg, err = clientTLSConfig("", true)
	if err != nil || cfg == nil || !cfg.InsecureSkipVerify {
		t.Errorf("clientTLSConfig(insecure) = %+v, %v", cfg, err)
	}

	if _, err := clientTLSConfig(filepath.Join(t.TempDir(), "missing.pem"), false); err == nil {
		t.Error("clientTLSConfig() should fail for a missing CA file")
	}

	empty := filepath.Join(t.TempDir(), "empty.pem")
	if err := os.WriteFile(empty, []byte("not a certificate"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := clientTLSConfig(empty, false); err == nil {
		t.Error("clientTLSConfig() should fail when the file holds no certificates")
	}
}

func TestUploadDownloadCommands(t *testing.T) {
	cfg := config.Default()
	srv := server.NewWithDispatcher(cfg, nil, protocol.NewInlineDispatcher(imagestore.NewMemoryStore()))
	ts := httptest.NewUnstartedServer(srv.Handler())
	ts.StartTLS()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		ts.Close()
	})

	ca := filepath.Join(t.TempDir(), "ca.pem")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: ts.Certificate().Raw})
	if err := os.WriteFile(ca, certPEM, 0600); err != nil {
		t.Fatal(err)
	}
	url := "wss://" + ts.Listener.Addr().String() + "/"

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetErr(&out)
		rootCmd.SetArgs(args)
		if err := rootCmd.Execute(); err != nil {
			t.Fatalf("%v: %v\n%s", args, err, out.String())
		}
		return out.String()
	}

	out := run("upload", "--url", url, "--ca", ca, "--binary=false", "image-data")
	if !strings.Contains(out, "Image uploaded") || !strings.Contains(out, "ID:") {
		t.Errorf("upload output = %q, want the assigned id", out)
	}

	out = run("download", "--url", url, "--ca", ca, "--binary=false", "0")
	if strings.TrimSpace(out) != "image-data" {
		t.Errorf("download output = %q, want image-data", out)
	}
}

func TestMaxMessageBytesHelpMatchesDefault(t *testing.T) {
	flag := serveCmd.Flags().Lookup("max-message-bytes")
	if flag == nil {
		t.Fatal("serve has no --max-message-bytes flag")
	}
	if server.DefaultMaxMessageBytes != 16<<20 || !strings.Contains(flag.Usage, "0 = default 16 MiB") {
		t.Errorf("usage %q does not describe the %d byte default", flag.Usage, server.DefaultMaxMessageBytes)
	}
}
