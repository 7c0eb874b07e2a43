package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"screencap/internal/config"
	"screencap/internal/daemon"
	"screencap/internal/ipc"
	"screencap/internal/library"
	"screencap/internal/logging"
	"screencap/internal/session/sessiontest"
	"screencap/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *library.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...sessiontest.SessionOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenLibrary(t, cfg)
	logger := logging.NewNop()
	d, err := daemon.New(cfg, logger, daemon.Components{
		Session: sessiontest.NewSession(t, opts...),
		Store:   store,
	}, filepath.Join(cfg.Paths.LogDir, "screencap-test.log"))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		cancel()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		server:     srv,
		configPath: configPath,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nrecordings_dir = %q\nstaging_dir = %q\nstate_dir = %q\nlog_dir = %q\napi_bind = %q\n\n[transcode]\nenabled = false\n",
		cfg.Paths.RecordingsDir,
		cfg.Paths.StagingDir,
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
