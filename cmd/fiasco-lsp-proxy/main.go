// Command fiasco-lsp-proxy sits between an editor and clangd, translating
// positions between Fiasco's author-facing C++ sources and the
// machine-facing files its custom preprocessor assembles them into.
// Grounded on cmd/dingo-lsp/main.go's stdio wiring and the original
// implementation's main.rs startup sequence.
package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/fiasco-project/lsp-proxy/internal/buildenv"
	"github.com/fiasco-project/lsp-proxy/internal/config"
	"github.com/fiasco-project/lsp-proxy/internal/debuglog"
	"github.com/fiasco-project/lsp-proxy/internal/dispatch"
	"github.com/fiasco-project/lsp-proxy/internal/logging"
	"github.com/fiasco-project/lsp-proxy/internal/protostate"
	"github.com/fiasco-project/lsp-proxy/internal/sourcemap"
	"github.com/fiasco-project/lsp-proxy/internal/transport"
)

func main() {
	cfg := &config.ProxyConfig{}
	cmd := config.ParseFlags(cfg)
	cmd.RunE = func(_ *cobra.Command, _ []string) error {
		run(cfg)
		return nil
	}
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.ProxyConfig) {
	logger := logging.New(cfg.LogLevel, os.Stderr)

	var env *buildenv.BuildEnv
	if cfg.BuildDir != "" {
		env = buildenv.FromDir(cfg.BuildDir)
	} else {
		e, err := buildenv.FromConfig(cfg.FiascoDir, cfg.FiascoConfig, cfg.Makeconf, os.Stderr)
		if err != nil {
			logger.Errorf("preparing build environment: %v", err)
			os.Exit(1)
		}
		env = e
		defer env.Close()
	}

	logger.Infof("generating compile_commands.json in %s", env.BuildDir)
	if err := env.GenCompileCommands(os.Stderr); err != nil {
		logger.Errorf("generating compile commands: %v", err)
		os.Exit(1)
	}

	mapping, err := sourcemap.Load(env.BuildDir, logger)
	if err != nil {
		logger.Errorf("loading source mapping: %v", err)
		os.Exit(1)
	}

	var debugLog *debuglog.Logger
	if cfg.DebugLogAddr != "" {
		debugLog = debuglog.Spawn(cfg.DebugLogAddr, logger)
	}

	logger.Infof("starting clangd")
	server, err := transport.StartServer(cfg.ClangdPath, []string{"--compile-commands-dir", env.BuildDir}, logger)
	if err != nil {
		logger.Errorf("starting clangd: %v", err)
		os.Exit(1)
	}

	editorConn, err := transport.NewEditorConn(cfg.Transport.Mode())
	if err != nil {
		logger.Errorf("connecting to editor: %v", err)
		os.Exit(1)
	}

	state := protostate.NewGlobalState(logger, mapping)
	router := dispatch.New(editorConn, server.Conn, state, debugLog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server.Conn.Go(ctx, router.ServerHandler())
	editorConn.Go(ctx, router.ClientHandler())

	logger.Infof("fiasco-lsp-proxy ready")

	select {
	case <-editorConn.Done():
	case <-server.Conn.Done():
	}

	logger.Infof("shutting down")
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	_ = editorConn.Close()
}
