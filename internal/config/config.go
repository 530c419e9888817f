// Package config parses the proxy's command-line flags into a
// ProxyConfig, grounded on the original implementation's clap Cli struct
// (build_dir/fiasco_dir/fiasco_config/makeconf/connect/listen) and on
// cmd/dingo's cobra command style for how flags are declared and wired.
package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fiasco-project/lsp-proxy/internal/logging"
)

// EditorTransport selects how the proxy talks to the editor: stdio (the
// default), listening on a TCP port, or dialing out to one.
type EditorTransport struct {
	Listen  uint16
	Connect uint16
}

// Mode renders the transport selection the form internal/transport's
// NewEditorConn expects.
func (t EditorTransport) Mode() string {
	switch {
	case t.Connect != 0:
		return fmt.Sprintf("connect:127.0.0.1:%d", t.Connect)
	case t.Listen != 0:
		return fmt.Sprintf("listen:127.0.0.1:%d", t.Listen)
	default:
		return "stdio"
	}
}

// ProxyConfig is every flag-derived setting main needs to start the
// proxy: which build directory to load mappings from (or how to produce
// one), how to reach the editor, and how to run clangd.
type ProxyConfig struct {
	BuildDir      string
	FiascoDir     string
	FiascoConfig  string
	Makeconf      string
	Transport     EditorTransport
	ClangdPath    string
	ClangdArgs    []string
	LogLevel      logging.Level
	DebugLogAddr  string
}

// Validate enforces the original's ArgGroup constraint: exactly one of
// build-dir or fiasco-dir (with fiasco-config) names the source of a
// build environment.
func (c *ProxyConfig) Validate() error {
	if c.BuildDir == "" && c.FiascoDir == "" {
		return fmt.Errorf("one of --build-dir or --fiasco-dir is required")
	}
	if c.BuildDir != "" && c.FiascoDir != "" {
		return fmt.Errorf("--build-dir and --fiasco-dir are mutually exclusive")
	}
	if c.FiascoDir != "" && c.FiascoConfig == "" {
		return fmt.Errorf("--fiasco-dir requires --fiasco-config")
	}
	if c.Makeconf != "" && c.FiascoConfig == "" {
		return fmt.Errorf("--makeconf requires --fiasco-config")
	}
	if c.Transport.Listen != 0 && c.Transport.Connect != 0 {
		return fmt.Errorf("--listen and --connect are mutually exclusive")
	}
	return nil
}

// ParseFlags builds the root cobra command, registers every proxy flag
// against cfg, and returns the command for the caller to Execute.
func ParseFlags(cfg *ProxyConfig) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:          "fiasco-lsp-proxy",
		Short:        "Transparent LSP proxy between an editor and clangd for Fiasco's preprocessed sources",
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			cfg.LogLevel = logging.ParseLevel(logLevel)
			return cfg.Validate()
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.BuildDir, "build-dir", "", "use an already-configured Fiasco build directory")
	flags.StringVar(&cfg.FiascoDir, "fiasco-dir", "", "Fiasco source tree to build a fresh build directory from")
	flags.StringVar(&cfg.FiascoConfig, "fiasco-config", "", "kernel config file to seed the build directory with")
	flags.StringVar(&cfg.Makeconf, "makeconf", "", "optional Makeconf.local to copy into the build directory")
	flags.Uint16Var(&cfg.Transport.Connect, "connect", 0, "connect to the editor on localhost:<port> instead of stdio")
	flags.Uint16Var(&cfg.Transport.Listen, "listen", 0, "listen for the editor on localhost:<port> instead of stdio")
	flags.StringVar(&cfg.ClangdPath, "clangd-path", "clangd", "path to the clangd binary to run")
	flags.StringVar(&logLevel, "log-level", "info", "log verbosity: debug, info, warn, error, silent")
	flags.StringVar(&cfg.DebugLogAddr, "debug-log-addr", "127.0.0.1:9981", "address the debug log websocket sink listens on")

	return cmd
}
