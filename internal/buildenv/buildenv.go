// Package buildenv prepares the Fiasco build directory the proxy reads
// its source mapping and compilation database from, grounded directly on
// the original implementation's build_env.rs.
package buildenv

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// BuildEnv is a configured Fiasco build directory: either one the caller
// already has, or one freshly generated into a temporary directory from a
// source tree and kernel config.
type BuildEnv struct {
	BuildDir  string
	SourceDir string
	Config    string

	tempDir string // non-empty if BuildDir lives under a directory we own and must clean up
}

func newMakeCmd(dir string, args ...string) *exec.Cmd {
	parallel := fmt.Sprintf("-j%d", runtime.NumCPU())
	cmd := exec.Command("make", append([]string{parallel}, args...)...)
	cmd.Dir = dir
	return cmd
}

func runMake(cmd *exec.Cmd, stderr io.Writer, what string) error {
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

// FromDir wraps an already-configured build directory (<dir>/source and
// <dir>/config must already exist).
func FromDir(buildDir string) *BuildEnv {
	return &BuildEnv{
		BuildDir:  buildDir,
		SourceDir: filepath.Join(buildDir, "source"),
		Config:    filepath.Join(buildDir, "config"),
	}
}

// FromConfig initializes a fresh build directory in a temporary location:
// `make B=<dir>` from sourceDir, copy config in as globalconfig.out
// (and makeconf, if given, as Makeconf.local), then `make olddefconfig`
// to apply it.
func FromConfig(sourceDir, config, makeconf string, stderr io.Writer) (*BuildEnv, error) {
	tempDir, err := os.MkdirTemp("", "fiasco-lsp-proxy-")
	if err != nil {
		return nil, fmt.Errorf("creating temporary build dir: %w", err)
	}
	// The B= option requires a directory that does not yet exist.
	buildDir := filepath.Join(tempDir, "build")

	if err := runMake(newMakeCmd(sourceDir, "B="+buildDir), stderr, "initializing build directory"); err != nil {
		os.RemoveAll(tempDir)
		return nil, err
	}

	if err := copyFile(config, filepath.Join(buildDir, "globalconfig.out")); err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("copying config: %w", err)
	}
	if makeconf != "" {
		if err := copyFile(makeconf, filepath.Join(buildDir, "Makeconf.local")); err != nil {
			os.RemoveAll(tempDir)
			return nil, fmt.Errorf("copying makeconf: %w", err)
		}
	}

	if err := runMake(newMakeCmd(buildDir, "olddefconfig"), stderr, "applying config"); err != nil {
		os.RemoveAll(tempDir)
		return nil, err
	}

	return &BuildEnv{
		BuildDir:  buildDir,
		SourceDir: sourceDir,
		Config:    config,
		tempDir:   tempDir,
	}, nil
}

// GenCompileCommands runs the targets that produce the module dependency
// graph and compile_commands.json clangd needs.
func (b *BuildEnv) GenCompileCommands(stderr io.Writer) error {
	return runMake(newMakeCmd(b.BuildDir, ".Modules.deps", "compile_commands.json"), stderr, "generating compile commands")
}

// Close removes the temporary directory FromConfig created, if any.
func (b *BuildEnv) Close() error {
	if b.tempDir == "" {
		return nil
	}
	return os.RemoveAll(b.tempDir)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
