package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEditorTransportMode(t *testing.T) {
	assert.Equal(t, "stdio", EditorTransport{}.Mode())
	assert.Equal(t, "listen:127.0.0.1:9000", EditorTransport{Listen: 9000}.Mode())
	assert.Equal(t, "connect:127.0.0.1:9001", EditorTransport{Connect: 9001}.Mode())
}

func TestValidateRequiresBuildDirOrFiascoDir(t *testing.T) {
	cfg := &ProxyConfig{}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBothBuildDirAndFiascoDir(t *testing.T) {
	cfg := &ProxyConfig{BuildDir: "/build", FiascoDir: "/src", FiascoConfig: "/src/config"}
	assert.Error(t, cfg.Validate())
}

func TestValidateFiascoDirRequiresConfig(t *testing.T) {
	cfg := &ProxyConfig{FiascoDir: "/src"}
	assert.Error(t, cfg.Validate())
}

func TestValidateMakeconfRequiresFiascoConfig(t *testing.T) {
	cfg := &ProxyConfig{BuildDir: "/build", Makeconf: "/src/Makeconf.local"}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsListenAndConnectTogether(t *testing.T) {
	cfg := &ProxyConfig{BuildDir: "/build", Transport: EditorTransport{Listen: 1, Connect: 2}}
	assert.Error(t, cfg.Validate())
}

func TestValidateAcceptsBuildDirAlone(t *testing.T) {
	cfg := &ProxyConfig{BuildDir: "/build"}
	assert.NoError(t, cfg.Validate())
}

func TestValidateAcceptsFiascoDirWithConfig(t *testing.T) {
	cfg := &ProxyConfig{FiascoDir: "/src", FiascoConfig: "/src/config"}
	assert.NoError(t, cfg.Validate())
}

func TestParseFlagsRegistersExpectedFlags(t *testing.T) {
	cfg := &ProxyConfig{}
	cmd := ParseFlags(cfg)

	for _, name := range []string{
		"build-dir", "fiasco-dir", "fiasco-config", "makeconf",
		"connect", "listen", "clangd-path", "log-level", "debug-log-addr",
	} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "expected flag %q to be registered", name)
	}
}
