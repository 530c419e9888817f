package handlers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fiasco-project/lsp-proxy/internal/logging"
	"github.com/fiasco-project/lsp-proxy/internal/protostate"
	"github.com/fiasco-project/lsp-proxy/internal/sourcemap"
)

// newTestState builds a GlobalState whose mapping is loaded from a single
// synthetic preprocessed file test.cc mapping lines 9..28 of a.cpp (the
// None section) into preprocessed lines 2..21, all 0-based (so preprocessed
// line 8 is a.cpp line 15). Every test file in this
// package exercises a handler against this one small, known-shape mapping
// rather than re-deriving the parser's own edge cases (internal/sourcemap
// already covers those).
func newTestState(t *testing.T) (*protostate.GlobalState, string, string) {
	t.Helper()
	dir := t.TempDir()
	autoDir := filepath.Join(dir, "auto")
	require.NoError(t, os.MkdirAll(autoDir, 0o755))

	lines := []string{
		"// preamble",
		`#line 10 "a.cpp"`,
	}
	for i := 0; i < 20; i++ {
		lines = append(lines, "content;")
	}
	lines = append(lines, "#endif // test_cc")

	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	preprocessedPath := filepath.Join(autoDir, "test.cc")
	require.NoError(t, os.WriteFile(preprocessedPath, []byte(content), 0o644))

	logger := logging.New(logging.LevelSilent, os.Stderr)
	mapping, err := sourcemap.Load(dir, logger)
	require.NoError(t, err)

	state := protostate.NewGlobalState(logger, mapping)
	return state, "a.cpp", preprocessedPath
}
