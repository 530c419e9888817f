package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

func TestPublishDiagnosticsBroadcastsZeroRange(t *testing.T) {
	state, sourcePath, preprocessedPath := newTestState(t)

	zero := protocol.Range{}
	params := protocol.PublishDiagnosticsParams{
		URI: protocol.DocumentURI(uri.File(preprocessedPath)),
		Diagnostics: []protocol.Diagnostic{
			{Range: zero, Message: "file-wide warning"},
		},
	}

	out := PublishDiagnostics(state, params)
	require.Len(t, out, 1)
	assert.Equal(t, sourcePath, out[0].URI.Filename())
	assert.Len(t, out[0].Diagnostics, 1)
}

func TestPublishDiagnosticsMapsRangedDiagnostic(t *testing.T) {
	state, sourcePath, preprocessedPath := newTestState(t)

	r := protocol.Range{
		Start: protocol.Position{Line: 8, Character: 0},
		End:   protocol.Position{Line: 8, Character: 3},
	}
	params := protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentURI(uri.File(preprocessedPath)),
		Diagnostics: []protocol.Diagnostic{{Range: r, Message: "unused variable"}},
		Version:     3,
	}

	out := PublishDiagnostics(state, params)
	require.Len(t, out, 1)
	assert.Equal(t, sourcePath, out[0].URI.Filename())
	assert.Equal(t, uint32(3), out[0].Version)
	require.Len(t, out[0].Diagnostics, 1)
	assert.Equal(t, uint32(15), out[0].Diagnostics[0].Range.Start.Line)
}

func TestPublishDiagnosticsUnknownFileForwardsUnchanged(t *testing.T) {
	state, _, _ := newTestState(t)
	params := protocol.PublishDiagnosticsParams{URI: protocol.DocumentURI(uri.File("/nowhere.cc"))}
	out := PublishDiagnostics(state, params)
	require.Len(t, out, 1)
	assert.Equal(t, params, out[0])
}
