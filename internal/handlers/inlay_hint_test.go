package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

func TestBuildInlayHintRequestsWidensToWholeFile(t *testing.T) {
	state, sourcePath, preprocessedPath := newTestState(t)

	params := protocol.InlayHintParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri.File(sourcePath))},
		Range: protocol.Range{
			Start: protocol.Position{Line: 9, Character: 0},
			End:   protocol.Position{Line: 28, Character: 0},
		},
	}

	shards := BuildInlayHintRequests(state, sourcePath, params)
	require.Len(t, shards, 1)
	assert.Equal(t, preprocessedPath, shards[0].MappedPath)
	assert.Equal(t, uint32(0), shards[0].Params.Range.Start.Line)
	assert.Equal(t, uint32(21), shards[0].Params.Range.End.Line)
}

func TestFilterInlayHintsKeepsSameFile(t *testing.T) {
	state, sourcePath, preprocessedPath := newTestState(t)

	hints := []protocol.InlayHint{{Position: protocol.Position{Line: 8, Character: 0}}}

	out := FilterInlayHints(state, sourcePath, preprocessedPath, hints)
	require.Len(t, out, 1)
	assert.Equal(t, uint32(15), out[0].Position.Line)
}

func TestFilterInlayHintsDropsOtherFile(t *testing.T) {
	state, _, preprocessedPath := newTestState(t)

	hints := []protocol.InlayHint{{Position: protocol.Position{Line: 8, Character: 0}}}
	out := FilterInlayHints(state, "/different.cpp", preprocessedPath, hints)
	assert.Empty(t, out)
}

func TestMergeInlayHintsAppends(t *testing.T) {
	acc := []protocol.InlayHint{{Position: protocol.Position{Line: 1}}}
	merged := MergeInlayHints(acc, []protocol.InlayHint{{Position: protocol.Position{Line: 2}}})
	assert.Len(t, merged, 2)
}
