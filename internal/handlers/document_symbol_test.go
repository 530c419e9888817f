package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

func TestBuildDocumentSymbolRequestsOneShardPerFile(t *testing.T) {
	state, sourcePath, preprocessedPath := newTestState(t)

	params := protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri.File(sourcePath))},
	}

	shards := BuildDocumentSymbolRequests(state, sourcePath, params)
	require.Len(t, shards, 1)
	assert.Equal(t, preprocessedPath, shards[0].MappedPath)
	assert.Equal(t, preprocessedPath, shards[0].Params.TextDocument.URI.Filename())
}

func TestFilterDocumentSymbolsKeepsMatchAndRecurses(t *testing.T) {
	state, sourcePath, preprocessedPath := newTestState(t)

	child := protocol.DocumentSymbol{
		Name: "child",
		Range: protocol.Range{
			Start: protocol.Position{Line: 8, Character: 0},
			End:   protocol.Position{Line: 8, Character: 1},
		},
		SelectionRange: protocol.Range{
			Start: protocol.Position{Line: 8, Character: 0},
			End:   protocol.Position{Line: 8, Character: 1},
		},
	}
	parent := protocol.DocumentSymbol{
		Name: "parent",
		Range: protocol.Range{
			Start: protocol.Position{Line: 8, Character: 0},
			End:   protocol.Position{Line: 8, Character: 1},
		},
		SelectionRange: protocol.Range{
			Start: protocol.Position{Line: 8, Character: 0},
			End:   protocol.Position{Line: 8, Character: 1},
		},
		Children: []protocol.DocumentSymbol{child},
	}

	out := FilterDocumentSymbols(state, sourcePath, preprocessedPath, []protocol.DocumentSymbol{parent})
	require.Len(t, out, 1)
	assert.Equal(t, uint32(15), out[0].Range.Start.Line)
	require.Len(t, out[0].Children, 1)
	assert.Equal(t, "child", out[0].Children[0].Name)
}

func TestFilterDocumentSymbolsDropsOtherFile(t *testing.T) {
	state, _, preprocessedPath := newTestState(t)

	symbol := protocol.DocumentSymbol{
		Name: "sym",
		Range: protocol.Range{
			Start: protocol.Position{Line: 8, Character: 0},
			End:   protocol.Position{Line: 8, Character: 1},
		},
		SelectionRange: protocol.Range{
			Start: protocol.Position{Line: 8, Character: 0},
			End:   protocol.Position{Line: 8, Character: 1},
		},
	}

	out := FilterDocumentSymbols(state, "/different.cpp", preprocessedPath, []protocol.DocumentSymbol{symbol})
	assert.Empty(t, out)
}

func TestMergeDocumentSymbolsAppends(t *testing.T) {
	acc := []protocol.DocumentSymbol{{Name: "a"}}
	merged := MergeDocumentSymbols(acc, []protocol.DocumentSymbol{{Name: "b"}})
	require.Len(t, merged, 2)
	assert.Equal(t, "b", merged[1].Name)
}
