package handlers

import (
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/fiasco-project/lsp-proxy/internal/protostate"
	"github.com/fiasco-project/lsp-proxy/internal/sourcemap"
)

// DocumentSymbolShard is one of the N per-file requests a single editor
// documentSymbol request fans out into, carrying the translated params plus
// the bookkeeping FilterDocumentSymbols needs once its response arrives.
type DocumentSymbolShard struct {
	Params     protocol.DocumentSymbolParams
	MappedPath string
}

// BuildDocumentSymbolRequests splits a documentSymbol request into one
// shard per preprocessed file the requested document maps into. clangd
// only ever sees whole preprocessed files, never author files, so a
// symbol request against an author file that maps into several of them
// has to become several requests whose results get merged back together.
func BuildDocumentSymbolRequests(state *protostate.GlobalState, sourcePath string, params protocol.DocumentSymbolParams) []DocumentSymbolShard {
	files := state.SourceMapping.MapFiles(sourcemap.ToPreprocess, sourcePath)
	if len(files) == 0 {
		state.Logger.Warnf("documentSymbol: unknown file %s", sourcePath)
		return []DocumentSymbolShard{{Params: params, MappedPath: sourcePath}}
	}

	shards := make([]DocumentSymbolShard, 0, len(files))
	for _, file := range files {
		shardParams := params
		shardParams.TextDocument.URI = protocol.DocumentURI(uri.File(file))
		shards = append(shards, DocumentSymbolShard{Params: shardParams, MappedPath: file})
	}
	return shards
}

// FilterDocumentSymbols maps every symbol's range/selectionRange back to an
// author file (recursing into children) and keeps only the ones landing in
// sourcePath, the document the original request named.
func FilterDocumentSymbols(state *protostate.GlobalState, sourcePath, mappedPath string, symbols []protocol.DocumentSymbol) []protocol.DocumentSymbol {
	result := make([]protocol.DocumentSymbol, 0, len(symbols))
	for _, symbol := range symbols {
		rangePath := mappedPath
		if err := state.SourceMapping.MapRangeInPlace(sourcemap.FromPreprocess, &rangePath, &symbol.Range); err != nil {
			state.Logger.Warnf("documentSymbol: drop %s, unmappable range", symbol.Name)
			continue
		}
		if rangePath != sourcePath {
			continue
		}

		selPath := mappedPath
		if err := state.SourceMapping.MapRangeInPlace(sourcemap.FromPreprocess, &selPath, &symbol.SelectionRange); err != nil || selPath != rangePath {
			state.Logger.Warnf("documentSymbol: drop %s, selection range mapped elsewhere", symbol.Name)
			continue
		}

		if len(symbol.Children) > 0 {
			symbol.Children = FilterDocumentSymbols(state, sourcePath, mappedPath, symbol.Children)
		}
		result = append(result, symbol)
	}
	return result
}

// MergeDocumentSymbols is the JoinSlot accumulator function for the
// documentSymbol fan-in: each shard's already-filtered symbols are simply
// concatenated onto the running result.
func MergeDocumentSymbols(acc, item []protocol.DocumentSymbol) []protocol.DocumentSymbol {
	return append(acc, item...)
}
