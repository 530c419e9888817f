package handlers

import (
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/fiasco-project/lsp-proxy/internal/protostate"
	"github.com/fiasco-project/lsp-proxy/internal/sourcemap"
)

// InlayHintShard is one per-file request an inlayHint request fans out
// into; the requested range is widened to each shard's whole file since
// inlay hints don't carry enough context to ask clangd for a partial
// preprocessed range that corresponds to an arbitrary author range.
type InlayHintShard struct {
	Params     protocol.InlayHintParams
	MappedPath string
}

// BuildInlayHintRequests splits an inlayHint request across every
// preprocessed file the requested range overlaps.
func BuildInlayHintRequests(state *protostate.GlobalState, sourcePath string, params protocol.InlayHintParams) []InlayHintShard {
	if len(state.SourceMapping.MapFiles(sourcemap.ToPreprocess, sourcePath)) == 0 {
		state.Logger.Warnf("inlayHint: unknown file %s", sourcePath)
		return []InlayHintShard{{Params: params, MappedPath: sourcePath}}
	}

	files := state.SourceMapping.MapFileRangeURI(sourcemap.ToPreprocess, params.TextDocument.URI, params.Range)
	if len(files) == 0 {
		state.Logger.Warnf("inlayHint: unmappable range %+v", params.Range)
		return []InlayHintShard{{Params: params, MappedPath: sourcePath}}
	}

	shards := make([]InlayHintShard, 0, len(files))
	for file := range files {
		shardParams := params
		shardParams.TextDocument.URI = protocol.DocumentURI(uri.File(file))
		length, _ := state.SourceMapping.FileLength(sourcemap.FromPreprocess, file)
		shardParams.Range = protocol.Range{
			Start: protocol.Position{Line: 0, Character: 0},
			End:   protocol.Position{Line: length, Character: 0},
		}
		shards = append(shards, InlayHintShard{Params: shardParams, MappedPath: file})
	}
	return shards
}

// FilterInlayHints maps each hint's position back to an author file and
// keeps only the ones landing in sourcePath.
func FilterInlayHints(state *protostate.GlobalState, sourcePath, mappedPath string, hints []protocol.InlayHint) []protocol.InlayHint {
	result := make([]protocol.InlayHint, 0, len(hints))
	for _, hint := range hints {
		path := mappedPath
		state.SourceMapping.MapPosition(sourcemap.FromPreprocess, &path, &hint.Position)
		if path != sourcePath {
			state.Logger.Warnf("inlayHint: hint mapped to %s, expected %s", path, sourcePath)
			continue
		}
		result = append(result, hint)
	}
	return result
}

// MergeInlayHints is the JoinSlot accumulator for the inlayHint fan-in.
func MergeInlayHints(acc, item []protocol.InlayHint) []protocol.InlayHint {
	return append(acc, item...)
}
