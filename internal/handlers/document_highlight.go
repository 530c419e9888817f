package handlers

import (
	"go.lsp.dev/protocol"

	"github.com/fiasco-project/lsp-proxy/internal/protostate"
	"github.com/fiasco-project/lsp-proxy/internal/sourcemap"
)

// FilterDocumentHighlights maps each highlight's range back to an author
// file and keeps only the ones that land in sourcePath — the document the
// original request named — dropping cross-file results a naive translation
// would otherwise produce.
func FilterDocumentHighlights(state *protostate.GlobalState, sourcePath, mappedPath string, highlights []protocol.DocumentHighlight) []protocol.DocumentHighlight {
	result := make([]protocol.DocumentHighlight, 0, len(highlights))
	for _, highlight := range highlights {
		path := mappedPath
		if err := state.SourceMapping.MapRangeInPlace(sourcemap.FromPreprocess, &path, &highlight.Range); err != nil {
			state.Logger.Warnf("documentHighlight: unmappable range %+v: %v", highlight.Range, err)
			continue
		}
		if path != sourcePath {
			state.Logger.Warnf("documentHighlight: highlight mapped to %s, expected %s", path, sourcePath)
			continue
		}
		result = append(result, highlight)
	}
	return result
}
