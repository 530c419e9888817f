package handlers

import (
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/fiasco-project/lsp-proxy/internal/protostate"
	"github.com/fiasco-project/lsp-proxy/internal/sourcemap"
)

// PublishDiagnostics splits a clangd publishDiagnostics notification for a
// preprocessed file into one notification per author file it maps back
// into. A zero-length range (the convention clangd and most servers use
// for file-wide diagnostics) is broadcast to every mapped file rather than
// mapped positionally, since there is no single range to translate.
func PublishDiagnostics(state *protostate.GlobalState, params protocol.PublishDiagnosticsParams) []protocol.PublishDiagnosticsParams {
	path := params.URI.Filename()

	files := state.SourceMapping.MapFiles(sourcemap.FromPreprocess, path)
	if len(files) == 0 {
		state.Logger.Warnf("publishDiagnostics: unknown file %s", path)
		return []protocol.PublishDiagnosticsParams{params}
	}

	byFile := make(map[string][]protocol.Diagnostic)
	for _, diagnostic := range params.Diagnostics {
		if diagnostic.Range.Start == diagnostic.Range.End {
			for _, file := range files {
				byFile[file] = append(byFile[file], diagnostic)
			}
			continue
		}
		diagPath := path
		r := diagnostic.Range
		if err := state.SourceMapping.MapRangeInPlace(sourcemap.FromPreprocess, &diagPath, &r); err != nil {
			continue
		}
		diagnostic.Range = r
		byFile[diagPath] = append(byFile[diagPath], diagnostic)
	}

	result := make([]protocol.PublishDiagnosticsParams, 0, len(byFile))
	for file, diagnostics := range byFile {
		result = append(result, protocol.PublishDiagnosticsParams{
			URI:         protocol.DocumentURI(uri.File(file)),
			Diagnostics: diagnostics,
			Version:     params.Version,
		})
	}
	return result
}
