package handlers

import (
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/fiasco-project/lsp-proxy/internal/protostate"
	"github.com/fiasco-project/lsp-proxy/internal/sourcemap"
)

// TextDocumentPositionParams is the shape shared by hover, completion,
// signatureHelp, definition, declaration, implementation, typeDefinition
// and every other simple position-bearing request — the common case the
// original implementation's handle_source_location! macro covers.
type TextDocumentPositionParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
	Position     protocol.Position               `json:"position"`
}

// TranslatePosition maps a position-bearing request's document/position
// ToPreprocess in place, returning the original author path and the
// preprocessed path it mapped onto for the caller to stash for response
// translation.
func TranslatePosition(state *protostate.GlobalState, params *TextDocumentPositionParams) (sourcePath, mappedPath string) {
	sourcePath = params.TextDocument.URI.Filename()
	mappedPath = sourcePath
	state.SourceMapping.MapPosition(sourcemap.ToPreprocess, &mappedPath, &params.Position)
	params.TextDocument.URI = protocol.DocumentURI(uri.File(mappedPath))
	return sourcePath, mappedPath
}

// TranslateLocation maps a single Location FromPreprocess unconditionally,
// ignoring mapping failures — used for the GotoDefinitionResponse::Scalar
// wire shape (TranslateGotoResult), which per spec.md §9 returns the
// location whether or not it could be translated. Callers that need to
// react to a mapping failure by dropping the item use MapLocations or
// sourcemap.Mapping.MapLocation directly instead.
func TranslateLocation(state *protostate.GlobalState, loc *protocol.Location) {
	_ = state.SourceMapping.MapLocation(sourcemap.FromPreprocess, loc)
}
