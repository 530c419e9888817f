package handlers

import (
	"go.lsp.dev/protocol"

	"github.com/fiasco-project/lsp-proxy/internal/protostate"
	"github.com/fiasco-project/lsp-proxy/internal/sourcemap"
)

// TranslateCodeActionRequest maps the request's document URI, range, and
// embedded diagnostics ToPreprocess, dropping diagnostics whose range maps
// outside the action's own (now-translated) document. It returns the
// mapped path alongside the mutated params so the caller can stash it for
// response translation.
func TranslateCodeActionRequest(state *protostate.GlobalState, sourcePath string, params *protocol.CodeActionParams) (mappedPath string, ok bool) {
	if err := state.SourceMapping.MapRangeURI(sourcemap.ToPreprocess, &params.TextDocument.URI, &params.Range); err != nil {
		state.Logger.Warnf("codeAction: unmappable range %+v: %v", params.Range, err)
		return "", false
	}
	mappedPath = params.TextDocument.URI.Filename()

	diagnostics := params.Context.Diagnostics[:0]
	for _, diagnostic := range params.Context.Diagnostics {
		path := sourcePath
		if err := state.SourceMapping.MapRangeInPlace(sourcemap.ToPreprocess, &path, &diagnostic.Range); err != nil {
			continue
		}
		if path != mappedPath {
			continue
		}
		diagnostics = append(diagnostics, diagnostic)
	}
	params.Context.Diagnostics = diagnostics
	return mappedPath, true
}

// TranslateCodeActionResponse maps every action's workspace-edit changes
// FromPreprocess, re-keying each edit under the author file it maps to and
// dropping edits that cannot be mapped, and maps its embedded diagnostics
// the same way, keeping only those that land in sourcePath.
func TranslateCodeActionResponse(state *protostate.GlobalState, sourcePath, mappedPath string, actions []protocol.CodeAction) []protocol.CodeAction {
	for i := range actions {
		action := &actions[i]
		if action.Edit != nil && len(action.Edit.Changes) > 0 {
			mapped := make(map[protocol.DocumentURI][]protocol.TextEdit)
			for docURI, edits := range action.Edit.Changes {
				for _, edit := range edits {
					editURI := docURI
					if err := state.SourceMapping.MapRangeURI(sourcemap.FromPreprocess, &editURI, &edit.Range); err != nil {
						continue
					}
					mapped[editURI] = append(mapped[editURI], edit)
				}
			}
			action.Edit.Changes = mapped
		}

		if len(action.Diagnostics) > 0 {
			diagnostics := action.Diagnostics[:0]
			for _, diagnostic := range action.Diagnostics {
				path := mappedPath
				if err := state.SourceMapping.MapRangeInPlace(sourcemap.FromPreprocess, &path, &diagnostic.Range); err != nil {
					continue
				}
				if path != sourcePath {
					continue
				}
				diagnostics = append(diagnostics, diagnostic)
			}
			action.Diagnostics = diagnostics
		}
	}
	return actions
}
