// Package handlers implements the bespoke per-method request/response
// translations the generic forward in internal/dispatch cannot express:
// the open-file fan-out on didOpen/didChange/didClose, the diagnostics
// fan-out on publishDiagnostics, and the position/range translation on
// goto-family, document-symbol, inlay-hint, document-highlight and
// code-action traffic. Each file here is grounded on the matching file
// under the original implementation's handler/ directory.
package handlers

import (
	"os"
	"strings"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/fiasco-project/lsp-proxy/internal/protostate"
	"github.com/fiasco-project/lsp-proxy/internal/sourcemap"
)

// isFileURI reports whether docURI uses the file:// scheme this proxy's
// mapping is keyed on. Grounded on document_sync.rs's doc.uri.scheme() !=
// "file" guard (spec.md's non-goal: non-file:// URIs pass through
// unchanged rather than being mapped).
func isFileURI(docURI protocol.DocumentURI) bool {
	return strings.HasPrefix(string(docURI), "file://")
}

// DidOpen fans a single editor didOpen out to one notification per
// preprocessed file the author file maps into, skipping files already
// open (bumping their refcount instead) and reading the preprocessed
// file's actual text since that, not the author source, is what clangd
// must see.
func DidOpen(state *protostate.GlobalState, params protocol.DidOpenTextDocumentParams) []protocol.DidOpenTextDocumentParams {
	doc := &params.TextDocument
	if !isFileURI(doc.URI) {
		state.Logger.Infof("didOpen: unsupported scheme %s", doc.URI)
		return []protocol.DidOpenTextDocumentParams{params}
	}
	path := doc.URI.Filename()

	files := state.SourceMapping.MapFiles(sourcemap.ToPreprocess, path)
	if len(files) == 0 {
		state.Logger.Warnf("didOpen: unknown file %s", path)
		return []protocol.DidOpenTextDocumentParams{params}
	}

	result := make([]protocol.DidOpenTextDocumentParams, 0, len(files))
	for _, file := range files {
		if state.BumpOpen(file) {
			continue
		}

		text, err := os.ReadFile(file)
		if err != nil {
			state.Logger.Warnf("didOpen: reading %s: %v", file, err)
			continue
		}
		result = append(result, protocol.DidOpenTextDocumentParams{
			TextDocument: protocol.TextDocumentItem{
				URI:        protocol.DocumentURI(uri.File(file)),
				LanguageID: doc.LanguageID,
				Version:    doc.Version,
				Text:       string(text),
			},
		})
	}
	return result
}

// DidChange splits content changes by the preprocessed file their range
// maps into, grouping changes destined for the same file into a single
// notification.
func DidChange(state *protostate.GlobalState, params protocol.DidChangeTextDocumentParams) []protocol.DidChangeTextDocumentParams {
	doc := &params.TextDocument
	if !isFileURI(doc.URI) {
		state.Logger.Infof("didChange: unsupported scheme %s", doc.URI)
		return []protocol.DidChangeTextDocumentParams{params}
	}
	path := doc.URI.Filename()

	files := state.SourceMapping.MapFiles(sourcemap.ToPreprocess, path)
	if len(files) == 0 {
		state.Logger.Warnf("didChange: unknown file %s", path)
		return []protocol.DidChangeTextDocumentParams{params}
	}

	byFile := make(map[string][]protocol.TextDocumentContentChangeEvent)
	for _, change := range params.ContentChanges {
		if change.Range == nil {
			state.Logger.Warnf("didChange: whole-file change not supported")
			continue
		}
		changePath := path
		r := *change.Range
		if err := state.SourceMapping.MapRangeInPlace(sourcemap.ToPreprocess, &changePath, &r); err != nil {
			continue
		}
		change.Range = &r
		byFile[changePath] = append(byFile[changePath], change)
	}

	result := make([]protocol.DidChangeTextDocumentParams, 0, len(byFile))
	for file, changes := range byFile {
		result = append(result, protocol.DidChangeTextDocumentParams{
			TextDocument: protocol.VersionedTextDocumentIdentifier{
				TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri.File(file))},
				Version:                doc.Version,
			},
			ContentChanges: changes,
		})
	}
	return result
}

// DidClose decrements each mapped preprocessed file's refcount, only
// forwarding a close notification (and forgetting the file) once the
// last source file referencing it has closed.
func DidClose(state *protostate.GlobalState, params protocol.DidCloseTextDocumentParams) []protocol.DidCloseTextDocumentParams {
	doc := &params.TextDocument
	if !isFileURI(doc.URI) {
		state.Logger.Infof("didClose: unsupported scheme %s", doc.URI)
		return []protocol.DidCloseTextDocumentParams{params}
	}
	path := doc.URI.Filename()

	files := state.SourceMapping.MapFiles(sourcemap.ToPreprocess, path)
	if len(files) == 0 {
		state.Logger.Warnf("didClose: unknown file %s", path)
		return []protocol.DidCloseTextDocumentParams{params}
	}

	result := make([]protocol.DidCloseTextDocumentParams, 0, len(files))
	for _, file := range files {
		closed, ok := state.ReleaseOpen(file)
		if !ok {
			state.Logger.Errorf("didClose: tried to close non-open file %s", file)
			continue
		}
		if !closed {
			continue
		}
		result = append(result, protocol.DidCloseTextDocumentParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri.File(file))},
		})
	}
	return result
}
