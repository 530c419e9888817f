package dispatch

import (
	"context"
	"encoding/json"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"

	"github.com/fiasco-project/lsp-proxy/internal/debuglog"
	"github.com/fiasco-project/lsp-proxy/internal/handlers"
	"github.com/fiasco-project/lsp-proxy/internal/protostate"
)

// New wires a Router around the two already-connected peers. debugLog may
// be nil, meaning no inspector sink is attached.
func New(client, server jsonrpc2.Conn, state *protostate.GlobalState, debugLog *debuglog.Logger) *Router {
	return &Router{Client: client, Server: server, State: state, DebugLog: debugLog}
}

// ClientHandler processes messages arriving from the editor, forwarding
// them toward clangd.
func (r *Router) ClientHandler() jsonrpc2.Handler {
	return jsonrpc2.ReplyHandler(func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		if req.IsNotify() {
			return r.fromClientNotification(ctx, req)
		}
		return r.fromClientRequest(ctx, reply, req)
	})
}

// ServerHandler processes messages arriving from clangd, forwarding them
// toward the editor.
func (r *Router) ServerHandler() jsonrpc2.Handler {
	return jsonrpc2.ReplyHandler(func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		if req.IsNotify() {
			return r.fromServerNotification(ctx, req)
		}
		return r.fromServerRequest(ctx, reply, req)
	})
}

func (r *Router) fromClientNotification(ctx context.Context, req jsonrpc2.Request) error {
	switch req.Method() {
	case "textDocument/didOpen":
		var params protocol.DidOpenTextDocumentParams
		if err := json.Unmarshal(req.Params(), &params); err != nil {
			return err
		}
		for _, shard := range handlers.DidOpen(r.State, params) {
			r.logRequest(protostate.ToServer, nil, req.Method(), mustMarshal(shard))
			_ = r.Server.Notify(ctx, req.Method(), shard)
		}
		return nil

	case "textDocument/didChange":
		var params protocol.DidChangeTextDocumentParams
		if err := json.Unmarshal(req.Params(), &params); err != nil {
			return err
		}
		for _, shard := range handlers.DidChange(r.State, params) {
			r.logRequest(protostate.ToServer, nil, req.Method(), mustMarshal(shard))
			_ = r.Server.Notify(ctx, req.Method(), shard)
		}
		return nil

	case "textDocument/didClose":
		var params protocol.DidCloseTextDocumentParams
		if err := json.Unmarshal(req.Params(), &params); err != nil {
			return err
		}
		for _, shard := range handlers.DidClose(r.State, params) {
			r.logRequest(protostate.ToServer, nil, req.Method(), mustMarshal(shard))
			_ = r.Server.Notify(ctx, req.Method(), shard)
		}
		return nil

	case "exit":
		return r.ForwardNotification(ctx, protostate.ToServer, r.Server, req.Method(), req.Params())

	default:
		return r.ForwardNotification(ctx, protostate.ToServer, r.Server, req.Method(), req.Params())
	}
}

func (r *Router) fromServerNotification(ctx context.Context, req jsonrpc2.Request) error {
	switch req.Method() {
	case "textDocument/publishDiagnostics":
		var params protocol.PublishDiagnosticsParams
		if err := json.Unmarshal(req.Params(), &params); err != nil {
			return err
		}
		for _, shard := range handlers.PublishDiagnostics(r.State, params) {
			r.logRequest(protostate.FromServer, nil, req.Method(), mustMarshal(shard))
			_ = r.Client.Notify(ctx, req.Method(), shard)
		}
		return nil

	default:
		return r.ForwardNotification(ctx, protostate.FromServer, r.Client, req.Method(), req.Params())
	}
}

// mustMarshal re-encodes a typed notification params value for the debug
// log sink, which only ever deals in raw JSON; a marshal failure here would
// mean the params type itself is broken, so it degrades to an empty frame
// rather than panicking the coordinator goroutine.
func mustMarshal(v any) json.RawMessage {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return encoded
}

func (r *Router) fromClientRequest(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	switch req.Method() {
	case "textDocument/definition", "textDocument/declaration",
		"textDocument/implementation", "textDocument/typeDefinition":
		return r.forwardGoto(ctx, reply, req)

	case "textDocument/references":
		return r.forwardReferences(ctx, reply, req)

	case "textDocument/documentHighlight":
		return r.forwardDocumentHighlight(ctx, reply, req)

	case "textDocument/documentSymbol":
		return r.forwardDocumentSymbol(ctx, reply, req)

	case "textDocument/inlayHint":
		return r.forwardInlayHint(ctx, reply, req)

	case "textDocument/codeAction":
		return r.forwardCodeAction(ctx, reply, req)

	case "textDocument/hover", "textDocument/completion", "textDocument/signatureHelp",
		"textDocument/rename", "textDocument/prepareRename":
		return r.forwardPositional(ctx, reply, req)

	default:
		return r.ForwardRequest(ctx, protostate.ToServer, r.Server, req, reply)
	}
}

func (r *Router) fromServerRequest(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	switch req.Method() {
	case "client/registerCapability", "client/unregisterCapability", "window/workDoneProgress/create":
		return reply(ctx, nil, nil)
	default:
		return r.ForwardRequest(ctx, protostate.FromServer, r.Client, req, reply)
	}
}

// forwardPositional covers every simple request whose params start with a
// text document and position and whose response needs no translation back
// (hover text, completion items and the like carry no author-file
// position of their own beyond what TranslatePosition already fixed up on
// the way in).
func (r *Router) forwardPositional(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params json.RawMessage
	var loc handlers.TextDocumentPositionParams
	if err := json.Unmarshal(req.Params(), &loc); err != nil {
		return reply(ctx, nil, err)
	}
	handlers.TranslatePosition(r.State, &loc)
	merged, err := mergeRaw(req.Params(), loc)
	if err != nil {
		return reply(ctx, nil, err)
	}
	params = merged

	id := req.ID()
	r.logRequest(protostate.ToServer, &id, req.Method(), params)
	done := trackRequestFromReq(r.State, protostate.ToServer, req)
	defer done()

	var result json.RawMessage
	if _, err := r.Server.Call(ctx, req.Method(), params, &result); err != nil {
		r.logResponse(protostate.FromServer, id, nil, true)
		return reply(ctx, nil, err)
	}
	r.logResponse(protostate.FromServer, id, result, false)
	return reply(ctx, result, nil)
}

func (r *Router) forwardGoto(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var loc handlers.TextDocumentPositionParams
	if err := json.Unmarshal(req.Params(), &loc); err != nil {
		return reply(ctx, nil, err)
	}
	sourcePath, mappedPath := handlers.TranslatePosition(r.State, &loc)
	params, err := mergeRaw(req.Params(), loc)
	if err != nil {
		return reply(ctx, nil, err)
	}

	id := req.ID()
	r.logRequest(protostate.ToServer, &id, req.Method(), params)
	done := trackRequestFromReq(r.State, protostate.ToServer, req)
	defer done()

	var result json.RawMessage
	if _, err := r.Server.Call(ctx, req.Method(), params, &result); err != nil {
		r.logResponse(protostate.FromServer, id, nil, true)
		return reply(ctx, nil, err)
	}

	translated, err := handlers.TranslateGotoResult(r.State, sourcePath, mappedPath, result)
	if err != nil {
		return reply(ctx, nil, err)
	}
	r.logResponse(protostate.FromServer, id, translated, false)
	return reply(ctx, translated, nil)
}

func (r *Router) forwardReferences(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	return r.forwardGoto(ctx, reply, req)
}

func (r *Router) forwardDocumentHighlight(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var loc handlers.TextDocumentPositionParams
	if err := json.Unmarshal(req.Params(), &loc); err != nil {
		return reply(ctx, nil, err)
	}
	sourcePath, mappedPath := handlers.TranslatePosition(r.State, &loc)
	params, err := mergeRaw(req.Params(), loc)
	if err != nil {
		return reply(ctx, nil, err)
	}

	id := req.ID()
	r.logRequest(protostate.ToServer, &id, req.Method(), params)
	done := trackRequestFromReq(r.State, protostate.ToServer, req)
	defer done()

	var result []protocol.DocumentHighlight
	if _, err := r.Server.Call(ctx, req.Method(), params, &result); err != nil {
		r.logResponse(protostate.FromServer, id, nil, true)
		return reply(ctx, nil, err)
	}
	filtered := handlers.FilterDocumentHighlights(r.State, sourcePath, mappedPath, result)
	r.logResponse(protostate.FromServer, id, mustMarshal(filtered), false)
	return reply(ctx, filtered, nil)
}

func (r *Router) forwardCodeAction(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.CodeActionParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, err)
	}
	sourcePath := params.TextDocument.URI.Filename()
	mappedPath, ok := handlers.TranslateCodeActionRequest(r.State, sourcePath, &params)
	if !ok {
		return reply(ctx, []protocol.CodeAction{}, nil)
	}

	id := req.ID()
	r.logRequest(protostate.ToServer, &id, req.Method(), mustMarshal(params))
	done := trackRequestFromReq(r.State, protostate.ToServer, req)
	defer done()

	var result []protocol.CodeAction
	if _, err := r.Server.Call(ctx, req.Method(), params, &result); err != nil {
		r.logResponse(protostate.FromServer, id, nil, true)
		return reply(ctx, nil, err)
	}
	translated := handlers.TranslateCodeActionResponse(r.State, sourcePath, mappedPath, result)
	r.logResponse(protostate.FromServer, id, mustMarshal(translated), false)
	return reply(ctx, translated, nil)
}

// mergeRaw re-marshals translated, keeping every field raw already carried
// (capabilities, context, range) by overlaying only the textDocument/
// position fields translate mutated. LSP request params are plain JSON
// objects, so decoding into the narrow TextDocumentPositionParams shape
// and marshaling it back would silently drop sibling fields (e.g.
// CompletionParams' context); merge folds the translated fields into the
// original object instead.
func mergeRaw(original json.RawMessage, translated handlers.TextDocumentPositionParams) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if len(original) > 0 {
		if err := json.Unmarshal(original, &obj); err != nil {
			return nil, err
		}
	}
	if obj == nil {
		obj = map[string]json.RawMessage{}
	}
	docBytes, err := json.Marshal(translated.TextDocument)
	if err != nil {
		return nil, err
	}
	posBytes, err := json.Marshal(translated.Position)
	if err != nil {
		return nil, err
	}
	obj["textDocument"] = docBytes
	obj["position"] = posBytes
	return json.Marshal(obj)
}

func trackRequestFromReq(state *protostate.GlobalState, direction protostate.Direction, req jsonrpc2.Request) func() {
	return trackRequest(state, direction, req.Method(), req.ID())
}
