// Package dispatch wires the two peer connections (editor and clangd)
// together: it reads inbound messages from each, routes them by method to
// either a generic forward or a bespoke translating handler, and relays
// the (possibly translated) result back to the originator.
//
// Unlike the message-passing, single-threaded coordinator the original
// implementation uses (necessary there because a blocking call-and-wait
// would stall the select loop), this package leans on go.lsp.dev/jsonrpc2's
// Conn.Call, which already blocks the calling goroutine until the
// destination peer answers and already restores the original request's ID
// when replying through its Replier closure. That collapses the Request
// Dispatcher and Response Dispatcher into one function per method — translate
// the request, call through, translate the response, reply — matching the
// shape the teacher's own pkg/lsp/handlers.go already uses (e.g.
// handleCompletionWithTranslation). See DESIGN.md for the full rationale.
//
// protostate.GlobalState's RequestRegistry is still populated and drained
// around every forwarded call, so the bounded-registry invariant (I7) is a
// real, independently testable property of this package rather than a
// vestigial type.
package dispatch

import (
	"context"
	"encoding/json"

	"go.lsp.dev/jsonrpc2"

	"github.com/fiasco-project/lsp-proxy/internal/debuglog"
	"github.com/fiasco-project/lsp-proxy/internal/protostate"
)

// Router owns the two peer connections and the shared coordinator state.
type Router struct {
	Client jsonrpc2.Conn
	Server jsonrpc2.Conn
	State  *protostate.GlobalState

	// DebugLog mirrors every relayed frame to the websocket inspector
	// sink (SPEC_FULL.md §6, grounded on global_state.rs's send/
	// log_from_server). Nil when --debug-log-addr is disabled.
	DebugLog *debuglog.Logger
}

// logRequest mirrors a request or notification (id nil) toward DebugLog, a
// no-op if no inspector is attached.
func (r *Router) logRequest(direction protostate.Direction, id *jsonrpc2.ID, method string, params json.RawMessage) {
	if r.DebugLog == nil {
		return
	}
	r.DebugLog.LogRequest(direction, id, method, params)
}

// logResponse mirrors a response toward DebugLog. The response travels the
// opposite way from the request that caused it, so callers pass the
// *reverse* of the request's direction.
func (r *Router) logResponse(direction protostate.Direction, id jsonrpc2.ID, result json.RawMessage, isError bool) {
	if r.DebugLog == nil {
		return
	}
	r.DebugLog.LogResponse(direction, id, result, isError)
}

// trackRequest registers a ReqContext for the duration of an outbound call
// and returns a function that removes it again, mirroring the original's
// "remove on response arrival" lifecycle (I7). originalID is the ID the
// request arrived with on its originating connection; it is never reused
// as a wire ID on the destination connection — go.lsp.dev/jsonrpc2 mints
// its own ID for the outbound Call and restores originalID automatically
// when the caller's Replier is invoked.
func trackRequest(state *protostate.GlobalState, direction protostate.Direction, method string, originalID jsonrpc2.ID) func() {
	key := state.TrackRequest(direction, protostate.NewReqContext(method, originalID))
	return func() { state.Untrack(direction, key) }
}

// ForwardRequest sends method/rawParams to dest unchanged and relays
// whatever comes back to reply, implementing spec.md §4.4's "Generic
// fallbacks" for any request-shaped method this proxy has no bespoke
// handler for.
func (r *Router) ForwardRequest(ctx context.Context, direction protostate.Direction, dest jsonrpc2.Conn, req jsonrpc2.Request, reply jsonrpc2.Replier) error {
	method, rawParams := req.Method(), req.Params()
	id := req.ID()
	r.logRequest(direction, &id, method, rawParams)

	done := trackRequest(r.State, direction, method, id)
	defer done()

	var result json.RawMessage
	_, err := dest.Call(ctx, method, rawParams, &result)
	if err != nil {
		r.State.Logger.Debugf("forward %s failed: %v", method, err)
		r.logResponse(direction.Reverse(), id, nil, true)
		return reply(ctx, nil, err)
	}
	r.logResponse(direction.Reverse(), id, result, false)
	return reply(ctx, result, nil)
}

// ForwardNotification sends a notification to dest unchanged. Notifications
// carry no ID and need no correlation.
func (r *Router) ForwardNotification(ctx context.Context, direction protostate.Direction, dest jsonrpc2.Conn, method string, rawParams json.RawMessage) error {
	r.logRequest(direction, nil, method, rawParams)
	if err := dest.Notify(ctx, method, rawParams); err != nil {
		r.State.Logger.Warnf("forward notification %s failed: %v", method, err)
		return err
	}
	return nil
}
