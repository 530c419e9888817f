package dispatch

import (
	"context"
	"encoding/json"
	"sync"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"

	"github.com/fiasco-project/lsp-proxy/internal/handlers"
	"github.com/fiasco-project/lsp-proxy/internal/protostate"
)

// forwardDocumentSymbol splits a documentSymbol request into one shard per
// preprocessed file, calls clangd for each concurrently, and merges the
// filtered results through a JoinSlot before replying once.
func (r *Router) forwardDocumentSymbol(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DocumentSymbolParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, err)
	}
	sourcePath := params.TextDocument.URI.Filename()
	shards := handlers.BuildDocumentSymbolRequests(r.State, sourcePath, params)

	alloc := protostate.ReqContextAlloc{Method: req.Method(), ReqID: req.ID()}
	slot := protostate.NewJoinSlot(len(shards), handlers.MergeDocumentSymbols)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var finalResult []protocol.DocumentSymbol
	var finalErr error

	for _, shard := range shards {
		wg.Add(1)
		go func(shard handlers.DocumentSymbolShard) {
			defer wg.Done()

			key := r.State.TrackRequest(protostate.ToServer, alloc.Alloc())
			defer r.State.Untrack(protostate.ToServer, key)

			r.logRequest(protostate.ToServer, nil, req.Method(), mustMarshal(shard.Params))
			var result []protocol.DocumentSymbol
			if _, err := r.Server.Call(ctx, req.Method(), shard.Params, &result); err != nil {
				r.logResponse(protostate.FromServer, req.ID(), nil, true)
				mu.Lock()
				finalErr = err
				mu.Unlock()
				result = nil
			} else {
				r.logResponse(protostate.FromServer, req.ID(), mustMarshal(result), false)
			}
			filtered := handlers.FilterDocumentSymbols(r.State, sourcePath, shard.MappedPath, result)

			merged, done2 := slot.Merge(filtered)
			if done2 {
				mu.Lock()
				finalResult = merged
				mu.Unlock()
			}
		}(shard)
	}
	wg.Wait()

	if finalErr != nil {
		return reply(ctx, nil, finalErr)
	}
	return reply(ctx, finalResult, nil)
}

// forwardInlayHint is the same fan-out/fan-in shape as
// forwardDocumentSymbol, specialized to inlayHint.
func (r *Router) forwardInlayHint(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.InlayHintParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, err)
	}
	sourcePath := params.TextDocument.URI.Filename()
	shards := handlers.BuildInlayHintRequests(r.State, sourcePath, params)

	alloc := protostate.ReqContextAlloc{Method: req.Method(), ReqID: req.ID()}
	slot := protostate.NewJoinSlot(len(shards), handlers.MergeInlayHints)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var finalResult []protocol.InlayHint
	var finalErr error

	for _, shard := range shards {
		wg.Add(1)
		go func(shard handlers.InlayHintShard) {
			defer wg.Done()

			key := r.State.TrackRequest(protostate.ToServer, alloc.Alloc())
			defer r.State.Untrack(protostate.ToServer, key)

			r.logRequest(protostate.ToServer, nil, req.Method(), mustMarshal(shard.Params))
			var result []protocol.InlayHint
			if _, err := r.Server.Call(ctx, req.Method(), shard.Params, &result); err != nil {
				r.logResponse(protostate.FromServer, req.ID(), nil, true)
				mu.Lock()
				finalErr = err
				mu.Unlock()
				result = nil
			} else {
				r.logResponse(protostate.FromServer, req.ID(), mustMarshal(result), false)
			}
			filtered := handlers.FilterInlayHints(r.State, sourcePath, shard.MappedPath, result)

			merged, done2 := slot.Merge(filtered)
			if done2 {
				mu.Lock()
				finalResult = merged
				mu.Unlock()
			}
		}(shard)
	}
	wg.Wait()

	if finalErr != nil {
		return reply(ctx, nil, finalErr)
	}
	return reply(ctx, finalResult, nil)
}
