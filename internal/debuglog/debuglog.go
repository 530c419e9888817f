// Package debuglog is the proxy's websocket debug sink: every message
// relayed between the editor and clangd is also serialized and queued
// here, where a locally-connected inspector (any plain websocket client)
// can subscribe and watch the traffic live. Grounded on the original
// implementation's websocket_logger.rs, adapted from tungstenite's raw
// accept-loop to gorilla/websocket's net/http-based upgrade, the
// ecosystem's idiomatic entry point for a Go websocket server.
package debuglog

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.lsp.dev/jsonrpc2"

	"github.com/fiasco-project/lsp-proxy/internal/logging"
	"github.com/fiasco-project/lsp-proxy/internal/protostate"
)

const queueCapacity = 1024

// Logger queues serialized LSP traffic for a single subscribed websocket
// client, dropping the oldest queued entry rather than blocking the
// coordinator when no client is attached or the client reads too slowly.
type Logger struct {
	queue  chan string
	logger logging.Logger
}

// Spawn starts the background HTTP server accepting one websocket
// subscriber at addr ("127.0.0.1:9981" by default) and returns a Logger
// ready to accept Send calls immediately, whether or not anyone has
// connected yet.
func Spawn(addr string, logger logging.Logger) *Logger {
	l := &Logger{queue: make(chan string, queueCapacity), logger: logger}
	go l.serve(addr)
	return l
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (l *Logger) serve(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			l.logger.Warnf("debuglog: upgrade failed: %v", err)
			return
		}
		l.logger.Infof("debuglog: inspector connected")
		defer conn.Close()

		for msg := range l.queue {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				l.logger.Warnf("debuglog: write failed, waiting for reconnect: %v", err)
				return
			}
		}
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		l.logger.Warnf("debuglog: server stopped: %v", err)
	}
}

// frame is the wire shape sent to the inspector, a superset of the three
// LSP message kinds' relevant fields.
type frame struct {
	ID        *jsonrpc2.ID    `json:"id,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Direction int             `json:"direction"`
	IsError   bool            `json:"isError,omitempty"`
}

func directionCode(d protostate.Direction) int {
	if d == protostate.ToServer {
		return 1
	}
	return 2
}

// LogRequest queues a request or notification. id is nil for
// notifications, mirroring the distinction the wire format itself makes.
func (l *Logger) LogRequest(direction protostate.Direction, id *jsonrpc2.ID, method string, params json.RawMessage) {
	l.enqueue(frame{ID: id, Method: method, Params: params, Direction: directionCode(direction)})
}

// LogResponse queues a response, result already encoded as raw JSON (nil
// if the call errored).
func (l *Logger) LogResponse(direction protostate.Direction, id jsonrpc2.ID, result json.RawMessage, isError bool) {
	l.enqueue(frame{ID: &id, Params: result, Direction: directionCode(direction), IsError: isError})
}

func (l *Logger) enqueue(f frame) {
	encoded, err := json.Marshal(f)
	if err != nil {
		l.logger.Warnf("debuglog: marshal failed: %v", err)
		return
	}
	msg := string(encoded)

	select {
	case l.queue <- msg:
		return
	default:
	}

	// Queue full: drop the oldest entry and retry once.
	select {
	case <-l.queue:
		l.logger.Debugf("debuglog: queue full, dropped oldest entry")
	default:
	}
	select {
	case l.queue <- msg:
	default:
		l.logger.Debugf("debuglog: queue still full after eviction, dropping new entry")
	}
}
