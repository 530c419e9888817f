package debuglog

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/jsonrpc2"

	"github.com/fiasco-project/lsp-proxy/internal/logging"
	"github.com/fiasco-project/lsp-proxy/internal/protostate"
)

func testLogger() logging.Logger {
	return logging.New(logging.LevelSilent, os.Stderr)
}

func newUnstartedLogger() *Logger {
	return &Logger{queue: make(chan string, queueCapacity), logger: testLogger()}
}

func TestDirectionCode(t *testing.T) {
	assert.Equal(t, 1, directionCode(protostate.ToServer))
	assert.Equal(t, 2, directionCode(protostate.FromServer))
}

func TestLogRequestEnqueuesFrame(t *testing.T) {
	l := newUnstartedLogger()
	id := jsonrpc2.ID{}

	l.LogRequest(protostate.ToServer, &id, "textDocument/hover", []byte(`{"a":1}`))

	require.Len(t, l.queue, 1)
	msg := <-l.queue
	assert.Contains(t, msg, `"method":"textDocument/hover"`)
	assert.Contains(t, msg, `"direction":1`)
}

func TestLogResponseEnqueuesFrame(t *testing.T) {
	l := newUnstartedLogger()

	l.LogResponse(protostate.FromServer, jsonrpc2.ID{}, []byte(`{"ok":true}`), false)

	require.Len(t, l.queue, 1)
	msg := <-l.queue
	assert.Contains(t, msg, `"direction":2`)
}

func TestEnqueueDropsOldestWhenFull(t *testing.T) {
	l := &Logger{queue: make(chan string, 2), logger: testLogger()}

	l.enqueue(frame{Method: "first"})
	l.enqueue(frame{Method: "second"})
	l.enqueue(frame{Method: "third"}) // queue full: "first" should be evicted

	require.Len(t, l.queue, 2)
	first := <-l.queue
	second := <-l.queue
	assert.Contains(t, first, "second")
	assert.Contains(t, second, "third")
}
