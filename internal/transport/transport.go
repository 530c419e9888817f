// Package transport builds the two jsonrpc2.Conn peers the proxy sits
// between: a subprocess connection to clangd, and an editor connection
// over stdio, a listening socket, or an outbound dial. Both are grounded
// on pkg/lsp/gopls_client.go's buffered readWriteCloser and subprocess
// lifecycle, generalized from a single named-method client into a raw
// message relay, plus cmd/dingo-lsp/main.go's stdio wrapper.
package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strings"

	"go.lsp.dev/jsonrpc2"

	"github.com/fiasco-project/lsp-proxy/internal/logging"
)

// readWriteCloser pairs a write side and a read side behind buffering, so
// neither small jsonrpc2 frame writes nor its header-then-body reads incur
// a syscall each, flushing after every write since a stalled partial frame
// would otherwise wedge the peer waiting on the other end of the pipe.
type readWriteCloser struct {
	w      io.WriteCloser
	r      io.ReadCloser
	reader *bufio.Reader
	writer *bufio.Writer
}

func newReadWriteCloser(w io.WriteCloser, r io.ReadCloser) *readWriteCloser {
	return &readWriteCloser{
		w:      w,
		r:      r,
		reader: bufio.NewReaderSize(r, 32*1024),
		writer: bufio.NewWriterSize(w, 32*1024),
	}
}

func (rwc *readWriteCloser) Read(p []byte) (int, error) { return rwc.reader.Read(p) }

func (rwc *readWriteCloser) Write(p []byte) (int, error) {
	n, err := rwc.writer.Write(p)
	if err != nil {
		return n, err
	}
	return n, rwc.writer.Flush()
}

func (rwc *readWriteCloser) Close() error {
	_ = rwc.writer.Flush()
	err1 := rwc.w.Close()
	err2 := rwc.r.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// ServerProcess is a running clangd subprocess plus the connection
// forwarding LSP traffic to and from it.
type ServerProcess struct {
	Conn jsonrpc2.Conn

	cmd    *exec.Cmd
	logger logging.Logger
}

// StartServer launches clangdPath with args, wires stdin/stdout through a
// buffered readWriteCloser into a jsonrpc2.Conn, and drains stderr to the
// log in the background. handler processes messages clangd sends us
// (server-to-client requests and notifications); install it with Go
// before the subprocess has a chance to write anything.
func StartServer(clangdPath string, args []string, logger logging.Logger) (*ServerProcess, error) {
	cmd := exec.Command(clangdPath, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("clangd stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("clangd stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("clangd stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting clangd: %w", err)
	}

	sp := &ServerProcess{cmd: cmd, logger: logger}
	go sp.drainStderr(stderr)

	rwc := newReadWriteCloser(stdin, stdout)
	stream := jsonrpc2.NewStream(rwc)
	sp.Conn = jsonrpc2.NewConn(stream)

	logger.Infof("clangd started (pid %d)", cmd.Process.Pid)
	return sp, nil
}

func (sp *ServerProcess) drainStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 4096), 1024*1024)
	for scanner.Scan() {
		sp.logger.Debugf("clangd stderr: %s", scanner.Text())
	}
}

// Shutdown runs the two-phase LSP shutdown sequence (shutdown request,
// exit notification), closes the connection, then waits for the process
// to exit on its own, killing it if the caller's context is done first.
func (sp *ServerProcess) Shutdown(ctx context.Context) error {
	if _, err := sp.Conn.Call(ctx, "shutdown", nil, nil); err != nil {
		sp.logger.Warnf("clangd shutdown request failed: %v", err)
	}
	if err := sp.Conn.Notify(ctx, "exit", nil); err != nil {
		sp.logger.Warnf("clangd exit notification failed: %v", err)
	}
	if err := sp.Conn.Close(); err != nil {
		sp.logger.Debugf("clangd connection close: %v", err)
	}
	if sp.cmd != nil && sp.cmd.Process != nil {
		waited := make(chan error, 1)
		go func() { waited <- sp.cmd.Wait() }()
		select {
		case err := <-waited:
			if err != nil {
				sp.logger.Debugf("clangd process wait: %v", err)
			}
		case <-ctx.Done():
			sp.logger.Warnf("clangd still running when shutdown context ended, killing (pid %d)", sp.cmd.Process.Pid)
			_ = sp.cmd.Process.Kill()
			<-waited
		}
		sp.logger.Infof("clangd stopped (pid %d)", sp.cmd.Process.Pid)
	}
	return nil
}

// stdioConn adapts os.Stdin/os.Stdout to io.ReadWriteCloser without
// actually closing either descriptor — shutting down the LSP session must
// not take the process's own standard streams down with it.
type stdioConn struct{}

func (stdioConn) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioConn) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdioConn) Close() error                { return nil }

// NewEditorConn builds the jsonrpc2.Conn facing the editor, per mode:
// "stdio" talks over the process's own standard streams, "listen:<addr>"
// accepts one connection on addr, and "connect:<addr>" dials out to addr
// — matching the three ways the original implementation's Connection
// type can be constructed.
func NewEditorConn(mode string) (jsonrpc2.Conn, error) {
	switch {
	case mode == "" || mode == "stdio":
		return jsonrpc2.NewConn(jsonrpc2.NewStream(stdioConn{})), nil
	case strings.HasPrefix(mode, "listen:"):
		addr := strings.TrimPrefix(mode, "listen:")
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("listening on %s: %w", addr, err)
		}
		conn, err := ln.Accept()
		if err != nil {
			return nil, fmt.Errorf("accepting editor connection on %s: %w", addr, err)
		}
		return jsonrpc2.NewConn(jsonrpc2.NewStream(conn)), nil
	case strings.HasPrefix(mode, "connect:"):
		addr := strings.TrimPrefix(mode, "connect:")
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("connecting to editor at %s: %w", addr, err)
		}
		return jsonrpc2.NewConn(jsonrpc2.NewStream(conn)), nil
	default:
		return nil, fmt.Errorf("unrecognized editor transport mode %q", mode)
	}
}
