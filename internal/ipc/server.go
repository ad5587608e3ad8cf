package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultTimeout bounds one request/response exchange.
const DefaultTimeout = 5 * time.Second

// Handler executes control commands. The returned data is marshaled into
// the response.
type Handler interface {
	HandleCommand(ctx context.Context, req Request) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) (any, error)

func (f HandlerFunc) HandleCommand(ctx context.Context, req Request) (any, error) {
	return f(ctx, req)
}

// Server accepts control connections, one request per connection.
type Server struct {
	socketPath string
	handler    Handler
	logger     *slog.Logger
	timeout    time.Duration

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer creates a control server on socketPath.
func NewServer(socketPath string, handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		logger:     logger.With("component", "ipc"),
		timeout:    DefaultTimeout,
	}
}

// Listen creates the socket, replacing a stale one.
func (s *Server) Listen() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	_ = os.Remove(s.socketPath)

	l, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		l.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	s.logger.Info("control socket listening", "path", s.socketPath)
	return nil
}

// Serve accepts connections until ctx is done, then waits for in-flight
// requests and removes the socket.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	if l == nil {
		return errors.New("ipc: Serve called before Listen")
	}

	go func() {
		<-ctx.Done()
		l.Close()
	}()
	defer func() {
		s.wg.Wait()
		_ = os.Remove(s.socketPath)
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("accept failed", "err", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(s.timeout))

	data, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && len(data) == 0 {
		s.logger.Debug("read failed", "err", err)
		return
	}

	resp := s.dispatch(ctx, data)
	out, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("marshal response", "err", err)
		return
	}
	if _, err := conn.Write(append(out, '\n')); err != nil {
		s.logger.Debug("write failed", "err", err)
	}
}

func (s *Server) dispatch(ctx context.Context, data []byte) (resp *Response) {
	req, err := ParseRequest(data)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("invalid request: %v", err))
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("command panicked", "command", req.Command, "panic", r)
			resp = NewErrorResponse(fmt.Sprintf("internal error handling %s", req.Command))
		}
	}()

	result, err := s.handler.HandleCommand(ctx, req)
	if err != nil {
		s.logger.Debug("command failed", "command", req.Command, "err", err)
		return NewErrorResponse(err.Error())
	}
	ok, err := NewOKResponse(result)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return ok
}
