package svc

import (
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

// ErrUnauthorized is the response error for a token mismatch.
var ErrUnauthorized = errors.New("Unauthorized")

// Handler executes one authenticated action. The returned value, if any,
// becomes the response data.
type Handler interface {
	Handle(ctx context.Context, action Action) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, action Action) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, action Action) (any, error) {
	return f(ctx, action)
}

// DefaultConnTimeout bounds one request/response exchange on the server side.
const DefaultConnTimeout = 10 * time.Second

// Server accepts service requests on a unix socket.
type Server struct {
	socketPath string
	token      Token
	handler    Handler
	logger     *slog.Logger
	timeout    time.Duration

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a service server. Call Listen before Serve.
func NewServer(socketPath string, token Token, handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		token:      token,
		handler:    handler,
		logger:     logger,
		timeout:    DefaultConnTimeout,
	}
}

// Listen creates the socket with owner-only permissions. A failure here is
// fatal for the service process.
func (s *Server) Listen() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("create service socket dir: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale service socket: %w", err)
	}
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on service socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		listener.Close()
		return fmt.Errorf("chmod service socket: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.logger.Info("service listening", "socket", s.socketPath)
	return nil
}

// Serve handles connections until ctx is cancelled. Individual request
// failures never stop the loop.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return errors.New("service server not listening")
	}
	defer s.cleanup()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("service accept error", "err", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

// Close stops accepting connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) cleanup() {
	s.mu.Lock()
	s.listener = nil
	s.mu.Unlock()
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("remove service socket", "err", err)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(s.timeout))

	if cred, ok := peerCredentials(conn); ok {
		s.logger.Debug("service peer", "pid", cred.PID, "uid", cred.UID)
	}

	var msg Message
	if err := ReadFrame(conn, &msg); err != nil {
		s.logger.Warn("service read error", "err", err)
		s.write(conn, NewErrorResponse(fmt.Sprintf("invalid request: %v", err)))
		return
	}

	s.write(conn, s.dispatch(ctx, msg))
}

// dispatch authenticates and runs one message.
func (s *Server) dispatch(ctx context.Context, msg Message) (resp *Response) {
	if !s.token.Equal(msg.Token) {
		s.logger.Warn("rejected service request", "action", msg.Action.Type, "token", msg.Token)
		return NewErrorResponse(ErrUnauthorized.Error())
	}
	if !msg.Action.Type.Known() {
		return NewErrorResponse(fmt.Sprintf("unknown action: %s", msg.Action.Type))
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("service handler panic", "action", msg.Action.Type, "panic", r)
			resp = NewErrorResponse(fmt.Sprintf("%s: internal error: %v", msg.Action.Type, r))
		}
	}()

	s.logger.Debug("service request", "action", msg.Action.Type)
	data, err := s.handler.Handle(ctx, msg.Action)
	if err != nil {
		s.logger.Warn("service action failed", "action", msg.Action.Type, "err", err)
		return NewErrorResponse(err.Error())
	}
	ok, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return ok
}

func (s *Server) write(conn net.Conn, resp *Response) {
	if err := WriteFrame(conn, resp); err != nil {
		s.logger.Warn("service write error", "err", err)
	}
}

// decodeData unmarshals response data into v when present.
func decodeData(resp *Response, v any) error {
	if v == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, v); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}
