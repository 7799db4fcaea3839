package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ffexec/internal/daemon"
	"ffexec/internal/logging"
	"ffexec/internal/services"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: serverCtx}
	if err := rpcServer.RegisterName(serviceName, srv); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
		conns:     make(map[net.Conn]struct{}),
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.track(conn, true)
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.track(c, false)
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
	go func() {
		<-s.ctx.Done()
		_ = s.listener.Close()
	}()
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// Close stops the server and removes the socket file. Connections blocked in
// long calls are released once the server context is cancelled.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
		return
	}
	delete(s.conns, conn)
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Execute(req ExecuteRequest, resp *ExecuteResponse) error {
	ctx := s.ctx
	if id := strings.TrimSpace(req.RequestID); id != "" {
		ctx = services.WithRequestID(ctx, id)
	}
	handle, err := s.daemon.Submit(ctx, daemon.SubmitRequest{
		Args:    req.Args,
		Env:     req.Env,
		Timeout: time.Duration(req.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		s.logger.Debug("execute rejected",
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_execute_rejected"))
		return err
	}
	execution, err := s.daemon.Execution(ctx, handle.ID())
	if err != nil {
		return err
	}
	resp.Execution = execution
	s.logger.Info("execution submitted via IPC",
		logging.String(logging.FieldExecutionID, handle.ID()),
		logging.String(logging.FieldEventType, "ipc_execute"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.DaemonStatus = s.daemon.Status(s.ctx)
	return nil
}

func (s *service) Kill(_ KillRequest, resp *KillResponse) error {
	resp.Killed = s.daemon.Kill()
	s.logger.Info("kill requested via IPC",
		logging.Bool("killed", resp.Killed),
		logging.String(logging.FieldEventType, "ipc_kill"))
	return nil
}

func (s *service) WaitReady(req WaitReadyRequest, resp *WaitReadyResponse) error {
	err := s.daemon.WaitReady(s.ctx, time.Duration(req.TimeoutMillis)*time.Millisecond)
	if err != nil {
		resp.Message = err.Error()
		return nil
	}
	resp.Ready = true
	return nil
}

func (s *service) Result(req ResultRequest, resp *ResultResponse) error {
	if strings.TrimSpace(req.ID) == "" {
		return errors.New("execution id is required")
	}
	if !req.Wait {
		execution, err := s.daemon.Execution(s.ctx, req.ID)
		if err != nil {
			return err
		}
		resp.Execution = execution
		return nil
	}
	ctx := s.ctx
	if req.TimeoutMillis > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMillis)*time.Millisecond)
		defer cancel()
	}
	execution, err := s.daemon.Await(ctx, req.ID)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	resp.Execution = execution
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	executions, err := s.daemon.History(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Executions = executions
	return nil
}

func (s *service) Version(_ VersionRequest, resp *VersionResponse) error {
	resp.VersionInfo = s.daemon.Version(s.ctx)
	return nil
}
