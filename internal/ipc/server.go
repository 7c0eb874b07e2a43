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
	"sync"

	"github.com/google/uuid"

	"screencap/internal/api"
	"screencap/internal/daemon"
	"screencap/internal/logging"
	"screencap/internal/services"
	"screencap/internal/session"
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
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName(serviceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
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
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun screencap daemon stop"))
	}
}

const serviceName = "Screencap"

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

// requestContext tags each RPC with its own request id.
func (s *service) requestContext() context.Context {
	return services.WithRequestID(s.ctx, uuid.NewString())
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.DaemonStatus = daemon.ToAPIStatus(status)
	resp.LogPath = s.daemon.LogPath()
	return nil
}

func (s *service) Start(req SessionStartRequest, resp *SessionResponse) error {
	ctx := s.requestContext()
	snap, err := s.daemon.Session().Start(ctx, req.Microphone)
	return s.sessionResult(ctx, "start", snap, err, resp)
}

func (s *service) Pause(_ SessionRequest, resp *SessionResponse) error {
	ctx := s.requestContext()
	snap, err := s.daemon.Session().Pause(ctx)
	return s.sessionResult(ctx, "pause", snap, err, resp)
}

func (s *service) Resume(_ SessionRequest, resp *SessionResponse) error {
	ctx := s.requestContext()
	snap, err := s.daemon.Session().Resume(ctx)
	return s.sessionResult(ctx, "resume", snap, err, resp)
}

func (s *service) Stop(_ SessionRequest, resp *SessionResponse) error {
	ctx := s.requestContext()
	snap, err := s.daemon.Session().Stop(ctx)
	return s.sessionResult(ctx, "stop", snap, err, resp)
}

func (s *service) Restart(_ SessionRequest, resp *SessionResponse) error {
	ctx := s.requestContext()
	snap, err := s.daemon.Session().Restart(ctx)
	return s.sessionResult(ctx, "restart", snap, err, resp)
}

func (s *service) Convert(_ SessionRequest, resp *SessionResponse) error {
	ctx := s.requestContext()
	snap, err := s.daemon.Session().Convert(ctx)
	return s.sessionResult(ctx, "convert", snap, err, resp)
}

func (s *service) sessionResult(ctx context.Context, op string, snap session.Snapshot, err error, resp *SessionResponse) error {
	if err != nil {
		logging.WithContext(ctx, s.logger).Debug("session rpc failed",
			logging.String("operation", op),
			logging.String("code", services.Code(err)),
			logging.Error(err))
		return encodeError(err)
	}
	resp.Session = api.FromSnapshot(snap)
	return nil
}

func (s *service) Save(req SaveRequest, resp *SaveResponse) error {
	rec, err := s.daemon.Save(s.requestContext(), daemon.SaveRequest{
		Converted:  req.Converted,
		OutputPath: req.Output,
		Name:       req.Name,
	})
	if err != nil {
		return encodeError(err)
	}
	resp.Recording = api.FromRecording(rec)
	return nil
}

func (s *service) List(req ListRequest, resp *ListResponse) error {
	items, err := s.daemon.ListRecordings(s.requestContext(), req.Limit)
	if err != nil {
		return encodeError(err)
	}
	resp.Items = api.FromRecordings(items)
	return nil
}

func (s *service) Remove(req RemoveRequest, resp *RemoveResponse) error {
	rec, err := s.daemon.RemoveRecording(s.requestContext(), req.ID, req.KeepFile)
	if err != nil {
		return encodeError(err)
	}
	resp.Recording = api.FromRecording(rec)
	return nil
}

func (s *service) Shutdown(_ ShutdownRequest, resp *ShutdownResponse) error {
	s.logger.Info("daemon shutdown requested via IPC",
		logging.String(logging.FieldEventType, "daemon_shutdown_requested"))
	// The run loop exits once Done closes.
	go s.daemon.Stop()
	resp.Stopping = true
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, err := s.daemon.TestNotification(s.requestContext())
	if err != nil {
		return encodeError(err)
	}
	resp.Sent = sent
	if !sent {
		resp.Message = "Notifications disabled (set notifications.ntfy_topic)"
	}
	return nil
}
