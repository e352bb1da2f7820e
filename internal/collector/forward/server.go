package forward

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/logsift/logsift/internal/collector/queue"
	"github.com/panjf2000/gnet/v2"
	"go.uber.org/zap"
)

const (
	DefaultPort = 24224

	maxClientBufferSize = 10 * 1024 * 1024
	startupGracePeriod  = 100 * time.Millisecond
	shutdownTimeout     = 2 * time.Second
)

// Server accepts length-prefixed msgpack frames over TCP and feeds the
// decoded records into the collector queue.
type Server struct {
	gnet.BuiltinEventEngine

	host  string
	port  int
	queue *queue.Queue

	ctx    context.Context
	cancel context.CancelFunc

	engine   *gnet.Engine
	engineMu sync.Mutex
	wg       sync.WaitGroup

	clientsMu sync.RWMutex
	clients   map[gnet.Conn]*bytes.Buffer

	totalFrames   atomic.Uint64
	invalidFrames atomic.Uint64
	activeConns   atomic.Int64

	logger *zap.Logger
}

func NewServer(host string, port int, eventQueue *queue.Queue, logger *zap.Logger) (*Server, error) {
	if host == "" {
		host = "0.0.0.0"
	}
	if port <= 0 {
		port = DefaultPort
	}
	if port > 65535 {
		return nil, fmt.Errorf("invalid forward port %d", port)
	}
	return &Server{
		host:    host,
		port:    port,
		queue:   eventQueue,
		clients: make(map[gnet.Conn]*bytes.Buffer),
		logger:  logger,
	}, nil
}

func (s *Server) Start() error {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	addr := fmt.Sprintf("tcp://%s:%d", s.host, s.port)

	errChan := make(chan error, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("Forward server starting", zap.Int("port", s.port))
		err := gnet.Run(s, addr,
			gnet.WithMulticore(true),
			gnet.WithReusePort(true),
		)
		if err != nil {
			s.logger.Error("Forward server failed", zap.Int("port", s.port), zap.Error(err))
		}
		errChan <- err
	}()

	select {
	case err := <-errChan:
		s.cancel()
		s.wg.Wait()
		return fmt.Errorf("failed to start forward server: %w", err)
	case <-time.After(startupGracePeriod):
		s.logger.Info("Forward server started", zap.Int("port", s.port))
		return nil
	}
}

func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}

	s.engineMu.Lock()
	engine := s.engine
	s.engineMu.Unlock()
	if engine != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		engine.Stop(ctx)
	}

	s.wg.Wait()
	s.logger.Info("Forward server stopped")
}

// TotalFrames returns the number of successfully decoded frames.
func (s *Server) TotalFrames() uint64 { return s.totalFrames.Load() }

// InvalidFrames returns the number of frames rejected during decoding.
func (s *Server) InvalidFrames() uint64 { return s.invalidFrames.Load() }

func (s *Server) OnBoot(engine gnet.Engine) gnet.Action {
	s.engineMu.Lock()
	s.engine = &engine
	s.engineMu.Unlock()
	return gnet.None
}

func (s *Server) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	s.clientsMu.Lock()
	s.clients[c] = &bytes.Buffer{}
	s.clientsMu.Unlock()

	count := s.activeConns.Add(1)
	s.logger.Debug(
		"Forward connection opened",
		zap.String("remote_addr", c.RemoteAddr().String()),
		zap.Int64("active_connections", count),
	)
	return nil, gnet.None
}

func (s *Server) OnClose(c gnet.Conn, err error) gnet.Action {
	s.clientsMu.Lock()
	delete(s.clients, c)
	s.clientsMu.Unlock()

	count := s.activeConns.Add(-1)
	s.logger.Debug(
		"Forward connection closed",
		zap.String("remote_addr", c.RemoteAddr().String()),
		zap.Int64("active_connections", count),
		zap.Error(err),
	)
	return gnet.None
}

func (s *Server) OnTraffic(c gnet.Conn) gnet.Action {
	s.clientsMu.RLock()
	buffer, exists := s.clients[c]
	s.clientsMu.RUnlock()
	if !exists {
		return gnet.Close
	}

	data, err := c.Next(-1)
	if err != nil {
		s.logger.Error("Failed to read from forward connection", zap.Error(err))
		return gnet.Close
	}
	if buffer.Len()+len(data) > maxClientBufferSize {
		s.logger.Warn(
			"Forward client exceeded buffer limit",
			zap.String("remote_addr", c.RemoteAddr().String()),
			zap.Int("buffer_size", buffer.Len()),
		)
		return gnet.Close
	}
	buffer.Write(data)

	frames, invalid, err := DecodeFrames(buffer)
	if invalid > 0 {
		s.invalidFrames.Add(uint64(invalid))
	}
	if err != nil {
		s.logger.Warn(
			"Unrecoverable forward stream",
			zap.String("remote_addr", c.RemoteAddr().String()),
			zap.Error(err),
		)
		s.invalidFrames.Add(1)
		return gnet.Close
	}

	now := time.Now().UTC()
	for _, frame := range frames {
		event := frame.Event(now)
		if event.Source == "" {
			event.Source = c.RemoteAddr().String()
		}
		if err := s.queue.Enqueue(s.ctx, event); err != nil {
			if errors.Is(err, context.Canceled) {
				return gnet.Close
			}
			s.logger.Warn("Failed to enqueue forwarded record", zap.Error(err))
			continue
		}
		s.totalFrames.Add(1)
	}
	return gnet.None
}
