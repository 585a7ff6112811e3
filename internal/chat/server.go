package chat

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/andy6609/line-relay/internal/config"
	"github.com/andy6609/line-relay/internal/filter"
	"github.com/andy6609/line-relay/internal/log"
)

const maxAcceptDelay = time.Second

// Server accepts connections and owns the registry, router and dispatch pool.
type Server struct {
	cfg    config.Config
	logger *zerolog.Logger
	reg    *Registry
	router *Router
	disp   *Dispatcher

	listener   net.Listener
	acceptDone chan struct{}
	running    atomic.Bool
	stopping   atomic.Bool
	done       chan struct{}

	conns sync.WaitGroup
	mu    sync.Mutex
	live  map[*Session]struct{}
}

func NewServer(cfg config.Config, logger *zerolog.Logger) *Server {
	if logger == nil {
		logger = log.Nop()
	}
	reg := NewRegistry()
	router := NewRouter(reg, filter.New(cfg.BannedPhrases), logger)
	return &Server{
		cfg:    cfg,
		logger: logger,
		reg:    reg,
		router: router,
		disp:   NewDispatcher(cfg.Workers, cfg.QueueSize, router, logger),
		done:   make(chan struct{}),
		live:   make(map[*Session]struct{}),
	}
}

// Start binds the configured address and begins accepting. A bind failure is
// returned to the caller.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}
	s.listener = ln
	s.acceptDone = make(chan struct{})
	s.running.Store(true)

	s.disp.Start()
	go s.acceptLoop(ln)

	s.logger.Info().Str("addr", ln.Addr().String()).Strs("banned_phrases", s.router.filter.Phrases()).Msg("server started")
	return nil
}

// Addr is the bound listener address, nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Running() bool {
	return s.running.Load()
}

// Done is closed once Shutdown has finished.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Clients lists the registered sessions.
func (s *Server) Clients() []ClientInfo {
	sessions := s.reg.Sessions()
	out := make([]ClientInfo, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.Info())
	}
	return out
}

// Shutdown disconnects every client, closes the listener and stops the
// workers, then waits for connection goroutines until ctx expires. Only the
// first call does anything; later calls return ErrServerClosed.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.stopping.CompareAndSwap(false, true) {
		return ErrServerClosed
	}
	s.running.Store(false)
	s.logger.Info().Msg("shutting down")

	drained := s.reg.Drain()
	for _, sess := range drained {
		if err := sess.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn().Err(err).Str("username", sess.Username).Msg("error disconnecting client")
		}
	}

	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn().Err(err).Msg("error closing listener")
		}
		<-s.acceptDone
	}

	s.mu.Lock()
	for sess := range s.live {
		_ = sess.Close()
	}
	s.mu.Unlock()

	s.disp.Stop()

	settled := make(chan struct{})
	go func() {
		s.conns.Wait()
		s.disp.Wait()
		close(settled)
	}()

	var err error
	select {
	case <-settled:
		s.logger.Info().Int("clients", len(drained)).Msg("shutdown complete")
	case <-ctx.Done():
		err = ctx.Err()
		s.logger.Warn().Err(err).Msg("shutdown timed out, some connections may still be closing")
	}
	close(s.done)
	return err
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer close(s.acceptDone)

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}
			if errors.Is(err, net.ErrClosed) {
				s.logger.Error().Err(err).Msg("listener closed unexpectedly")
				return
			}
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay *= 2
			}
			if delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			s.logger.Warn().Err(err).Dur("retry_in", delay).Msg("error accepting client")
			time.Sleep(delay)
			continue
		}
		delay = 0

		s.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("connection accepted")

		sess := NewSession(conn, s.cfg.OutboundBuffer, s.newLimiter(), s.logger)
		if !s.track(sess) {
			_ = conn.Close()
			continue
		}
		s.conns.Add(1)
		go s.handleConn(sess)
	}
}

func (s *Server) newLimiter() *rate.Limiter {
	rl := s.cfg.RateLimit
	if rl.MessagesPerSecond <= 0 {
		return nil
	}
	burst := rl.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rl.MessagesPerSecond), burst)
}

// track records a live connection so Shutdown can close sessions that have
// not registered yet.
func (s *Server) track(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping.Load() {
		return false
	}
	s.live[sess] = struct{}{}
	return true
}

func (s *Server) untrack(sess *Session) {
	s.mu.Lock()
	delete(s.live, sess)
	s.mu.Unlock()
}
