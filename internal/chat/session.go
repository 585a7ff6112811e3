package chat

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const writeTimeout = 10 * time.Second

// Session is the server side of one client connection. It owns the conn;
// all writes after registration go through the out queue so only the writer
// goroutine touches the socket.
type Session struct {
	ID          string
	Username    string
	ConnectedAt time.Time

	conn      net.Conn
	out       chan string
	done      chan struct{}
	state     atomic.Int32
	closeOnce sync.Once
	limiter   *rate.Limiter
	log       zerolog.Logger
}

// NewSession wraps conn. A nil limiter disables rate limiting.
func NewSession(conn net.Conn, outBuffer int, limiter *rate.Limiter, logger *zerolog.Logger) *Session {
	if outBuffer <= 0 {
		outBuffer = 64
	}
	s := &Session{
		ID:          uuid.NewString(),
		ConnectedAt: time.Now(),
		conn:        conn,
		out:         make(chan string, outBuffer),
		done:        make(chan struct{}),
		limiter:     limiter,
	}
	if logger != nil {
		s.log = logger.With().Str("session", s.ID).Str("remote", s.RemoteAddr()).Logger()
	} else {
		s.log = zerolog.Nop()
	}
	return s
}

func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) RemoteAddr() string {
	if s.conn == nil || s.conn.RemoteAddr() == nil {
		return ""
	}
	return s.conn.RemoteAddr().String()
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Info() ClientInfo {
	return ClientInfo{
		Username:    s.Username,
		SessionID:   s.ID,
		RemoteAddr:  s.RemoteAddr(),
		ConnectedAt: s.ConnectedAt,
	}
}

// markRegistered moves Connecting -> Registered. It fails once the session
// has been closed.
func (s *Session) markRegistered() bool {
	return s.state.CompareAndSwap(int32(StateConnecting), int32(StateRegistered))
}

// Send queues a line for the writer without blocking. A full queue drops the
// line so one stalled client never holds up the sender.
func (s *Session) Send(line string) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.out <- line:
		return true
	case <-s.done:
		return false
	default:
		OutboundDropped.Inc()
		s.log.Warn().Str("username", s.Username).Msg("outbound queue full, dropping line")
		return false
	}
}

// writeDirect writes straight to the socket. Only valid before the writer
// goroutine is started.
func (s *Session) writeDirect(line string) error {
	if s.conn == nil {
		return net.ErrClosed
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := s.conn.Write([]byte(line + "\n"))
	return err
}

func (s *Session) allow() bool {
	return s.limiter == nil || s.limiter.Allow()
}

// Close moves the session to Disconnected and closes the transport. Only the
// first call has any effect.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateDisconnected))
		close(s.done)
		if s.conn != nil {
			err = s.conn.Close()
		}
	})
	return err
}
