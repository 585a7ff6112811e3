package chat

import (
	"bufio"
	"errors"
	"io"
	"net"

	"github.com/andy6609/line-relay/internal/protocol"
)

var errLineTooLong = errors.New("line too long")

// handleConn runs one connection from handshake to teardown.
func (s *Server) handleConn(sess *Session) {
	defer s.conns.Done()
	defer s.untrack(sess)

	reader := bufio.NewReader(sess.conn)

	name, err := readLine(reader, s.cfg.MaxLineLength)
	if err != nil && !errors.Is(err, errLineTooLong) {
		_ = sess.Close()
		return
	}

	if err != nil || !protocol.ValidUsername(name, s.cfg.MaxUsernameLength) {
		RegistrationsTotal.WithLabelValues("invalid").Inc()
		_ = sess.writeDirect(protocol.UsernameInvalid)
		_ = sess.Close()
		sess.log.Info().Str("username", name).Msg("connection rejected: invalid username")
		return
	}
	sess.log = sess.log.With().Str("username", name).Logger()

	if err := s.reg.TryRegister(name, sess); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			RegistrationsTotal.WithLabelValues("taken").Inc()
			_ = sess.writeDirect(protocol.UsernameTaken)
			sess.log.Info().Msg("connection rejected: username is already taken")
		}
		_ = sess.Close()
		return
	}
	defer s.teardown(sess)

	if !sess.markRegistered() {
		return
	}
	if err := sess.writeDirect(protocol.UsernameOK); err != nil {
		return
	}
	RegistrationsTotal.WithLabelValues("ok").Inc()
	StartOutboundWriter(sess)

	sess.log.Info().Msg("client connected")
	s.router.BroadcastRoster()

	s.readLoop(sess, reader)
}

func (s *Server) readLoop(sess *Session, reader *bufio.Reader) {
	for {
		line, err := readLine(reader, s.cfg.MaxLineLength)
		if errors.Is(err, errLineTooLong) {
			sess.log.Warn().Int("max", s.cfg.MaxLineLength).Msg("dropping oversized line")
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				sess.log.Debug().Err(err).Msg("read failed")
			}
			return
		}

		cmd, err := protocol.Parse(line)
		if err != nil {
			MessagesTotal.WithLabelValues("malformed").Inc()
			sess.log.Debug().Err(err).Str("line", line).Msg("dropping command")
			continue
		}

		switch cmd.Kind {
		case protocol.KindDisconnect:
			return
		case protocol.KindRequestUserList:
			s.router.SendRoster(sess)
			continue
		}

		if !sess.allow() {
			RateLimitedMessages.Inc()
			sess.Send(protocol.ServerNotice(protocol.NoticeRateLimited))
			continue
		}
		if !s.disp.Submit(sess, cmd) {
			return
		}
	}
}

// teardown runs once per registered session, whichever way its loop ended.
func (s *Server) teardown(sess *Session) {
	removed := s.reg.Remove(sess.Username, sess)
	if err := sess.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		sess.log.Debug().Err(err).Msg("close failed")
	}
	if !removed {
		return
	}
	sess.log.Info().Msg("client disconnected")
	s.router.BroadcastRoster()
}

// readLine returns the next line without its terminator. Lines longer than
// max bytes are consumed and reported as errLineTooLong.
func readLine(r *bufio.Reader, max int) (string, error) {
	var (
		buf     []byte
		tooLong bool
	)
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return "", err
		}
		if !tooLong {
			buf = append(buf, chunk...)
			if max > 0 && len(buf) > max {
				tooLong, buf = true, nil
			}
		}
		if !isPrefix {
			break
		}
	}
	if tooLong {
		return "", errLineTooLong
	}
	return string(buf), nil
}
