package chat

import (
	"bufio"
	"time"
)

// StartOutboundWriter drains the session's queue onto its connection. It is the
// only writer once registration has been answered. A write failure closes the
// session, which ends its read loop as well.
func StartOutboundWriter(s *Session) {
	go func() {
		w := bufio.NewWriter(s.conn)
		for {
			select {
			case msg := <-s.out:
				_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if _, err := w.WriteString(msg + "\n"); err != nil {
					s.log.Debug().Err(err).Msg("write failed")
					_ = s.Close()
					return
				}
				// Batch whatever is already queued before flushing.
				if len(s.out) > 0 {
					continue
				}
				if err := w.Flush(); err != nil {
					s.log.Debug().Err(err).Msg("flush failed")
					_ = s.Close()
					return
				}
			case <-s.done:
				return
			}
		}
	}()
}
