package chat

import (
	"github.com/rs/zerolog"

	"github.com/andy6609/line-relay/internal/filter"
	"github.com/andy6609/line-relay/internal/protocol"
)

// Router delivers decoded commands to their recipients.
type Router struct {
	reg    *Registry
	filter *filter.Filter
	log    zerolog.Logger
}

func NewRouter(reg *Registry, f *filter.Filter, logger *zerolog.Logger) *Router {
	r := &Router{reg: reg, filter: f, log: zerolog.Nop()}
	if logger != nil {
		r.log = logger.With().Str("component", "router").Logger()
	}
	return r
}

// Route handles one command from a registered sender.
func (r *Router) Route(sender *Session, cmd protocol.Command) {
	switch cmd.Kind {
	case protocol.KindRequestUserList:
		r.SendRoster(sender)
		return
	case protocol.KindDisconnect:
		_ = sender.Close()
		return
	case protocol.KindBroadcast, protocol.KindDirect, protocol.KindMultiple, protocol.KindExcept:
	default:
		return
	}

	if r.filter.ContainsBanned(cmd.Body) {
		BlockedMessages.Inc()
		r.deliver(sender, protocol.ServerNotice(protocol.NoticeBanned))
		r.log.Info().Str("from", sender.Username).Str("body", cmd.Body).Msg("blocked message with banned content")
		return
	}

	switch cmd.Kind {
	case protocol.KindBroadcast:
		r.broadcast(sender, cmd.Body)
	case protocol.KindDirect:
		r.direct(sender, cmd.Target, cmd.Body)
	case protocol.KindMultiple:
		r.multiple(sender, cmd.Targets, cmd.Body)
	case protocol.KindExcept:
		r.except(sender, cmd.Target, cmd.Body)
	}
}

func (r *Router) broadcast(sender *Session, body string) {
	line := protocol.Broadcast(sender.Username, body)
	for _, s := range r.reg.Sessions() {
		r.deliver(s, line)
	}
	r.log.Info().Str("from", sender.Username).Str("body", body).Msg("message to all")
}

func (r *Router) direct(sender *Session, target, body string) {
	recipient, ok := r.reg.LookupFold(target)
	if !ok {
		r.deliver(sender, protocol.UserNotFound(target))
		r.log.Info().Str("from", sender.Username).Str("to", target).Msg("recipient not found")
		return
	}
	r.deliver(recipient, protocol.PersonalFrom(sender.Username, body))
	r.deliver(sender, protocol.PersonalTo(recipient.Username, body))
	r.log.Info().Str("from", sender.Username).Str("to", recipient.Username).Str("body", body).Msg("private message")
}

func (r *Router) multiple(sender *Session, targets []string, body string) {
	seen := make(map[*Session]struct{}, len(targets))
	delivered := make([]string, 0, len(targets))

	line := protocol.PersonalFrom(sender.Username, body)
	for _, t := range targets {
		recipient, ok := r.reg.LookupFold(t)
		if !ok {
			continue
		}
		if _, dup := seen[recipient]; dup {
			continue
		}
		seen[recipient] = struct{}{}
		r.deliver(recipient, line)
		delivered = append(delivered, recipient.Username)
	}

	if len(delivered) == 0 {
		r.deliver(sender, protocol.ServerNotice(protocol.NoticeNoneFound))
		r.log.Info().Str("from", sender.Username).Strs("to", targets).Msg("no valid recipients")
		return
	}
	r.deliver(sender, protocol.PersonalToMany(delivered, body))
	r.log.Info().Str("from", sender.Username).Strs("to", delivered).Str("body", body).Msg("personal message to multiple")
}

func (r *Router) except(sender *Session, excluded, body string) {
	skip, ok := r.reg.LookupFold(excluded)
	if !ok {
		r.deliver(sender, protocol.UserNotFound(excluded))
		r.log.Info().Str("from", sender.Username).Str("except", excluded).Msg("excluded user not found")
		return
	}

	line := protocol.Except(sender.Username, skip.Username, body)
	for _, s := range r.reg.Sessions() {
		if s != skip {
			r.deliver(s, line)
		}
	}
	r.log.Info().Str("from", sender.Username).Str("except", skip.Username).Str("body", body).Msg("message to all except")
}

// SendRoster sends to the names of every other registered session.
func (r *Router) SendRoster(to *Session) {
	names := r.reg.Names()
	others := make([]string, 0, len(names))
	for _, n := range names {
		if n != to.Username {
			others = append(others, n)
		}
	}
	r.deliver(to, protocol.ClientList(others))
}

// BroadcastRoster sends every registered session its own view of the roster,
// all built from one snapshot.
func (r *Router) BroadcastRoster() {
	sessions := r.reg.Sessions()
	for _, s := range sessions {
		others := make([]string, 0, len(sessions)-1)
		for _, o := range sessions {
			if o != s {
				others = append(others, o.Username)
			}
		}
		r.deliver(s, protocol.ClientList(others))
	}
}

func (r *Router) deliver(s *Session, line string) {
	if !s.Send(line) {
		r.log.Debug().Str("to", s.Username).Msg("delivery skipped")
	}
}
