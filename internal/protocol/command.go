// Package protocol parses and formats the relay's newline-delimited wire lines.
package protocol

import (
	"errors"
	"strings"
)

// Client -> server verbs.
const (
	RequestUserList  = "REQUEST_USER_LIST"
	ClientDisconnect = "CLIENT_DISCONNECT"

	prefixAll      = "MESSAGE_ALL "
	prefixTo       = "MESSAGE_TO "
	prefixMultiple = "MESSAGE_TO_MULTIPLE "
	prefixExcept   = "MESSAGE_EXCEPT "

	separator = ": "
)

var (
	ErrMalformed      = errors.New("malformed command")
	ErrUnknownCommand = errors.New("unknown command")
)

type Kind int

const (
	KindUnknown Kind = iota
	KindRequestUserList
	KindDisconnect
	KindBroadcast
	KindDirect
	KindMultiple
	KindExcept
)

func (k Kind) String() string {
	switch k {
	case KindRequestUserList:
		return "user_list"
	case KindDisconnect:
		return "disconnect"
	case KindBroadcast:
		return "broadcast"
	case KindDirect:
		return "direct"
	case KindMultiple:
		return "multiple"
	case KindExcept:
		return "except"
	default:
		return "unknown"
	}
}

// Command is one decoded client line.
//
// Target holds the addressed (or excluded) name exactly as typed, Targets the
// trimmed, non-empty names of a multi-recipient send.
type Command struct {
	Kind    Kind
	Target  string
	Targets []string
	Body    string
}

// Parse decodes a single line with its line terminator already removed.
func Parse(line string) (Command, error) {
	line = strings.TrimRight(line, "\r\n")

	switch {
	case line == RequestUserList:
		return Command{Kind: KindRequestUserList}, nil
	case line == ClientDisconnect:
		return Command{Kind: KindDisconnect}, nil
	case strings.HasPrefix(line, prefixAll):
		body := strings.TrimPrefix(line, prefixAll)
		if body == "" {
			return Command{}, ErrMalformed
		}
		return Command{Kind: KindBroadcast, Body: body}, nil
	case strings.HasPrefix(line, prefixTo):
		return addressed(KindDirect, strings.TrimPrefix(line, prefixTo))
	case strings.HasPrefix(line, prefixMultiple):
		cmd, err := addressed(KindMultiple, strings.TrimPrefix(line, prefixMultiple))
		if err != nil {
			return Command{}, err
		}
		cmd.Targets = SplitRecipients(cmd.Target)
		return cmd, nil
	case strings.HasPrefix(line, prefixExcept):
		return addressed(KindExcept, strings.TrimPrefix(line, prefixExcept))
	}
	return Command{}, ErrUnknownCommand
}

func addressed(kind Kind, rest string) (Command, error) {
	target, body, ok := strings.Cut(rest, separator)
	if !ok || body == "" {
		return Command{}, ErrMalformed
	}
	return Command{Kind: kind, Target: target, Body: body}, nil
}

// SplitRecipients splits a comma separated list, trimming each entry and
// skipping empty ones.
func SplitRecipients(list string) []string {
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
