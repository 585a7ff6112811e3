package protocol

import (
	"strings"
)

// Registration replies.
const (
	UsernameOK      = "USERNAME_OK"
	UsernameTaken   = "USERNAME_TAKEN"
	UsernameInvalid = "USERNAME_INVALID"
)

const (
	NoticeBanned      = "Your message contains banned content"
	NoticeNoneFound   = "None of the selected users were found"
	NoticeRateLimited = "You are sending messages too fast"
)

// ClientList formats a roster line. An empty roster keeps the trailing space
// existing clients expect.
func ClientList(names []string) string {
	return "CLIENT_LIST " + strings.Join(names, ", ")
}

func Broadcast(sender, body string) string {
	return "MESSAGE_ALL " + sender + separator + body
}

func PersonalFrom(sender, body string) string {
	return "MESSAGE_PERSONAL from " + sender + separator + body
}

func PersonalTo(recipient, body string) string {
	return "MESSAGE_PERSONAL To " + recipient + separator + body
}

func PersonalToMany(recipients []string, body string) string {
	return "MESSAGE_PERSONAL To [" + strings.Join(recipients, ", ") + "]" + separator + body
}

func Except(sender, excluded, body string) string {
	return "MESSAGE_EXCEPT " + sender + " (except " + excluded + ")" + separator + body
}

// ServerNotice is a system message addressed to a single session.
func ServerNotice(text string) string {
	return "MESSAGE_PERSONAL Server" + separator + text
}

func UserNotFound(name string) string {
	return ServerNotice("User '" + name + "' not found")
}

// ValidUsername reports whether name can be addressed by the other commands.
func ValidUsername(name string, maxLen int) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	if maxLen > 0 && len(name) > maxLen {
		return false
	}
	return !strings.Contains(name, ",") && !strings.Contains(name, separator)
}
