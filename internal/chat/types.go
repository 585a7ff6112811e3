package chat

import "time"

type SessionState int32

const (
	StateConnecting SessionState = iota
	StateRegistered
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateRegistered:
		return "registered"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// ClientInfo is a read-only view of a registered session.
type ClientInfo struct {
	Username    string    `json:"username"`
	SessionID   string    `json:"session_id"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
}

var (
	ErrUsernameTaken   = errorString("username_taken")
	ErrUsernameInvalid = errorString("username_invalid")
	ErrRegistryClosed  = errorString("registry_closed")
	ErrServerClosed    = errorString("server_closed")
)

type errorString string

func (e errorString) Error() string { return string(e) }
