package gateway

import (
	"errors"
	"fmt"
)

// ErrClosed marks a recoverable loss of the connection: a network read or
// write failure, or a dial that did not complete. The session reconnects.
var ErrClosed = errors.New("gateway: connection closed")

var (
	errReconnectRequested = errors.New("gateway: server requested reconnect")
	errZombie             = errors.New("gateway: heartbeat not acknowledged")
)

// Close codes sent by the gateway that change how the session recovers.
const (
	CloseUnknownError         = 4000
	CloseAuthenticationFailed = 4004
	CloseInvalidSeq           = 4007
	CloseSessionTimedOut      = 4009
	CloseInvalidShard         = 4010
	CloseShardingRequired     = 4011
	CloseInvalidAPIVersion    = 4012
	CloseInvalidIntents       = 4013
	CloseDisallowedIntents    = 4014
)

// CloseError is a close frame received from the gateway.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("gateway: closed with code %d", e.Code)
	}
	return fmt.Sprintf("gateway: closed with code %d: %s", e.Code, e.Reason)
}

// Fatal reports whether reconnecting cannot succeed without operator action.
func (e *CloseError) Fatal() bool {
	switch e.Code {
	case CloseAuthenticationFailed, CloseInvalidShard, CloseShardingRequired,
		CloseInvalidAPIVersion, CloseInvalidIntents, CloseDisallowedIntents:
		return true
	}
	return false
}

// clearsSession reports whether the code invalidates the resumable session.
func (e *CloseError) clearsSession() bool {
	return e.Code == CloseInvalidSeq || e.Code == CloseSessionTimedOut
}

// ProtocolError is a frame the session cannot interpret. It ends Run.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err == nil {
		return "gateway: protocol error: " + e.Reason
	}
	return fmt.Sprintf("gateway: protocol error: %s: %v", e.Reason, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
