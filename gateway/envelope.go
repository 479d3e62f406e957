// Package gateway maintains one resumable streaming connection to the
// platform's event gateway.
package gateway

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// APIVersion is the gateway protocol version requested on connect.
const APIVersion = 10

// Opcode identifies the kind of gateway frame.
type Opcode int

const (
	OpDispatch       Opcode = 0
	OpHeartbeat      Opcode = 1
	OpIdentify       Opcode = 2
	OpResume         Opcode = 6
	OpReconnect      Opcode = 7
	OpInvalidSession Opcode = 9
	OpHello          Opcode = 10
	OpHeartbeatAck   Opcode = 11
)

func (o Opcode) String() string {
	switch o {
	case OpDispatch:
		return "dispatch"
	case OpHeartbeat:
		return "heartbeat"
	case OpIdentify:
		return "identify"
	case OpResume:
		return "resume"
	case OpReconnect:
		return "reconnect"
	case OpInvalidSession:
		return "invalid_session"
	case OpHello:
		return "hello"
	case OpHeartbeatAck:
		return "heartbeat_ack"
	}
	return fmt.Sprintf("op%d", int(o))
}

// Envelope is one decoded inbound frame.
type Envelope struct {
	Op       Opcode              `json:"op"`
	Type     string              `json:"t,omitempty"`
	Data     jsoniter.RawMessage `json:"d"`
	Sequence *int64              `json:"s,omitempty"`
}

// outbound frame
type frame struct {
	Op   Opcode `json:"op"`
	Data any    `json:"d"`
}

type hello struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

// Properties describe the connecting client in the identify handshake.
type Properties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

type identify struct {
	Token      string     `json:"token"`
	Intents    int        `json:"intents"`
	Properties Properties `json:"properties"`
	Compress   bool       `json:"compress,omitempty"`
}

type resume struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Sequence  *int64 `json:"seq"`
}

func decodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, &ProtocolError{Reason: "decode envelope", Err: err}
	}
	return env, nil
}
