// Package protocol defines the WebSocket wire frames exchanged between
// agents, clients, and the relay, and a decoder that discriminates on the
// frame's "type" field before committing to a concrete struct.
package protocol

import (
	"encoding/json"
	"fmt"
)

// RawTimestamp preserves a ts value exactly as it arrived on the wire,
// whether the sender encoded it as a JSON number or a JSON string, and
// re-encodes it the same way.
type RawTimestamp struct {
	raw json.RawMessage
}

func (t RawTimestamp) MarshalJSON() ([]byte, error) {
	if len(t.raw) == 0 {
		return []byte("null"), nil
	}
	return t.raw, nil
}

func (t *RawTimestamp) UnmarshalJSON(b []byte) error {
	t.raw = append(t.raw[:0], b...)
	return nil
}

// String returns the raw wire representation for logging.
func (t RawTimestamp) String() string { return string(t.raw) }

// IsZero reports whether no timestamp was ever set.
func (t RawTimestamp) IsZero() bool { return len(t.raw) == 0 }

// TimestampFromString wraps a string value as a RawTimestamp, for frames
// the relay itself stamps with a server-side clock.
func TimestampFromString(s string) RawTimestamp {
	b, _ := json.Marshal(s)
	return RawTimestamp{raw: b}
}

// FrameType enumerates the "type" discriminator values spec'd on the wire.
type FrameType string

const (
	TypeHello          FrameType = "hello"
	TypePresence       FrameType = "presence"
	TypePresenceReq    FrameType = "presence.request"
	TypeChatRequest    FrameType = "chat.request"
	TypeChatResponse   FrameType = "chat.response"
	TypeMessageSent    FrameType = "message_sent"
	TypeError          FrameType = "error"
	TypePing           FrameType = "ping"
	TypePong           FrameType = "pong"
)

// envelope is used only to peek at the discriminator before deciding which
// concrete frame to unmarshal the raw bytes into.
type envelope struct {
	Type FrameType `json:"type"`
}

// Hello is the first frame either endpoint must send.
type Hello struct {
	Type     FrameType    `json:"type"`
	Role     string       `json:"role"`
	AgentID  string       `json:"agent_id,omitempty"`
	DeviceID string       `json:"device_id,omitempty"`
	TenantID string       `json:"tenant_id,omitempty"`
	TS       RawTimestamp `json:"ts,omitempty"`
}

// Presence announces an agent's online state to its bound clients.
type Presence struct {
	Type    FrameType    `json:"type"`
	AgentID string       `json:"agent_id"`
	Online  bool         `json:"online"`
	TS      RawTimestamp `json:"ts"`
}

// PresenceRequest asks the relay to re-send the current Presence snapshot.
type PresenceRequest struct {
	Type    FrameType `json:"type"`
	AgentID string    `json:"agent_id,omitempty"`
}

// ChatRequest travels client -> agent.
type ChatRequest struct {
	Type      FrameType    `json:"type"`
	RequestID string       `json:"request_id"`
	AgentID   string       `json:"agent_id"`
	SessionID string       `json:"session_id"`
	Text      string       `json:"text"`
	TS        RawTimestamp `json:"ts,omitempty"`
}

// ChatResponse travels agent -> clients. Reply/Text/Message are mutually
// interchangeable on the wire; readers should canonicalize to Reply.
type ChatResponse struct {
	Type      FrameType    `json:"type"`
	RequestID string       `json:"request_id"`
	AgentID   string       `json:"agent_id"`
	SessionID string       `json:"session_id"`
	Reply     string       `json:"reply,omitempty"`
	Text      string       `json:"text,omitempty"`
	Message   string       `json:"message,omitempty"`
	TS        RawTimestamp `json:"ts,omitempty"`
}

// Canonicalize folds Text/Message into Reply per the egress rule and
// clears the alternate fields so only one ever goes out on the wire.
func (r *ChatResponse) Canonicalize() {
	if r.Reply == "" {
		if r.Text != "" {
			r.Reply = r.Text
		} else if r.Message != "" {
			r.Reply = r.Message
		}
	}
	r.Text = ""
	r.Message = ""
}

// MessageSent acknowledges a ChatRequest back to its sender.
type MessageSent struct {
	Type      FrameType `json:"type"`
	RequestID string    `json:"request_id"`
}

// ErrorFrame is the uniform error shape sent over either endpoint.
type ErrorFrame struct {
	Type      FrameType `json:"type"`
	RequestID string    `json:"request_id,omitempty"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
}

// PingPong covers both directions of the keepalive frame.
type PingPong struct {
	Type FrameType    `json:"type"`
	TS   RawTimestamp `json:"ts,omitempty"`
}

// Decode inspects raw's "type" field and unmarshals into the matching
// concrete frame type. An unrecognized type is a decode error, per the
// strict-validation requirement on both endpoints.
func Decode(raw []byte) (FrameType, interface{}, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, fmt.Errorf("decode envelope: %w", err)
	}

	var target interface{}
	switch env.Type {
	case TypeHello:
		target = &Hello{}
	case TypePresence:
		target = &Presence{}
	case TypePresenceReq:
		target = &PresenceRequest{}
	case TypeChatRequest:
		target = &ChatRequest{}
	case TypeChatResponse:
		target = &ChatResponse{}
	case TypeMessageSent:
		target = &MessageSent{}
	case TypeError:
		target = &ErrorFrame{}
	case TypePing, TypePong:
		target = &PingPong{}
	default:
		return env.Type, nil, fmt.Errorf("unknown frame type %q", env.Type)
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return env.Type, nil, fmt.Errorf("decode %s frame: %w", env.Type, err)
	}
	return env.Type, target, nil
}
