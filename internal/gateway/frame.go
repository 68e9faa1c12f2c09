package gateway

import (
	"encoding/json"
	"fmt"
)

// HeartbeatPayload is the fixed opaque ping payload the session sends on its
// heartbeat timer. A pong not carrying this exact value closes the session
// (spec.md §4.3, §6).
const HeartbeatPayload = "Hello"

// Frame is the wire-format envelope for every WebSocket text message, tagged
// by Type (spec.md §6's "UTF-8 JSON over text frames"). Inbound variants use
// Token/Procedure/Params/Data/Payload as the type requires; outbound
// "authenticated" and action results are sent as bare JSON values rather
// than through this envelope — see EncodeAuthenticated/EncodeResult.
type Frame struct {
	Type      string          `json:"type"`
	Token     string          `json:"token,omitempty"`
	Procedure string          `json:"procedure,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Payload   string          `json:"payload,omitempty"`
}

// ParseFrame decodes an inbound text message into a Frame.
func ParseFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	return f, nil
}

// EncodeAuthenticated returns the bare JSON string frame sent after a
// successful authenticate call.
func EncodeAuthenticated() []byte {
	b, _ := json.Marshal("authenticated")
	return b
}

// EncodeResult returns result serialized as the bare JSON frame body — the
// outbound shape for both call replies and delivery frames.
func EncodeResult(result any) ([]byte, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return b, nil
}

// errorFrame is the outbound {error: "..."} shape (spec.md §6, §7).
type errorFrame struct {
	Error string `json:"error"`
}

// EncodeError returns the {error:"..."} frame for a failed call, unknown
// procedure, or unparseable inbound message.
func EncodeError(message string) []byte {
	b, _ := json.Marshal(errorFrame{Error: message})
	return b
}

// EncodePing returns a {type:"ping", payload} frame, used for the session's
// own heartbeat and never expected from a well-behaved client.
func EncodePing(payload string) []byte {
	b, _ := json.Marshal(Frame{Type: "ping", Payload: payload})
	return b
}

// EncodePong returns a {type:"pong", payload} frame echoing payload, the
// reply to a client-initiated ping.
func EncodePong(payload string) []byte {
	b, _ := json.Marshal(Frame{Type: "pong", Payload: payload})
	return b
}
