package gateway

import (
	"encoding/json"
	"testing"
)

func TestParseFrameAuthenticate(t *testing.T) {
	t.Parallel()

	f, err := ParseFrame([]byte(`{"type":"authenticate","token":"abc.def.ghi"}`))
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if f.Type != "authenticate" {
		t.Errorf("Type = %q, want %q", f.Type, "authenticate")
	}
	if f.Token != "abc.def.ghi" {
		t.Errorf("Token = %q, want %q", f.Token, "abc.def.ghi")
	}
}

func TestParseFrameCall(t *testing.T) {
	t.Parallel()

	f, err := ParseFrame([]byte(`{"type":"call","procedure":"getTable","params":{"name":"widgets"}}`))
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if f.Procedure != "getTable" {
		t.Errorf("Procedure = %q, want %q", f.Procedure, "getTable")
	}
	if string(f.Params) != `{"name":"widgets"}` {
		t.Errorf("Params = %s, want %s", f.Params, `{"name":"widgets"}`)
	}
}

func TestParseFrameInvalidJSON(t *testing.T) {
	t.Parallel()

	if _, err := ParseFrame([]byte(`not json`)); err == nil {
		t.Fatal("ParseFrame() error = nil, want error for invalid JSON")
	}
}

func TestEncodeAuthenticated(t *testing.T) {
	t.Parallel()

	var got string
	if err := json.Unmarshal(EncodeAuthenticated(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != "authenticated" {
		t.Errorf("got %q, want %q", got, "authenticated")
	}
}

func TestEncodeResult(t *testing.T) {
	t.Parallel()

	raw, err := EncodeResult(map[string]any{"ok": true})
	if err != nil {
		t.Fatalf("EncodeResult() error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["ok"] != true {
		t.Errorf("ok = %v, want true", got["ok"])
	}
}

func TestEncodeError(t *testing.T) {
	t.Parallel()

	var got errorFrame
	if err := json.Unmarshal(EncodeError("boom"), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Error != "boom" {
		t.Errorf("Error = %q, want %q", got.Error, "boom")
	}
}

func TestEncodePingPong(t *testing.T) {
	t.Parallel()

	var ping Frame
	if err := json.Unmarshal(EncodePing(HeartbeatPayload), &ping); err != nil {
		t.Fatalf("unmarshal ping: %v", err)
	}
	if ping.Type != "ping" || ping.Payload != HeartbeatPayload {
		t.Errorf("ping = %+v, want type=ping payload=%q", ping, HeartbeatPayload)
	}

	var pong Frame
	if err := json.Unmarshal(EncodePong("Hello"), &pong); err != nil {
		t.Fatalf("unmarshal pong: %v", err)
	}
	if pong.Type != "pong" || pong.Payload != "Hello" {
		t.Errorf("pong = %+v, want type=pong payload=%q", pong, "Hello")
	}
}
