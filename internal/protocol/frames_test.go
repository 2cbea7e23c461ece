package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecodeHello(t *testing.T) {
	raw := []byte(`{"type":"hello","role":"agent","agent_id":"a1"}`)
	typ, frame, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if typ != TypeHello {
		t.Fatalf("expected hello, got %s", typ)
	}
	hello, ok := frame.(*Hello)
	if !ok {
		t.Fatalf("expected *Hello, got %T", frame)
	}
	if hello.Role != "agent" || hello.AgentID != "a1" {
		t.Fatalf("unexpected hello fields: %+v", hello)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	raw := []byte(`{"type":"bogus"}`)
	if _, _, err := Decode(raw); err == nil {
		t.Fatalf("expected error for unknown frame type")
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	if _, _, err := Decode([]byte("not json")); err == nil {
		t.Fatalf("expected error for malformed json")
	}
}

func TestChatResponseCanonicalize(t *testing.T) {
	cases := []struct {
		name string
		in   ChatResponse
		want string
	}{
		{"reply wins", ChatResponse{Reply: "r", Text: "t", Message: "m"}, "r"},
		{"text folds into reply", ChatResponse{Text: "t"}, "t"},
		{"message folds into reply", ChatResponse{Message: "m"}, "m"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := tc.in
			r.Canonicalize()
			if r.Reply != tc.want {
				t.Fatalf("expected reply %q, got %q", tc.want, r.Reply)
			}
			if r.Text != "" || r.Message != "" {
				t.Fatalf("expected text/message cleared, got text=%q message=%q", r.Text, r.Message)
			}
		})
	}
}

func TestRawTimestampRoundTripsNumberAndString(t *testing.T) {
	var numTS RawTimestamp
	if err := json.Unmarshal([]byte("1700000000000"), &numTS); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	out, err := json.Marshal(numTS)
	if err != nil {
		t.Fatalf("marshal number: %v", err)
	}
	if string(out) != "1700000000000" {
		t.Fatalf("expected number preserved verbatim, got %s", out)
	}

	str := TimestampFromString("2026-08-06T00:00:00Z")
	out, err = json.Marshal(str)
	if err != nil {
		t.Fatalf("marshal string: %v", err)
	}
	if string(out) != `"2026-08-06T00:00:00Z"` {
		t.Fatalf("unexpected string encoding: %s", out)
	}
}

func TestRawTimestampIsZero(t *testing.T) {
	var ts RawTimestamp
	if !ts.IsZero() {
		t.Fatalf("expected zero value to report IsZero")
	}
	ts = TimestampFromString("x")
	if ts.IsZero() {
		t.Fatalf("expected populated timestamp to not report IsZero")
	}
}
