package services

import (
	"testing"

	"github.com/nats-io/nats.go"
)

func TestReplyTargetPrefersReplySubject(t *testing.T) {
	msg := &nats.Msg{
		Reply: "_INBOX.abc123",
		Data:  []byte(`{"reply_to": "health.response.client.1"}`),
	}
	if got := replyTarget(msg); got != "_INBOX.abc123" {
		t.Errorf("expected NATS reply subject to win, got %q", got)
	}
}

func TestReplyTargetFallsBackToPayload(t *testing.T) {
	msg := &nats.Msg{Data: []byte(`{"reply_to": "health.response.client.1"}`)}
	if got := replyTarget(msg); got != "health.response.client.1" {
		t.Errorf("expected payload reply_to, got %q", got)
	}
}

func TestReplyTargetEmpty(t *testing.T) {
	for _, data := range []string{"{}", "", "not json"} {
		msg := &nats.Msg{Data: []byte(data)}
		if got := replyTarget(msg); got != "" {
			t.Errorf("payload %q: expected no reply target, got %q", data, got)
		}
	}
}
