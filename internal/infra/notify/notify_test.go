package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) Notify(ctx context.Context, msg Message) error {
	s.calls++
	return s.err
}

func TestMulti_SendsToAll(t *testing.T) {
	boom := errors.New("smtp down")
	a, b := &stubNotifier{err: boom}, &stubNotifier{}

	err := Multi{a, b}.Notify(context.Background(), Message{Actor: "support"})
	if !errors.Is(err, boom) {
		t.Errorf("expected first error, got %v", err)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("expected both notifiers called once, got %d and %d", a.calls, b.calls)
	}
}

func TestRoutingKey(t *testing.T) {
	if got := routingKey(ChannelSMS); got != "notify.sms" {
		t.Errorf("expected notify.sms, got %s", got)
	}
	if got := routingKey(""); got != "notify.email" {
		t.Errorf("expected email by default, got %s", got)
	}
}

func TestPublishing_Envelope(t *testing.T) {
	sent := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	msg := Message{
		Actor:   "support",
		Channel: ChannelEmail,
		Subject: "Deployment failed",
		Body:    "Job job-1 failed at stage deploy",
		JobID:   "job-1",
		SentAt:  sent,
	}

	pub, err := publishing(msg)
	if err != nil {
		t.Fatalf("publishing: %v", err)
	}
	if pub.ContentType != "application/json" || pub.DeliveryMode != amqp.Persistent {
		t.Errorf("unexpected envelope: %s mode %d", pub.ContentType, pub.DeliveryMode)
	}
	if pub.Headers["job_id"] != "job-1" {
		t.Errorf("expected job header, got %v", pub.Headers)
	}

	var decoded Message
	if err := json.Unmarshal(pub.Body, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Subject != msg.Subject || !decoded.SentAt.Equal(sent) {
		t.Errorf("expected round trip of %+v, got %+v", msg, decoded)
	}
}
