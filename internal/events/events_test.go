package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/agora/internal/model"
)

func TestDiscard(t *testing.T) {
	if err := Discard.Publish(context.Background(), TopicClaimAdded, ClaimAdded{}); err != nil {
		t.Fatalf("Discard.Publish: %v", err)
	}
	if err := Discard.Close(); err != nil {
		t.Fatalf("Discard.Close: %v", err)
	}
}

func TestPublishers_ImplementPublisher(t *testing.T) {
	var _ Publisher = (*NATSPublisher)(nil)
	var _ Publisher = Multi()
}

func TestDeliberationOf(t *testing.T) {
	for _, tc := range []struct {
		name  string
		event any
		want  string
	}{
		{"claim", ClaimAdded{DeliberationID: "d1"}, "d1"},
		{"claim pointer", &ClaimAdded{DeliberationID: "d1"}, "d1"},
		{"move", MoveRecorded{Move: &model.Move{DeliberationID: "d2"}}, "d2"},
		{"move without body", MoveRecorded{}, ""},
		{"labels", LabelsUpdated{DeliberationID: "d3"}, "d3"},
		{"restored", DeliberationRestored{DeliberationID: "d4"}, "d4"},
		{"export", ExportWritten{Destination: "s3://b/k"}, ""},
		{"foreign", "not an event", ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeliberationOf(tc.event); got != tc.want {
				t.Errorf("DeliberationOf = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(TopicClaimAdded, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	event := ClaimAdded{DeliberationID: "d1", Claim: &model.Node{ID: "c-1", Kind: model.NodeClaim, Text: "p"}, GraphVersion: 1}
	if err := pub.Publish(context.Background(), TopicClaimAdded, event); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	pub.conn.Flush()

	select {
	case msg := <-ch:
		var got ClaimAdded
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Claim.ID != "c-1" || got.GraphVersion != 1 {
			t.Errorf("got %+v", got)
		}
		if h := msg.Header.Get(HeaderDeliberation); h != "d1" {
			t.Errorf("%s header = %q, want d1", HeaderDeliberation, h)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_PublishMultipleTopics(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 4)
	sub, err := nc.ChanSubscribe(All, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	for _, tc := range []struct {
		topic string
		event any
	}{
		{TopicClaimAdded, ClaimAdded{DeliberationID: "d1"}},
		{TopicMoveRecorded, MoveRecorded{Move: &model.Move{ID: "m-1", Type: model.MoveAssert}}},
		{TopicLabelsUpdated, LabelsUpdated{DeliberationID: "d1", Semantics: model.SemanticsGrounded, Version: 2}},
		{TopicQuestionMaterialized, QuestionMaterialized{DeliberationID: "d1"}},
	} {
		if err := pub.Publish(context.Background(), tc.topic, tc.event); err != nil {
			t.Fatalf("Publish(%s): %v", tc.topic, err)
		}
	}
	pub.conn.Flush()

	for i := 0; i < 4; i++ {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestNATSPublisher_Close(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	// Publishing after close should fail.
	if err := pub.Publish(context.Background(), TopicClaimAdded, ClaimAdded{}); err == nil {
		t.Error("expected error publishing after close")
	}
}

type recordingPublisher struct {
	topics []string
	err    error
	closed bool
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, _ any) error {
	r.topics = append(r.topics, topic)
	return r.err
}

func (r *recordingPublisher) Close() error {
	r.closed = true
	return r.err
}

func TestMulti(t *testing.T) {
	boom := errors.New("boom")
	a := &recordingPublisher{}
	b := &recordingPublisher{err: boom}
	c := &recordingPublisher{}
	pub := Multi(a, b, c)

	err := pub.Publish(context.Background(), TopicLabelsUpdated, LabelsUpdated{})
	if !errors.Is(err, boom) {
		t.Fatalf("Publish err = %v, want boom", err)
	}
	for i, r := range []*recordingPublisher{a, b, c} {
		if len(r.topics) != 1 || r.topics[0] != TopicLabelsUpdated {
			t.Errorf("publisher %d saw %v", i, r.topics)
		}
	}
	if err := pub.Close(); !errors.Is(err, boom) {
		t.Fatalf("Close err = %v, want boom", err)
	}
	if !a.closed || !c.closed {
		t.Error("Close did not reach every publisher")
	}
}
