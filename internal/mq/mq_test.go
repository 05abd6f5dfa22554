package mq

import (
	"context"
	"encoding/json"
	"testing"
)

func TestDecodeJobEvent(t *testing.T) {
	body, _ := json.Marshal(JobEventMessage{Event: "task.completed", Origin: "a", JobID: 3, TaskID: 9, To: "DONE"})
	msg, err := DecodeJobEvent(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.JobID != 3 || msg.TaskID != 9 || msg.To != "DONE" || msg.Origin != "a" {
		t.Fatalf("unexpected message %+v", msg)
	}

	if _, err := DecodeJobEvent([]byte(`{"event":"job.status_changed"}`)); err == nil {
		t.Fatalf("message without job id must be rejected")
	}
	if _, err := DecodeJobEvent([]byte(`not json`)); err == nil {
		t.Fatalf("malformed body must be rejected")
	}
}

func TestNilPublisherIsNoop(t *testing.T) {
	var p *RabbitPublisher
	if err := p.Publish(context.Background(), "job.status_changed", JobEventMessage{JobID: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
