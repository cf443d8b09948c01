package mail

import (
	"context"
	"encoding/json"
	"fmt"
)

// Queue is implemented by aws.Publisher.
type Queue interface {
	Send(ctx context.Context, messageBody string, attributes map[string]string) error
}

// QueueSender enqueues messages as JSON mail jobs for the worker to deliver.
type QueueSender struct {
	queue Queue
	from  string
}

func NewQueueSender(q Queue, from string) *QueueSender {
	return &QueueSender{queue: q, from: from}
}

func (s *QueueSender) Send(ctx context.Context, msg Message) error {
	if msg.From == "" {
		msg.From = s.from
	}
	if err := msg.validate(); err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal mail job: %w", err)
	}
	if err := s.queue.Send(ctx, string(body), map[string]string{"kind": msg.Kind}); err != nil {
		return fmt.Errorf("enqueue mail: %w", err)
	}
	return nil
}

// Decode parses a queued mail job.
func Decode(body string) (Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return Message{}, fmt.Errorf("decode mail job: %w", err)
	}
	if err := m.validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}
