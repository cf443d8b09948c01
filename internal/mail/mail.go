// Package mail delivers plain-text email, directly over SMTP or through an SQS
// queue drained by the worker.
package mail

import (
	"context"
	"errors"
	"strings"
)

// Message is a plain-text email. It is also the JSON body of a queued mail job.
type Message struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Kind    string `json:"kind,omitempty"` // verify | reset | order | manual
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var ErrNoRecipient = errors.New("mail: recipient is required")

func (m Message) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return ErrNoRecipient
	}
	if strings.ContainsAny(m.To+m.Subject+m.From, "\r\n") {
		return errors.New("mail: header values must not contain line breaks")
	}
	return nil
}
