package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-vinyl-storefront/internal/logging"
	"github.com/imrishuroy/go-vinyl-storefront/internal/mail"
)

// Processor delivers queued mail jobs.
type Processor struct {
	sender mail.Sender
}

// NewProcessor creates a processor that delivers through sender.
func NewProcessor(sender mail.Sender) *Processor {
	return &Processor{sender: sender}
}

// Handle delivers each record and reports the failed ones so SQS only
// redelivers those. Undecodable jobs are dropped.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	log := logging.FromContext(ctx)
	var resp events.SQSEventResponse

	for _, rec := range ev.Records {
		rlog := log.With(zap.String("message_id", rec.MessageId))

		msg, err := mail.Decode(rec.Body)
		if err != nil {
			rlog.Error("drop malformed mail job", zap.Error(err))
			continue
		}
		if err := p.sender.Send(logging.ContextWithLogger(ctx, rlog), msg); err != nil {
			rlog.Warn("mail delivery failed", zap.String("kind", msg.Kind), zap.Error(err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
			continue
		}
		rlog.Info("mail delivered", zap.String("kind", msg.Kind), zap.String("to", msg.To))
	}
	return resp, nil
}
