package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-vinyl-storefront/internal/config"
	"github.com/imrishuroy/go-vinyl-storefront/internal/logging"
	"github.com/imrishuroy/go-vinyl-storefront/internal/mail"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.NewLogger(cfg.ServiceName+"-worker", cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	p := NewProcessor(mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom))
	handle := func(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
		return p.Handle(logging.ContextWithLogger(ctx, logger), ev)
	}

	// RUN_LOCAL=true delivers one job taken from LOCAL_SQS_BODY and exits.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = `{"to":"dev@localhost","subject":"local test","body":"hello","kind":"manual"}`
		}
		ev := events.SQSEvent{Records: []events.SQSMessage{{MessageId: "local-1", Body: body}}}
		resp, err := handle(context.Background(), ev)
		if err != nil || len(resp.BatchItemFailures) > 0 {
			logger.Fatal("local delivery failed", zap.Error(err), zap.Int("failures", len(resp.BatchItemFailures)))
		}
		return
	}

	lambda.Start(handle)
}
