package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-vinyl-storefront/internal/auth"
	"github.com/imrishuroy/go-vinyl-storefront/internal/aws"
	"github.com/imrishuroy/go-vinyl-storefront/internal/cart"
	"github.com/imrishuroy/go-vinyl-storefront/internal/catalog"
	"github.com/imrishuroy/go-vinyl-storefront/internal/checkout"
	"github.com/imrishuroy/go-vinyl-storefront/internal/config"
	"github.com/imrishuroy/go-vinyl-storefront/internal/events"
	"github.com/imrishuroy/go-vinyl-storefront/internal/handlers"
	"github.com/imrishuroy/go-vinyl-storefront/internal/idempotency"
	"github.com/imrishuroy/go-vinyl-storefront/internal/logging"
	"github.com/imrishuroy/go-vinyl-storefront/internal/mail"
	"github.com/imrishuroy/go-vinyl-storefront/internal/metrics"
	"github.com/imrishuroy/go-vinyl-storefront/internal/orders"
	"github.com/imrishuroy/go-vinyl-storefront/internal/payment"
	"github.com/imrishuroy/go-vinyl-storefront/internal/redisx"
	"github.com/imrishuroy/go-vinyl-storefront/internal/tracing"
	"github.com/imrishuroy/go-vinyl-storefront/internal/users"
	"github.com/imrishuroy/go-vinyl-storefront/internal/verification"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.ValidateAPI(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	logger, err := logging.NewLogger(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := logging.ContextWithLogger(context.Background(), logger)
	r, cleanup, err := setup(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("setup", zap.Error(err))
	}
	defer cleanup()

	// RUN_LOCAL=true serves plain HTTP for development; otherwise run behind API Gateway.
	if cfg.RunLocal {
		serve(logger, cfg.HTTPAddr, r)
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req lambdaevents.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}

// setup builds every client, store and service and returns the router.
func setup(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*gin.Engine, func(), error) {
	_, shutdownTracing, err := tracing.Init(tracing.Options{
		ServiceName:    cfg.ServiceName,
		Env:            cfg.Env,
		Exporter:       cfg.TracingExporter,
		JaegerEndpoint: cfg.JaegerEndpoint,
		SampleRatio:    cfg.TraceSampleRatio,
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.TracingExporter != "" {
		logger.Info("tracing enabled", zap.String("exporter", cfg.TracingExporter))
	}

	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, nil, err
	}

	rdb, err := redisx.New(cfg.RedisURL, cfg.RedisAddr, cfg.RedisTLS)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, nil, err
	}
	if err := redisx.Ping(ctx, rdb); err != nil {
		logger.Warn("redis unreachable at startup", zap.Error(err))
	}

	var marker idempotency.Marker
	switch cfg.MarkerBackend {
	case config.MarkerDynamo:
		marker = idempotency.NewDynamoMarker(clients.DynamoDB, cfg.MarkersTable)
	default:
		marker = idempotency.NewRedisMarker(rdb)
	}

	var sender mail.Sender
	if cfg.MailQueueURL != "" {
		sender = mail.NewQueueSender(aws.NewPublisher(clients.SQS, cfg.MailQueueURL), cfg.MailFrom)
	} else {
		sender = mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)
	}

	var publisher events.Publisher = events.Nop{}
	var kafka *events.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafka = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		publisher = kafka
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := metrics.NewPrometheus(reg)
	recorder := metrics.Multi{prom}
	if cfg.CloudWatchNamespace != "" {
		recorder = append(recorder, metrics.Sink{Sink: aws.NewCloudWatchRecorder(clients.CloudWatch, cfg.CloudWatchNamespace)})
	}

	orderStore := orders.NewStore(clients.DynamoDB, cfg.OrdersTable, cfg.PaymentRefsTable, cfg.OrdersUserIndex)
	vinylStore := catalog.NewStore(clients.DynamoDB, cfg.VinylsTable)
	userStore := users.NewStore(clients.DynamoDB, cfg.UsersTable, cfg.UserEmailsTable)
	cartStore := cart.NewStore(rdb, cfg.CartTTL)
	tokenStore := verification.NewStore(clients.DynamoDB, cfg.TokensTable, cfg.TokensUserIndex)

	r := handlers.NewRouter(handlers.HandlerConfig{
		Users:    userStore,
		Vinyls:   vinylStore,
		Orders:   orderStore,
		Carts:    cartStore,
		Payments: payment.NewService(orderStore, vinylStore, marker, payment.WithMetrics(recorder), payment.WithEvents(publisher)),
		Checkout: checkout.NewService(cartStore, vinylStore, orderStore, marker, cfg.CheckoutMarkerTTL),
		Verification: verification.NewService(tokenStore, userStore, sender, verification.Options{
			VerifyURL:       cfg.VerifyURL,
			ResetURL:        cfg.FrontendURL,
			VerificationTTL: cfg.VerificationTTL,
			ResetTTL:        cfg.ResetTTL,
		}),
		Issuer:         auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL),
		Mailer:         sender,
		MailFrom:       cfg.MailFrom,
		Events:         publisher,
		Logger:         logger,
		Metrics:        prom,
		Gatherer:       reg,
		RequestTimeout: cfg.RequestTimeout,
	})

	cleanup := func() {
		if kafka != nil {
			if err := kafka.Close(); err != nil {
				logger.Warn("close kafka writer", zap.Error(err))
			}
		}
		if err := rdb.Close(); err != nil {
			logger.Warn("close redis", zap.Error(err))
		}
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("flush traces", zap.Error(err))
		}
	}
	return r, cleanup, nil
}

func serve(logger *zap.Logger, addr string, h http.Handler) {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("http listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown", zap.Error(err))
	}
}
