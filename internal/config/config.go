// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Marker backends.
const (
	MarkerRedis  = "redis"
	MarkerDynamo = "dynamodb"
)

// Trace exporters. An empty TRACING_EXPORTER leaves tracing off.
const (
	TracingStdout = "stdout"
	TracingJaeger = "jaeger"
)

// Config is populated by envconfig from unprefixed environment variables.
type Config struct {
	Env         string `envconfig:"APP_ENV" default:"local"`
	ServiceName string `envconfig:"SERVICE_NAME" default:"vinyl-storefront"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	RunLocal    bool   `envconfig:"RUN_LOCAL" default:"false"`

	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`

	OrdersTable      string `envconfig:"ORDERS_TABLE" default:"orders"`
	PaymentRefsTable string `envconfig:"PAYMENT_REFS_TABLE" default:"payment_refs"`
	VinylsTable      string `envconfig:"VINYLS_TABLE" default:"vinyls"`
	UsersTable       string `envconfig:"USERS_TABLE" default:"users"`
	UserEmailsTable  string `envconfig:"USER_EMAILS_TABLE" default:"user_emails"`
	TokensTable      string `envconfig:"TOKENS_TABLE" default:"tokens"`
	MarkersTable     string `envconfig:"MARKERS_TABLE" default:"markers"`
	OrdersUserIndex  string `envconfig:"ORDERS_USER_INDEX" default:"user_id-index"`
	TokensUserIndex  string `envconfig:"TOKENS_USER_INDEX" default:"user_id-index"`

	MarkerBackend     string        `envconfig:"MARKER_BACKEND" default:"redis"`
	CheckoutMarkerTTL time.Duration `envconfig:"CHECKOUT_MARKER_TTL" default:"30m"`

	RedisURL  string        `envconfig:"REDIS_URL"`
	RedisAddr string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisTLS  *bool         `envconfig:"REDIS_TLS"`
	CartTTL   time.Duration `envconfig:"CART_TTL" default:"24h"`

	JWTSecret string        `envconfig:"JWT_SECRET"`
	JWTIssuer string        `envconfig:"JWT_ISSUER" default:"v-disk"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"1h"`

	SMTPHost     string `envconfig:"SMTP_HOST" default:"localhost"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	MailFrom     string `envconfig:"MAIL_FROM" default:"no-reply@v-disk.local"`
	MailQueueURL string `envconfig:"MAIL_QUEUE_URL"`

	VerifyURL       string        `envconfig:"VERIFY_URL" default:"http://localhost:8080/api/users/verify"`
	FrontendURL     string        `envconfig:"FRONTEND_URL" default:"http://localhost:3000/reset-password"`
	VerificationTTL time.Duration `envconfig:"VERIFICATION_TTL" default:"24h"`
	ResetTTL        time.Duration `envconfig:"RESET_TTL" default:"1h"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"order-events"`

	CloudWatchNamespace string `envconfig:"CLOUDWATCH_NAMESPACE"`

	TracingExporter  string  `envconfig:"TRACING_EXPORTER"`
	JaegerEndpoint   string  `envconfig:"JAEGER_ENDPOINT" default:"http://localhost:14268/api/traces"`
	TraceSampleRatio float64 `envconfig:"TRACE_SAMPLE_RATIO" default:"1"`
}

// Load reads the environment into a Config and checks cross-field rules.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateAPI checks the settings only the HTTP API needs. The mail worker
// never signs tokens and skips it.
func (c *Config) ValidateAPI() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes for HS256")
	}
	return nil
}

func (c *Config) validate() error {
	switch c.MarkerBackend {
	case MarkerRedis, MarkerDynamo:
	default:
		return fmt.Errorf("MARKER_BACKEND must be %q or %q, got %q", MarkerRedis, MarkerDynamo, c.MarkerBackend)
	}
	if c.CheckoutMarkerTTL <= 0 {
		return fmt.Errorf("CHECKOUT_MARKER_TTL must be positive")
	}
	switch c.TracingExporter {
	case "", TracingStdout, TracingJaeger:
	default:
		return fmt.Errorf("TRACING_EXPORTER must be empty, %q or %q, got %q", TracingStdout, TracingJaeger, c.TracingExporter)
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		return fmt.Errorf("TRACE_SAMPLE_RATIO must be within [0, 1], got %v", c.TraceSampleRatio)
	}
	return nil
}
