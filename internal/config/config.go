package config

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
)

const (
	DefaultRunAddress      = ":8080"
	DefaultDatabaseURI     = ""
	DefaultEnvironment     = EnvironmentProduction
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultOrderPrefix     = "MEOSTORE"
	DefaultLedgerTimeout   = 5 * time.Second
	DefaultDisplayTimezone = "Asia/Ho_Chi_Minh"
	DefaultSignatureHeader = "X-Signature"
	DefaultQRTemplate      = "compact2"
	DefaultStreamLifetime  = time.Hour
	DefaultKafkaTopic      = "payments.confirmed"
	DefaultNotifyWorkers   = 4
	DefaultNotifyQueueSize = 256
	DefaultOrderRateLimit  = 10.0
	DefaultOrderRateBurst  = 20
)

type Config struct {
	RunAddress      string        `env:"RUN_ADDRESS"`
	DatabaseURI     string        `env:"DATABASE_URI"`
	Environment     string        `env:"ENVIRONMENT"`
	LogLevel        string        `env:"LOG_LEVEL"`
	LogFormat       string        `env:"LOG_FORMAT"`
	OrderPrefix     string        `env:"ORDER_PREFIX"`
	LedgerTimeout   time.Duration `env:"LEDGER_TIMEOUT"`
	DisplayTimezone string        `env:"DISPLAY_TIMEZONE"`

	Webhook Webhook `envPrefix:"WEBHOOK_"`
	QR      QR      `envPrefix:"QR_"`
	Stream  Stream  `envPrefix:"STREAM_TOKEN_"`
	Notify  Notify  `envPrefix:"NOTIFY_"`
	Orders  Orders  `envPrefix:"ORDER_RATE_"`
}

type Webhook struct {
	Secret          string `env:"SECRET"`
	SignatureHeader string `env:"SIGNATURE_HEADER"`
	// SkipSignature only takes effect in the development environment.
	SkipSignature bool `env:"SKIP_SIGNATURE"`
}

type QR struct {
	BankID      string `env:"BANK_ID"`
	AccountNo   string `env:"ACCOUNT_NO"`
	AccountName string `env:"ACCOUNT_NAME"`
	Template    string `env:"TEMPLATE"`
}

type Stream struct {
	Secret   string        `env:"SECRET"`
	Lifetime time.Duration `env:"LIFETIME"`
}

type Notify struct {
	KafkaBrokers string `env:"KAFKA_BROKERS"`
	KafkaTopic   string `env:"KAFKA_TOPIC"`
	RelayURL     string `env:"RELAY_URL"`
	Workers      int    `env:"WORKERS"`
	QueueSize    int    `env:"QUEUE_SIZE"`
}

type Orders struct {
	Limit float64 `env:"LIMIT"`
	Burst int     `env:"BURST"`
}

func Read() (Config, error) {
	config := Config{
		DisplayTimezone: DefaultDisplayTimezone,
		Webhook: Webhook{
			SignatureHeader: DefaultSignatureHeader,
		},
		QR: QR{
			Template: DefaultQRTemplate,
		},
		Stream: Stream{
			Lifetime: DefaultStreamLifetime,
		},
		Notify: Notify{
			KafkaTopic: DefaultKafkaTopic,
			Workers:    DefaultNotifyWorkers,
			QueueSize:  DefaultNotifyQueueSize,
		},
		Orders: Orders{
			Limit: DefaultOrderRateLimit,
			Burst: DefaultOrderRateBurst,
		},
	}

	flag.StringVar(&config.RunAddress, "a", DefaultRunAddress, "Server run address")
	flag.StringVar(&config.DatabaseURI, "d", DefaultDatabaseURI, "Ledger database connect string (empty: in-memory, development only)")
	flag.StringVar(&config.Environment, "e", DefaultEnvironment, "Deployment environment (development|production)")
	flag.StringVar(&config.LogLevel, "l", DefaultLogLevel, "Log level")
	flag.StringVar(&config.LogFormat, "log-format", DefaultLogFormat, "Log format (json|console)")
	flag.StringVar(&config.OrderPrefix, "p", DefaultOrderPrefix, "Order code prefix used in transfer descriptions")
	flag.DurationVar(&config.LedgerTimeout, "t", DefaultLedgerTimeout, "Timeout for a single ledger operation")
	flag.StringVar(&config.Webhook.Secret, "s", "", "Webhook shared secret")

	flag.Parse()

	err := env.Parse(&config)
	if err != nil {
		return config, err
	}

	if err := config.Validate(); err != nil {
		return config, err
	}

	return config, nil
}

var (
	ErrUnknownEnvironment  = errors.New("unknown environment")
	ErrSkipOutsideDev      = errors.New("signature skip is only allowed in the development environment")
	ErrWebhookSecret       = errors.New("webhook secret is required")
	ErrMemoryLedgerOutside = errors.New("in-memory ledger is only allowed in the development environment")
	ErrOrderPrefix         = errors.New("order prefix is required")
)

func (c Config) Validate() error {
	switch c.Environment {
	case EnvironmentDevelopment, EnvironmentProduction:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEnvironment, c.Environment)
	}

	if c.Webhook.SkipSignature && !c.IsDevelopment() {
		return ErrSkipOutsideDev
	}

	if !c.SkipSignatureVerification() && c.Webhook.Secret == "" {
		return ErrWebhookSecret
	}

	if c.DatabaseURI == "" && !c.IsDevelopment() {
		return ErrMemoryLedgerOutside
	}

	if c.OrderPrefix == "" {
		return ErrOrderPrefix
	}

	return nil
}

func (c Config) IsDevelopment() bool {
	return c.Environment == EnvironmentDevelopment
}

// SkipSignatureVerification needs both the development environment and the
// explicit skip flag.
func (c Config) SkipSignatureVerification() bool {
	return c.IsDevelopment() && c.Webhook.SkipSignature
}

const streamKeyLabel = "payrelay stream token v1"

// StreamSecret returns the dedicated stream token secret, or a key derived
// from the webhook secret when none is set. The webhook secret itself never
// signs tokens.
func (c Config) StreamSecret() string {
	if c.Stream.Secret != "" {
		return c.Stream.Secret
	}
	if c.Webhook.Secret == "" {
		return ""
	}

	mac := hmac.New(sha256.New, []byte(c.Webhook.Secret))
	mac.Write([]byte(streamKeyLabel))
	return hex.EncodeToString(mac.Sum(nil))
}
