// Package config loads service configuration from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Processor holds the credentials and flow settings of one HyperPay entity.
// Card and MADA deployments differ only in these values.
type Processor struct {
	AccessToken   string   `mapstructure:"access_token"`
	EntityID      string   `mapstructure:"entity_id"`
	Currency      string   `mapstructure:"currency"`
	BaseAPIURL    string   `mapstructure:"hyperpay_base_api_url"`
	ReturnURL     string   `mapstructure:"return_url"`
	EncryptionKey string   `mapstructure:"encryption_key"`
	Salt          string   `mapstructure:"salt"`
	TestMode      string   `mapstructure:"test_mode"`
	PaymentType   string   `mapstructure:"payment_type"`
	Brands        []string `mapstructure:"brands"`
	CheckoutText  string   `mapstructure:"checkout_text"`

	// PendingStatusPollingInterval is the browser refresh interval, in
	// seconds, of the pending payment page.
	PendingStatusPollingInterval int `mapstructure:"pending_status_polling_interval"`

	// AcceptManualReview keeps manual-review result codes in the pending
	// track instead of provisionally failing them. Off by default: a
	// payment under review must not look successful before an operator
	// confirms it.
	AcceptManualReview bool `mapstructure:"accept_manual_review"`
}

// SMTP configures the mailer used by the manual-review report.
type SMTP struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type Config struct {
	Port         string `mapstructure:"port"`
	DatabaseURL  string `mapstructure:"database_url"`
	RedisURL     string `mapstructure:"redis_url"`
	KafkaBrokers string `mapstructure:"kafka_brokers"`
	KafkaTopic   string `mapstructure:"kafka_topic"`

	// Order numbers are derived from basket ids: prefix + "-" + (offset + id).
	OrderNumberPrefix string `mapstructure:"order_number_prefix"`
	OrderNumberOffset int64  `mapstructure:"order_number_offset"`

	// ReceiptPageURL receives ?order_number=<n> on redirect.
	ReceiptPageURL string `mapstructure:"receipt_page_url"`
	ErrorPageURL   string `mapstructure:"error_page_url"`

	// SessionFlagTTLSeconds bounds the lifetime of the one-shot
	// skip-status-check session flag.
	SessionFlagTTLSeconds int `mapstructure:"session_flag_ttl_seconds"`

	SMTP SMTP `mapstructure:"smtp"`

	Processors map[string]Processor `mapstructure:"processors"`
}

// ProcessorNames returns the configured processor names, sorted.
func (c *Config) ProcessorNames() []string {
	names := make([]string, 0, len(c.Processors))
	for name := range c.Processors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load reads the config file at path, or falls back to HYPERPAY_CONFIG and
// then the usual locations. Environment variables override file values.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("HYPERPAY_CONFIG")
	}

	v := viper.New()

	v.SetDefault("port", "8082")
	v.SetDefault("kafka_topic", "payment.callback.outcome")
	v.SetDefault("order_number_prefix", "EDX")
	v.SetDefault("order_number_offset", 100000)
	v.SetDefault("session_flag_ttl_seconds", 3600)
	v.SetDefault("smtp.port", 587)

	v.SetEnvPrefix("HYPERPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("port", "PORT")
	v.BindEnv("database_url", "DATABASE_URL")
	v.BindEnv("redis_url", "REDIS_URL")
	v.BindEnv("kafka_brokers", "KAFKA_BROKERS")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("hyperpay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/hyperpay")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	for name, p := range cfg.Processors {
		if p.BaseAPIURL == "" {
			p.BaseAPIURL = "https://test.oppwa.com"
		}
		if p.PaymentType == "" {
			p.PaymentType = "DB"
		}
		if p.PendingStatusPollingInterval <= 0 {
			p.PendingStatusPollingInterval = 30
		}
		cfg.Processors[name] = p
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Processors) == 0 {
		return errors.New("config: no processors configured")
	}
	for _, name := range c.ProcessorNames() {
		p := c.Processors[name]
		var missing []string
		if p.AccessToken == "" {
			missing = append(missing, "access_token")
		}
		if p.EntityID == "" {
			missing = append(missing, "entity_id")
		}
		if p.Currency == "" {
			missing = append(missing, "currency")
		}
		if p.EncryptionKey == "" {
			missing = append(missing, "encryption_key")
		}
		if p.Salt == "" {
			missing = append(missing, "salt")
		}
		if len(missing) > 0 {
			return fmt.Errorf("config: processor %q missing %s", name, strings.Join(missing, ", "))
		}
	}
	return nil
}
