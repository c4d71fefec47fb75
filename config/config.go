package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Auth     AuthConfig     `yaml:"auth"`
	Users    []User         `yaml:"users"`
	Minio    MinioConfig    `yaml:"minio"`
	Store    StoreConfig    `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	Stripe   StripeConfig   `yaml:"stripe"`
	Notify   NotifyConfig   `yaml:"notify"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Pricing  PricingConfig  `yaml:"pricing"`
	Quote    QuoteConfig    `yaml:"quote"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	PublicURL       string        `yaml:"public_url"       env:"SERVER_PUBLIC_URL"       env-default:"http://localhost:8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"60s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"5s"`
	RateLimit       float64       `yaml:"rate_limit"       env:"SERVER_RATE_LIMIT"       env-default:"5"`
	RateBurst       int           `yaml:"rate_burst"       env:"SERVER_RATE_BURST"       env-default:"20"`
}

type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"         env:"AUTH_JWT_SECRET"`
	TokenExpireHours int    `yaml:"token_expire_hours" env:"AUTH_TOKEN_EXPIRE_HOURS" env-default:"24"`
}

// User is a configured login. PasswordHash is a bcrypt hash.
type User struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	Tenant       string `yaml:"tenant"`
	Role         string `yaml:"role"`
}

type MinioConfig struct {
	Endpoint       string `yaml:"endpoint"         env:"MINIO_ENDPOINT"         env-default:"localhost:9000"`
	AccessKey      string `yaml:"access_key"       env:"MINIO_ACCESS_KEY"`
	SecretKey      string `yaml:"secret_key"       env:"MINIO_SECRET_KEY"`
	Bucket         string `yaml:"bucket"           env:"MINIO_BUCKET"           env-default:"translation-uploads"`
	Region         string `yaml:"region"           env:"MINIO_REGION"`
	UseSSL         bool   `yaml:"use_ssl"          env:"MINIO_USE_SSL"`
	ExpireDays     int    `yaml:"expire_days"      env:"MINIO_EXPIRE_DAYS"      env-default:"7"`
	MaxObjectBytes int64  `yaml:"max_object_bytes" env:"MINIO_MAX_OBJECT_BYTES" env-default:"52428800"`
}

// StoreConfig selects the order store backend.
type StoreConfig struct {
	Driver    string `yaml:"driver"     env:"STORE_DRIVER"     env-default:"memory"`
	PebbleDir string `yaml:"pebble_dir" env:"STORE_PEBBLE_DIR" env-default:"./data/orders"`
	MaxOrders int    `yaml:"max_orders" env:"STORE_MAX_ORDERS" env-default:"10000"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"10"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"2"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
	AutoMigrate     bool          `yaml:"auto_migrate"       env:"DATABASE_AUTO_MIGRATE"       env-default:"true"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"     env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
	// SuccessURL may contain {CHECKOUT_SESSION_ID}; {ORDER_ID} is substituted
	// before the session is created.
	SuccessURL  string `yaml:"success_url"  env:"STRIPE_SUCCESS_URL"  env-default:"http://localhost:8080/success.html?session_id={CHECKOUT_SESSION_ID}&orderId={ORDER_ID}"`
	CancelURL   string `yaml:"cancel_url"   env:"STRIPE_CANCEL_URL"   env-default:"http://localhost:8080/quote.html?orderId={ORDER_ID}"`
	ProductName string `yaml:"product_name" env:"STRIPE_PRODUCT_NAME" env-default:"Translation services"`
}

// NotifyConfig selects how confirmations are delivered.
type NotifyConfig struct {
	Driver         string        `yaml:"driver"           env:"NOTIFY_DRIVER"           env-default:"log"`
	SendGridAPIKey string        `yaml:"sendgrid_api_key" env:"SENDGRID_API_KEY"`
	FromAddress    string        `yaml:"from_address"     env:"NOTIFY_FROM_ADDRESS"     env-default:"no-reply@rolling-translations.com"`
	FromName       string        `yaml:"from_name"        env:"NOTIFY_FROM_NAME"        env-default:"Rolling Translations"`
	OpsAddress     string        `yaml:"ops_address"      env:"NOTIFY_OPS_ADDRESS"      env-default:"info@rolling-translations.com"`
	ClaimTTL       time.Duration `yaml:"claim_ttl"        env:"NOTIFY_CLAIM_TTL"        env-default:"5m"`
	SendTimeout    time.Duration `yaml:"send_timeout"     env:"NOTIFY_SEND_TIMEOUT"     env-default:"15s"`
	AttachReceipt  bool          `yaml:"attach_receipt"   env:"NOTIFY_ATTACH_RECEIPT"   env-default:"true"`
}

// KafkaConfig configures the optional order-event stream. Publishing is
// disabled while Brokers is empty.
type KafkaConfig struct {
	Brokers string `yaml:"brokers" env:"KAFKA_BROKERS"`
	Topic   string `yaml:"topic"   env:"KAFKA_TOPIC"   env-default:"translation-orders"`
}

type PricingConfig struct {
	RatesFile string `yaml:"rates_file" env:"PRICING_RATES_FILE"`
	Rounding  string `yaml:"rounding"   env:"PRICING_ROUNDING"`
}

type QuoteConfig struct {
	MaxParallel    int           `yaml:"max_parallel"    env:"QUOTE_MAX_PARALLEL"    env-default:"4"`
	ExtractTimeout time.Duration `yaml:"extract_timeout" env:"QUOTE_EXTRACT_TIMEOUT" env-default:"30s"`
	MaxFiles       int           `yaml:"max_files"       env:"QUOTE_MAX_FILES"       env-default:"20"`
}

// Load reads configuration from a YAML file and environment variables.
// Priority: ENV > YAML > defaults. A missing file is not an error when
// path is empty; configuration then comes from ENV and defaults only.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config: file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
