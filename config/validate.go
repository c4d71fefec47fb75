package config

import (
	"fmt"
	"strings"
)

// Roles a configured user may hold.
const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

// Validate performs business-rule validation on the loaded configuration.
// Load calls it automatically.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters (got %d)", len(c.Auth.JWTSecret))
	}
	if c.Auth.TokenExpireHours <= 0 {
		return fmt.Errorf("auth.token_expire_hours must be > 0 (got %d)", c.Auth.TokenExpireHours)
	}

	for i := range c.Users {
		u := &c.Users[i]
		if u.Username == "" || u.PasswordHash == "" || u.Tenant == "" {
			return fmt.Errorf("users[%d]: username, password_hash and tenant are required", i)
		}
		if strings.ContainsAny(u.Tenant, "/\\") {
			return fmt.Errorf("users[%d]: tenant must not contain path separators", i)
		}
		if u.Role == "" {
			u.Role = RoleClient
		}
		if u.Role != RoleClient && u.Role != RoleAdmin {
			return fmt.Errorf("users[%d]: unknown role %q", i, u.Role)
		}
	}

	switch c.Store.Driver {
	case "memory", "pebble":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required when store.driver is postgres")
		}
	default:
		return fmt.Errorf("store.driver must be memory, pebble or postgres (got %q)", c.Store.Driver)
	}

	switch c.Notify.Driver {
	case "log":
	case "sendgrid":
		if c.Notify.SendGridAPIKey == "" {
			return fmt.Errorf("notify.sendgrid_api_key is required when notify.driver is sendgrid")
		}
	default:
		return fmt.Errorf("notify.driver must be log or sendgrid (got %q)", c.Notify.Driver)
	}
	if c.Notify.ClaimTTL <= 0 {
		return fmt.Errorf("notify.claim_ttl must be > 0")
	}
	// a send that outlives its claim can race a second sender
	if c.Notify.SendTimeout <= 0 || c.Notify.SendTimeout >= c.Notify.ClaimTTL {
		return fmt.Errorf("notify.send_timeout must be > 0 and below notify.claim_ttl (got %s, claim_ttl %s)",
			c.Notify.SendTimeout, c.Notify.ClaimTTL)
	}

	if c.Stripe.SecretKey == "" || c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("stripe.secret_key and stripe.webhook_secret are required")
	}

	switch c.Pricing.Rounding {
	case "", "half_up", "half_even":
	default:
		return fmt.Errorf("pricing.rounding must be half_up or half_even (got %q)", c.Pricing.Rounding)
	}

	if c.Quote.MaxParallel <= 0 {
		return fmt.Errorf("quote.max_parallel must be > 0 (got %d)", c.Quote.MaxParallel)
	}
	if c.Quote.ExtractTimeout <= 0 {
		return fmt.Errorf("quote.extract_timeout must be > 0")
	}
	if c.Quote.MaxFiles <= 0 {
		return fmt.Errorf("quote.max_files must be > 0 (got %d)", c.Quote.MaxFiles)
	}

	return nil
}

// KafkaBrokers splits the comma separated broker list.
func (k KafkaConfig) KafkaBrokers() []string {
	var brokers []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
