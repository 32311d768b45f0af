package internal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Env           string              `mapstructure:"env" envconfig:"APP_ENV" default:"development"`
	Server        ServerConfig        `mapstructure:"http_server" envconfig:"HTTP_SERVER"`
	Database      DatabaseConfig      `mapstructure:"database" envconfig:"DATABASE"`
	Security      SecurityConfig      `mapstructure:"security" envconfig:"SECURITY" validate:"required"`
	Redis         RedisConfig         `mapstructure:"redis" envconfig:"REDIS"`
	Mail          MailConfig          `mapstructure:"mail" envconfig:"MAIL"`
	Checkout      CheckoutConfig      `mapstructure:"checkout" envconfig:"CHECKOUT"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit" envconfig:"RATE_LIMIT"`
	Observability ObservabilityConfig `mapstructure:"observability" envconfig:"OBSERVABILITY"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url" envconfig:"BASE_URL"`
	AllowedOrigins    string        `mapstructure:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" envconfig:"MAX_OPEN_CONNS" default:"20" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" envconfig:"MAX_IDLE_CONNS" default:"5" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" envconfig:"CONN_MAX_LIFETIME" default:"30m" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" envconfig:"CONN_MAX_IDLE_TIME" default:"5m" validate:"required,min=1m"`
	Source          string        `mapstructure:"source" envconfig:"SOURCE" validate:"required"`
}

type SecurityConfig struct {
	JWTSecret                  string        `mapstructure:"jwt_secret" envconfig:"JWT_SECRET" validate:"required,min=32"`
	AccessTokenDuration        time.Duration `mapstructure:"access_token_duration" envconfig:"ACCESS_TOKEN_DURATION" default:"1h" validate:"required,min=1m,max=24h"`
	BCryptCost                 int           `mapstructure:"bcrypt_cost" envconfig:"BCRYPT_COST" default:"12" validate:"required,min=10,max=15"`
	TempPasswordLength         int           `mapstructure:"temp_password_length" envconfig:"TEMP_PASSWORD_LENGTH" default:"12" validate:"min=8,max=64"`
	SuperAdminBootstrapEnabled bool          `mapstructure:"superadmin_bootstrap_enabled" envconfig:"SUPERADMIN_BOOTSTRAP_ENABLED" default:"true"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled" envconfig:"ENABLED"`
	Addr     string `mapstructure:"addr" envconfig:"ADDR" default:"127.0.0.1:6379" validate:"required_if=Enabled true"`
	Password string `mapstructure:"password" envconfig:"PASSWORD"`
	DB       int    `mapstructure:"db" envconfig:"DB" validate:"min=0"`
}

type MailConfig struct {
	Provider             string `mapstructure:"provider" envconfig:"PROVIDER" default:"log" validate:"oneof=log postmark"`
	From                 string `mapstructure:"from" envconfig:"FROM" default:"no-reply@inventory.local" validate:"required,email"`
	PostmarkServerToken  string `mapstructure:"postmark_server_token" envconfig:"POSTMARK_SERVER_TOKEN" validate:"required_if=Provider postmark"`
	PostmarkAccountToken string `mapstructure:"postmark_account_token" envconfig:"POSTMARK_ACCOUNT_TOKEN"`
	LoginURL             string `mapstructure:"login_url" envconfig:"LOGIN_URL"`

	Workers      int           `mapstructure:"workers" envconfig:"WORKERS" default:"2" validate:"min=1,max=32"`
	QueueSize    int           `mapstructure:"queue_size" envconfig:"QUEUE_SIZE" default:"100" validate:"min=1"`
	MaxAttempts  int           `mapstructure:"max_attempts" envconfig:"MAX_ATTEMPTS" default:"3" validate:"min=1,max=10"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" envconfig:"RETRY_BACKOFF" default:"2s"`
}

type CheckoutConfig struct {
	// TrustClientPrice bills each line at the submitted price instead of the
	// price on the locked inventory row.
	TrustClientPrice   bool          `mapstructure:"trust_client_price" envconfig:"TRUST_CLIENT_PRICE"`
	TransactionTimeout time.Duration `mapstructure:"transaction_timeout" envconfig:"TRANSACTION_TIMEOUT" default:"10s"`
}

type RateLimitConfig struct {
	AuthRequests int           `mapstructure:"auth_requests" envconfig:"AUTH_REQUESTS" default:"10" validate:"min=0"`
	AuthWindow   time.Duration `mapstructure:"auth_window" envconfig:"AUTH_WINDOW" default:"1m"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics" envconfig:"METRICS"`
	Logging LoggingConfig `mapstructure:"logging" envconfig:"LOGGING"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" envconfig:"ENABLED" default:"true"`
	Path    string `mapstructure:"path" envconfig:"ENDPOINT" default:"/metrics" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" envconfig:"LEVEL" default:"info" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" envconfig:"FORMAT" default:"json" validate:"required,oneof=json text"`
}

// LoadConfigFromEnv reads the whole configuration from environment variables,
// e.g. DATABASE_SOURCE or SECURITY_JWT_SECRET.
func LoadConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}

// ----------------- VALIDATION -----------------

var configValidator = validator.New()

func (c *Config) Validate() error {
	var errs []string

	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}
