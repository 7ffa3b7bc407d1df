package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/models"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/ojp"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/trial"
)

type Config struct {
	Environment  string
	LogLevel     zerolog.Level
	LogOutput    io.Writer
	HTTPTimeout  time.Duration
	Budget       time.Duration
	MinInterval  time.Duration
	Language     string
	MaxResults   int
	RequestorRef string
	UserAgent    string
	TrialCatalog string

	// Remote credential locations, used by the Lambda.
	CredentialS3URI string
	CredentialTable string
	CredentialID    string
}

type Option func(*Config)

// WithEnvironment allows setting the environment
func WithEnvironment(env string) Option {
	return func(c *Config) {
		c.Environment = env
	}
}

// WithLogLevel allows setting the log level
func WithLogLevel(level string) Option {
	return func(c *Config) {
		parsedLevel, err := zerolog.ParseLevel(level)
		if err != nil {
			parsedLevel = zerolog.InfoLevel
		}
		c.LogLevel = parsedLevel
	}
}

// WithLogOutput sends logs somewhere other than stdout
func WithLogOutput(w io.Writer) Option {
	return func(c *Config) {
		c.LogOutput = w
	}
}

// WithHTTPTimeout sets the per-trial deadline
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.HTTPTimeout = timeout
	}
}

// WithBudget sets the wall-clock budget for one resolution
func WithBudget(budget time.Duration) Option {
	return func(c *Config) {
		c.Budget = budget
	}
}

func WithMinInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.MinInterval = interval
	}
}

func WithLanguage(lang string) Option {
	return func(c *Config) {
		c.Language = lang
	}
}

func WithMaxResults(n int) Option {
	return func(c *Config) {
		c.MaxResults = n
	}
}

func WithRequestorRef(ref string) Option {
	return func(c *Config) {
		c.RequestorRef = ref
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Config) {
		c.UserAgent = ua
	}
}

// WithTrialCatalog points at a YAML file replacing the default trials
func WithTrialCatalog(path string) Option {
	return func(c *Config) {
		c.TrialCatalog = path
	}
}

// WithCredentialLocation sets where the Lambda reads its API key
func WithCredentialLocation(s3URI, table, id string) Option {
	return func(c *Config) {
		c.CredentialS3URI = s3URI
		c.CredentialTable = table
		c.CredentialID = id
	}
}

// New creates a new configuration with default values
func New(opts ...Option) *Config {
	cfg := &Config{
		Environment:  "production",
		LogLevel:     zerolog.InfoLevel,
		LogOutput:    os.Stdout,
		HTTPTimeout:  30 * time.Second,
		Budget:       2 * time.Minute,
		Language:     models.DefaultLanguage,
		MaxResults:   models.DefaultMaxResults,
		RequestorRef: ojp.DefaultRequestorRef,
		UserAgent:    trial.DefaultUserAgent,
		CredentialID: "crowpanel",
	}

	// Apply options
	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// InitializeLogging sets up logging based on the configuration
func (c *Config) InitializeLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(c.LogLevel)

	out := c.LogOutput
	if out == nil {
		out = os.Stdout
	}

	// Setup console logger for development environments
	if c.Environment == "local" || c.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out})
		return
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

type envSettings struct {
	Environment     string        `env:"OJP_ENV,default=production"`
	LogLevel        string        `env:"LOG_LEVEL,default=info"`
	HTTPTimeout     time.Duration `env:"OJP_HTTP_TIMEOUT,default=30s"`
	Budget          time.Duration `env:"OJP_BUDGET,default=2m"`
	MinInterval     time.Duration `env:"OJP_MIN_INTERVAL"`
	Language        string        `env:"OJP_LANGUAGE,default=de"`
	MaxResults      int           `env:"OJP_MAX_RESULTS,default=10"`
	RequestorRef    string        `env:"OJP_REQUESTOR_REF,default=CrowPanel"`
	UserAgent       string        `env:"OJP_USER_AGENT,default=CrowPanel-OEV-Display/1.0"`
	TrialCatalog    string        `env:"OJP_TRIAL_CATALOG"`
	CredentialS3URI string        `env:"OJP_CREDENTIAL_S3_URI"`
	CredentialTable string        `env:"OJP_CREDENTIAL_TABLE"`
	CredentialID    string        `env:"OJP_CREDENTIAL_ID,default=crowpanel"`
}

// LoadFromEnv loads configuration from environment variables. A .env file in
// the working directory, if present, is applied first without overriding
// variables that are already set.
func LoadFromEnv(opts ...Option) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	var env envSettings
	if err := envdecode.Decode(&env); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decoding environment: %w", err)
	}

	base := []Option{
		WithEnvironment(env.Environment),
		WithLogLevel(env.LogLevel),
		WithHTTPTimeout(env.HTTPTimeout),
		WithBudget(env.Budget),
		WithMinInterval(env.MinInterval),
		WithLanguage(env.Language),
		WithMaxResults(env.MaxResults),
		WithRequestorRef(env.RequestorRef),
		WithUserAgent(env.UserAgent),
		WithTrialCatalog(env.TrialCatalog),
		WithCredentialLocation(env.CredentialS3URI, env.CredentialTable, env.CredentialID),
	}
	return New(append(base, opts...)...), nil
}

// LoadEnvFile applies a dotenv file to the process environment without
// overriding variables that are already set.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}
