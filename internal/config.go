package internal

import (
	"chat-relay/errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	BusRedis  = "redis"
	BusMemory = "memory"

	StorePostgres = "postgres"
	StoreBadger   = "badger"
)

type Config struct {
	Host              string        `env:"HOST,default=0.0.0.0"`
	Port              int           `env:"PORT,default=8000"`
	HealthPort        int           `env:"HEALTH_PORT,default=8001"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	SecretKey         string        `env:"SECRET_KEY,required=true"`
	AuthTokenDuration time.Duration `env:"ACCESS_TOKEN_EXPIRE,default=60m"`

	BusDriver   string `env:"BUS_DRIVER,default=redis"`
	RedisURL    string `env:"REDIS_URL,default=redis://localhost:6379/0"`
	StoreDriver string `env:"STORE_DRIVER,default=postgres"`

	DatabaseURL      string `env:"DATABASE_URL"`
	DatabaseHost     string `env:"DATABASE_HOST,default=localhost"`
	DatabasePort     int    `env:"DATABASE_PORT,default=5432"`
	DatabaseUsername string `env:"DATABASE_USERNAME,default=postgres"`
	DatabasePassword string `env:"DATABASE_PASSWORD"`
	DatabaseName     string `env:"DATABASE_NAME,default=chat"`
	BadgerFilepath   string `env:"BADGER_FILEPATH,default=./data/badger"`
	LimitMessages    *int   `env:"LIMIT_MESSAGES"`
	VerifyUsers      bool   `env:"VERIFY_USERS,default=true"`

	ConnectionBufferSize   int   `env:"CONNECTION_BUFFER_SIZE,default=256"`
	SubscriptionBufferSize int   `env:"SUBSCRIPTION_BUFFER_SIZE,default=64"`
	MaxFrameBytes          int64 `env:"MAX_FRAME_BYTES,default=16384"`
	MaxContentLength       int   `env:"MAX_CONTENT_LENGTH,default=2000"`

	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	PersistTimeout  time.Duration `env:"PERSIST_TIMEOUT,default=5s"`
	PublishTimeout  time.Duration `env:"PUBLISH_TIMEOUT,default=2s"`
	HealthInterval  time.Duration `env:"HEALTH_INTERVAL,default=5s"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,default=10s"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`

	CensoredWordsDir string `env:"CENSORED_WORDS_DIR"`
	CharReplacement  string `env:"CHARACTER_REPLACEMENT,default=*"`
}

// Load reads an optional .env file then the process environment.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("env file: %w", err)
	}
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	switch c.BusDriver {
	case BusRedis, BusMemory:
	default:
		return fmt.Errorf("%w: BUS_DRIVER=%q", errors.ErrUnknownDriver, c.BusDriver)
	}
	switch c.StoreDriver {
	case StorePostgres, StoreBadger:
	default:
		return fmt.Errorf("%w: STORE_DRIVER=%q", errors.ErrUnknownDriver, c.StoreDriver)
	}
	if c.ConnectionBufferSize <= 0 || c.SubscriptionBufferSize <= 0 {
		return fmt.Errorf("buffer sizes must be positive")
	}
	if c.MaxContentLength <= 0 || c.MaxFrameBytes <= 0 {
		return fmt.Errorf("MAX_CONTENT_LENGTH and MAX_FRAME_BYTES must be positive")
	}
	if _, err := CharacterRune(c.CharReplacement); err != nil {
		return err
	}
	return nil
}

// DSN returns DATABASE_URL when set, otherwise builds it from the DATABASE_* pieces.
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DatabaseUsername, c.DatabasePassword),
		Host:     net.JoinHostPort(c.DatabaseHost, strconv.Itoa(c.DatabasePort)),
		Path:     "/" + c.DatabaseName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) HealthAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.HealthPort))
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
