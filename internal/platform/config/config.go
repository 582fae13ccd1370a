// Package config loads typed service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Server configures process-level wiring: listeners, logging and backends.
type Server struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"console"`

	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"memory"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	SQLitePath     string `envconfig:"SQLITE_PATH"`

	NonceBackend string `envconfig:"NONCE_BACKEND" default:"memory"`
	RedisURL     string `envconfig:"REDIS_URL"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"membership.events"`

	CORSOrigins     []string `envconfig:"CORS_ORIGINS" default:"*"`
	VerifyRateLimit float64  `envconfig:"VERIFY_RATE_LIMIT" default:"1"`
	VerifyRateBurst int      `envconfig:"VERIFY_RATE_BURST" default:"5"`
}

// Membership configures the verification engine.
type Membership struct {
	DAOName string `envconfig:"DAO_NAME" default:"Stalabard DAO"`
	// DAOCollection is the collection address NFTs must belong to. Empty means
	// verification is unconfigured and fails with CONFIG_MISSING.
	DAOCollection string `envconfig:"DAO_NFT_COLLECTION"`

	RPCURL            string `envconfig:"SOLANA_RPC_URL" default:"https://api.mainnet-beta.solana.com"`
	RPCTimeoutSeconds int    `envconfig:"SOLANA_RPC_TIMEOUT" default:"30"`

	DisplayNameMaxLength int `envconfig:"DISPLAY_NAME_MAX_LENGTH" default:"50"`
	BioMaxLength         int `envconfig:"BIO_MAX_LENGTH" default:"500"`
	MatchConcurrency     int `envconfig:"MATCH_CONCURRENCY" default:"4"`
}

func (m Membership) RPCTimeout() time.Duration {
	return time.Duration(m.RPCTimeoutSeconds) * time.Second
}

// Credential configures the bearer tokens minted for verified members.
type Credential struct {
	Issuer         string        `envconfig:"TOKEN_ISSUER" default:"elurcfleet-membership"`
	Audience       string        `envconfig:"TOKEN_AUDIENCE" default:"elurcfleet-api"`
	TTL            time.Duration `envconfig:"TOKEN_TTL" default:"168h"`
	SigningKeyFile string        `envconfig:"TOKEN_SIGNING_KEY_FILE"`
	KeyID          string        `envconfig:"TOKEN_KID" default:"membership-1"`
	ClockSkew      time.Duration `envconfig:"TOKEN_CLOCK_SKEW" default:"30s"`
}

type Config struct {
	Server     Server
	Membership Membership
	Credential Credential
}

// LoadDotEnv loads variables from the given files (default ".env"). Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load dotenv: %w", err)
	}
	return nil
}

func LoadFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg.Server); err != nil {
		return Config{}, fmt.Errorf("server config: %w", err)
	}
	m, err := LoadMembershipFromEnv()
	if err != nil {
		return Config{}, err
	}
	cfg.Membership = m
	if err := envconfig.Process("", &cfg.Credential); err != nil {
		return Config{}, fmt.Errorf("credential config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadMembershipFromEnv() (Membership, error) {
	var m Membership
	if err := envconfig.Process("", &m); err != nil {
		return Membership{}, fmt.Errorf("membership config: %w", err)
	}
	m.DAOCollection = strings.TrimSpace(m.DAOCollection)
	return m, nil
}

// Validate checks cross-field requirements. A missing DAO collection is not an
// error here: the service starts and reports CONFIG_MISSING per request.
func (c Config) Validate() error {
	switch c.Server.StorageBackend {
	case "memory":
	case "postgres":
		if c.Server.DatabaseURL == "" {
			return errors.New("STORAGE_BACKEND=postgres requires DATABASE_URL")
		}
	case "sqlite":
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Server.StorageBackend)
	}
	switch c.Server.NonceBackend {
	case "memory":
	case "redis":
		if c.Server.RedisURL == "" {
			return errors.New("NONCE_BACKEND=redis requires REDIS_URL")
		}
	case "postgres":
		if c.Server.DatabaseURL == "" {
			return errors.New("NONCE_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown NONCE_BACKEND %q", c.Server.NonceBackend)
	}
	if c.Membership.RPCTimeoutSeconds <= 0 {
		return errors.New("SOLANA_RPC_TIMEOUT must be positive")
	}
	if c.Membership.DisplayNameMaxLength <= 0 || c.Membership.BioMaxLength <= 0 {
		return errors.New("DISPLAY_NAME_MAX_LENGTH and BIO_MAX_LENGTH must be positive")
	}
	if c.Credential.TTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	return nil
}
