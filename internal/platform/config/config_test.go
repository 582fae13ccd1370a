package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

var managedKeys = []string{
	"STORAGE_BACKEND", "DATABASE_URL", "NONCE_BACKEND", "REDIS_URL", "KAFKA_BROKERS",
	"DAO_NAME", "DAO_NFT_COLLECTION", "SOLANA_RPC_URL", "SOLANA_RPC_TIMEOUT",
	"DISPLAY_NAME_MAX_LENGTH", "BIO_MAX_LENGTH", "TOKEN_TTL",
}

// clearEnv unsets keys for the duration of the test so envconfig defaults apply.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range managedKeys {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() err=%v", err)
	}
	if cfg.Membership.DAOName != "Stalabard DAO" {
		t.Fatalf("DAOName=%q", cfg.Membership.DAOName)
	}
	if cfg.Membership.RPCURL != "https://api.mainnet-beta.solana.com" {
		t.Fatalf("RPCURL=%q", cfg.Membership.RPCURL)
	}
	if cfg.Membership.RPCTimeout() != 30*time.Second {
		t.Fatalf("RPCTimeout=%v", cfg.Membership.RPCTimeout())
	}
	if cfg.Membership.DisplayNameMaxLength != 50 || cfg.Membership.BioMaxLength != 500 {
		t.Fatalf("caps=%d/%d", cfg.Membership.DisplayNameMaxLength, cfg.Membership.BioMaxLength)
	}
	if cfg.Credential.TTL != 7*24*time.Hour {
		t.Fatalf("TTL=%v", cfg.Credential.TTL)
	}
	if cfg.Membership.DAOCollection != "" {
		t.Fatalf("DAOCollection=%q, want empty", cfg.Membership.DAOCollection)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DAO_NFT_COLLECTION", "  Coll111  ")
	t.Setenv("SOLANA_RPC_TIMEOUT", "5")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("STORAGE_BACKEND", "sqlite")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() err=%v", err)
	}
	if cfg.Membership.DAOCollection != "Coll111" {
		t.Fatalf("DAOCollection=%q", cfg.Membership.DAOCollection)
	}
	if cfg.Membership.RPCTimeout() != 5*time.Second {
		t.Fatalf("RPCTimeout=%v", cfg.Membership.RPCTimeout())
	}
	if strings.Join(cfg.Server.KafkaBrokers, ",") != "k1:9092,k2:9092" {
		t.Fatalf("KafkaBrokers=%v", cfg.Server.KafkaBrokers)
	}
}

func TestLoadFromEnv_RejectsIncompleteBackends(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatalf("expected error for postgres without DATABASE_URL")
	}

	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("NONCE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatalf("expected error for redis without REDIS_URL")
	}

	t.Setenv("NONCE_BACKEND", "carrier-pigeon")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatalf("expected error for unknown nonce backend")
	}
}
