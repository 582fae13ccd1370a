package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/Huaoe/ElurcFleet/internal/adapters/backends"
	"github.com/Huaoe/ElurcFleet/internal/adapters/httpapi"
	"github.com/Huaoe/ElurcFleet/internal/adapters/solana/rpcclient"
	"github.com/Huaoe/ElurcFleet/internal/app/challenge"
	"github.com/Huaoe/ElurcFleet/internal/app/collection"
	"github.com/Huaoe/ElurcFleet/internal/app/members"
	"github.com/Huaoe/ElurcFleet/internal/app/verification"
	"github.com/Huaoe/ElurcFleet/internal/platform/auth/credential"
	platformclock "github.com/Huaoe/ElurcFleet/internal/platform/clock"
	"github.com/Huaoe/ElurcFleet/internal/platform/config"
	"github.com/Huaoe/ElurcFleet/internal/platform/logging"
	"github.com/Huaoe/ElurcFleet/internal/platform/metrics"
	"github.com/Huaoe/ElurcFleet/internal/platform/signature"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logging.New(cfg.Server.Environment, cfg.Server.LogLevel, cfg.Server.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := platformclock.NewSystemClock()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	stores, err := backends.Open(ctx, cfg.Server, clk, log)
	if err != nil {
		return fmt.Errorf("open backends: %w", err)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Warn("close backends", zap.Error(err))
		}
	}()
	go stores.RunNoncePurge(ctx, 10*time.Minute, log)

	key, err := credential.LoadOrGenerateKeypair(cfg.Credential.SigningKeyFile, cfg.Credential.KeyID)
	if err != nil {
		return fmt.Errorf("load signing key: %w", err)
	}
	if cfg.Credential.SigningKeyFile == "" {
		log.Warn("TOKEN_SIGNING_KEY_FILE not set; credentials will not survive a restart")
	}
	issuer := credential.NewIssuer(cfg.Credential, key, clk)
	tokens := credential.NewVerifier(cfg.Credential, issuer.KeySet(), clk)

	rpc := rpcclient.New(cfg.Membership.RPCURL, rpcclient.Options{
		Timeout: cfg.Membership.RPCTimeout(),
		Logger:  log,
		Metrics: m,
	})
	matcher := collection.NewMatcher(rpc, collection.Options{
		Concurrency: cfg.Membership.MatchConcurrency,
		Logger:      log,
	})

	ledger := members.NewService(stores.Identities, stores.Profiles, clk, members.Options{
		Events:               stores.Events,
		Logger:               log,
		Metrics:              m,
		DisplayNameMaxLength: cfg.Membership.DisplayNameMaxLength,
		BioMaxLength:         cfg.Membership.BioMaxLength,
	})
	guard := challenge.NewGuard(stores.Nonces, clk, cfg.Membership.DAOName, challenge.Options{Logger: log, Metrics: m})
	verify := verification.NewService(ledger, signature.New(), matcher, cfg.Membership.DAOCollection, verification.Options{
		Logger:  log,
		Metrics: m,
	})
	if cfg.Membership.DAOCollection == "" {
		log.Warn("DAO_NFT_COLLECTION not set; verification requests will fail with CONFIG_MISSING")
	}

	api := httpapi.NewServer(guard, verify, ledger, issuer, clk, log)
	handler := httpapi.NewRouter(api, httpapi.RouterOptions{
		Tokens:        tokens,
		Gatherer:      reg,
		VerifyLimiter: httpapi.NewClientLimiter(cfg.Server.VerifyRateLimit, cfg.Server.VerifyRateBurst),
		CORSOrigins:   cfg.Server.CORSOrigins,
		Logger:        log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening", zap.String("addr", srv.Addr), zap.String("environment", cfg.Server.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
