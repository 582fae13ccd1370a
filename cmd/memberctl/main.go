// Command memberctl administers membership records in the configured store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Huaoe/ElurcFleet/internal/adapters/backends"
	"github.com/Huaoe/ElurcFleet/internal/app/members"
	"github.com/Huaoe/ElurcFleet/internal/domain"
	platformclock "github.com/Huaoe/ElurcFleet/internal/platform/clock"
	"github.com/Huaoe/ElurcFleet/internal/platform/config"
	"github.com/Huaoe/ElurcFleet/internal/platform/logging"
)

const programName = "memberctl"

// openLedgerFunc returns a ledger and a function releasing its backends.
type openLedgerFunc func(ctx context.Context) (*members.Service, func(), error)

var globalFlags = struct {
	debug   bool
	envFile string
}{}

func openFromEnv(ctx context.Context) (*members.Service, func(), error) {
	if err := config.LoadDotEnv(globalFlags.envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	level := cfg.Server.LogLevel
	if globalFlags.debug {
		level = "debug"
	}
	log, err := logging.New(cfg.Server.Environment, level, cfg.Server.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	log = log.With(zap.String("component", programName))

	clk := platformclock.NewSystemClock()
	stores, err := backends.Open(ctx, cfg.Server, clk, log)
	if err != nil {
		return nil, nil, err
	}
	ledger := members.NewService(stores.Identities, stores.Profiles, clk, members.Options{
		Events:               stores.Events,
		Logger:               log,
		DisplayNameMaxLength: cfg.Membership.DisplayNameMaxLength,
		BioMaxLength:         cfg.Membership.BioMaxLength,
	})
	return ledger, func() {
		if err := stores.Close(); err != nil {
			log.Warn("close backends", zap.Error(err))
		}
		_ = log.Sync()
	}, nil
}

func newRootCommand(open openLedgerFunc) *cobra.Command {
	root := &cobra.Command{
		Use:           programName,
		Short:         "Administer DAO membership records",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	root.PersistentFlags().StringVar(&globalFlags.envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	root.AddCommand(
		transitionCommand(open, "suspend", "Suspend a member's access", func(ctx context.Context, l *members.Service, w domain.WalletAddress, reason string) (domain.MemberIdentity, error) {
			return l.Suspend(ctx, w, reason)
		}),
		transitionCommand(open, "revoke", "Permanently revoke a membership", func(ctx context.Context, l *members.Service, w domain.WalletAddress, reason string) (domain.MemberIdentity, error) {
			return l.Revoke(ctx, w, reason)
		}),
		transitionCommand(open, "reactivate", "Reactivate a suspended member", func(ctx context.Context, l *members.Service, w domain.WalletAddress, _ string) (domain.MemberIdentity, error) {
			return l.Reactivate(ctx, w)
		}),
		transitionCommand(open, "delete", "Soft-delete a member and their profile", func(ctx context.Context, l *members.Service, w domain.WalletAddress, _ string) (domain.MemberIdentity, error) {
			return l.DeleteMember(ctx, w)
		}),
		showCommand(open),
		statsCommand(open),
	)
	return root
}

type transitionFunc func(ctx context.Context, l *members.Service, w domain.WalletAddress, reason string) (domain.MemberIdentity, error)

func transitionCommand(open openLedgerFunc, use, short string, fn transitionFunc) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   use + " <wallet>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, done, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			m, err := fn(cmd.Context(), ledger, domain.WalletAddress(args[0]), reason)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), identityOutput(m))
		},
	}
	if use == "suspend" || use == "revoke" {
		cmd.Flags().StringVar(&reason, "reason", "", "reason recorded on the identity")
	}
	return cmd
}

func showCommand(open openLedgerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "show <wallet>",
		Short: "Show a member's identity and profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, done, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			m, err := ledger.FindByWallet(cmd.Context(), domain.WalletAddress(args[0]))
			if err != nil {
				return err
			}
			out := struct {
				Identity identityView `json:"identity"`
				Profile  *profileView `json:"profile,omitempty"`
			}{Identity: identityOutput(m)}
			p, err := ledger.GetProfile(cmd.Context(), m.ID)
			switch {
			case err == nil:
				pv := profileOutput(p)
				out.Profile = &pv
			case !members.IsCode(err, members.CodeProfileNotFound):
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func statsCommand(open openLedgerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count members by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ledger, done, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			st, err := ledger.Stats(cmd.Context())
			if err != nil {
				return err
			}
			counts := make(map[string]int, len(st.Counts))
			for k, v := range st.Counts {
				counts[string(k)] = v
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"total": st.Total, "byStatus": counts})
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := newRootCommand(openFromEnv).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		os.Exit(1)
	}
}
