// Command crmctl is the operator CLI of the CRM backend. It talks to
// Supabase with the service-role key, so every command bypasses the
// superadmin check enforced by the HTTP API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/boddenberg/crm-farol-bfa/internal/config"
	"github.com/boddenberg/crm-farol-bfa/internal/domain"
	"github.com/boddenberg/crm-farol-bfa/internal/infra/cache"
	"github.com/boddenberg/crm-farol-bfa/internal/infra/observability"
	"github.com/boddenberg/crm-farol-bfa/internal/infra/resilience"
	"github.com/boddenberg/crm-farol-bfa/internal/infra/supabase"
	"github.com/boddenberg/crm-farol-bfa/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds what the subcommands share once the root command has run.
type app struct {
	admin  *service.AdminService
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var envFile string

	root := &cobra.Command{
		Use:           "crmctl",
		Short:         "Operator tooling for the CRM backend",
		Long:          "crmctl lists datasets and users, invites users and toggles access using the Supabase service-role key.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if !cfg.SupabaseConfigured() {
				return &domain.ErrMisconfigured{Message: "Missing SUPABASE_SERVICE_ROLE_KEY or URL"}
			}

			a.logger = observability.NewLogger(cfg.LogLevel)
			a.admin = newAdminService(cfg, a.logger)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	root.AddCommand(
		newTablesCmd(a),
		newUsersCmd(a),
		newInviteCmd(a),
		newSetActiveCmd(a),
	)
	return root
}

func newAdminService(cfg *config.Config, logger *zap.Logger) *service.AdminService {
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	sb := supabase.NewClient(&http.Client{Timeout: cfg.HTTPTimeout}, supabase.Options{
		BaseURL:           cfg.SupabaseURL,
		AnonKey:           cfg.SupabaseAnonKey,
		ServiceRoleKey:    cfg.SupabaseServiceKey,
		InviteRedirectURL: cfg.InviteRedirectURL,
	}, resilience.NewCircuitBreaker("supabase", supabase.IsCallerError), resilienceCfg, logger)

	// Zero TTL: nothing is cached.
	return service.NewAdminService(sb, sb, sb, cache.New[*domain.Profile](0), cfg.DefaultTable, observability.NewMetrics(), logger)
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
