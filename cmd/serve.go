package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rolegate/rolegate/cmd/cmdutil"
	"github.com/rolegate/rolegate/internal/audit"
	"github.com/rolegate/rolegate/internal/config"
	"github.com/rolegate/rolegate/internal/enrich"
	"github.com/rolegate/rolegate/internal/middleware"
	"github.com/rolegate/rolegate/internal/pattern"
	"github.com/rolegate/rolegate/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the rolegate HTTP server",
	Long:  `Starts the HTTP server with the enrichment pipeline and the administrative API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.Default()

		// Decision metrics wrap the configured audit recorder.
		recorder := middleware.CountDecisions(audit.ForConfig(cfg.AuditEnabled, logger))

		bundle, err := cmdutil.NewStoreBundle(cmd.Context(), cfg, cmdutil.BundleOptions{
			Logger: logger,
			Audit:  recorder,
			Seed:   true,
		})
		if err != nil {
			return err
		}
		defer bundle.Close()

		pipeline := enrich.New(enrich.Options{
			Roles:                bundle.Roles,
			Overrides:            bundle.Overrides,
			AdminPatterns:        pattern.NewSet(adminGlobs(cfg)),
			UserPatterns:         pattern.NewSet(userGlobs(cfg)),
			Audit:                recorder,
			AutoAssignUser:       cfg.AutoAssignUser,
			ImplicitAdminEnabled: cfg.ImplicitAdminEnabled,
			Logger:               logger,
		})

		var authenticator *middleware.Authenticator
		if cfg.JWT.Enabled() {
			authenticator, err = middleware.NewAuthenticator(middleware.AuthenticatorOptions{
				Secret:           []byte(cfg.JWT.Secret),
				Issuer:           cfg.JWT.Issuer,
				Audience:         cfg.JWT.Audience,
				GroupsClaimField: cfg.JWT.GroupsClaimField,
				GroupsClaimPath:  cfg.JWT.GroupsClaimPath,
				Logger:           logger,
			})
			if err != nil {
				return fmt.Errorf("configure authentication: %w", err)
			}
		} else {
			logger.Warn("ROLEGATE_JWT_SECRET is not set, authentication is disabled")
		}

		r := server.NewRouter(server.RouterOptions{
			Roles:              bundle.Roles,
			Overrides:          bundle.Overrides,
			Pipeline:           pipeline,
			Authenticator:      authenticator,
			PurgeRetentionDays: cfg.PurgeRetentionDays,
		})

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Start server in goroutine
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting server", "addr", cfg.ServerAddr, "database", cfg.UsesDatabase())
			serverErrors <- srv.ListenAndServe()
		}()

		// Wait for interrupt signal
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("shutting down gracefully", "signal", sig.String())

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			logger.Info("server stopped")
			return nil
		}
	},
}

// adminGlobs collects every admin name pattern: the configured pattern list
// plus wildcard entries from the admin seed list.
func adminGlobs(cfg *config.Config) []string {
	_, wildcards := pattern.SplitSeed(cfg.Admins)
	return append(append([]string(nil), cfg.AdminPatterns...), wildcards...)
}

func userGlobs(cfg *config.Config) []string {
	_, wildcards := pattern.SplitSeed(cfg.Users)
	return append(append([]string(nil), cfg.UserPatterns...), wildcards...)
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
