package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/auth"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/authstate"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/log"
)

func execute() error {
	root := &cobra.Command{
		Use:           "whatsapp-webhook-bridge",
		Short:         "Relay WhatsApp messages to a webhook and back",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	root.AddCommand(serveCmd(), logoutCmd(), tokenCmd())

	if err := root.Execute(); err != nil {
		log.Print(nil).Error(err.Error())
		return err
	}
	return nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the WhatsApp session (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the linked device and clear stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			deps, err := openDependencies(ctx, cfg)
			if err != nil {
				return err
			}
			defer deps.close()

			state, err := authstate.Load(ctx, deps.store)
			if err != nil {
				return err
			}
			if err := deps.dialer.Forget(ctx, state.Creds); err != nil {
				return fmt.Errorf("forget device: %w", err)
			}
			if err := deps.store.Clear(ctx); err != nil {
				return fmt.Errorf("clear auth state: %w", err)
			}

			log.Print(nil).Info("Stored credentials cleared, remove the linked device from the phone as well")
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token signed with HTTP_AUTH_JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			token, err := auth.GenerateToken(cfg.JWTSecret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
	return cmd
}
