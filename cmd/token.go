package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mhoffm/taskdeck/internal/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		authSecret string
		subject    string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token",
		Long: `Mint an HS256-signed bearer token the server will accept.

This is a development helper: production deployments mint tokens in their
own identity service against the same shared secret. The subject must be
a UUID (a random one is generated when omitted); it becomes the caller's
task list identity.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("auth-secret") && authSecret == "" {
				authSecret = os.Getenv("TASKDECK_AUTH_SECRET")
			}
			if authSecret == "" {
				return fmt.Errorf("auth secret is required: set --auth-secret or TASKDECK_AUTH_SECRET")
			}
			if subject == "" {
				subject = uuid.New().String()
			}
			if _, err := uuid.Parse(subject); err != nil {
				return fmt.Errorf("subject must be a valid UUID: %w", err)
			}

			verifier, err := auth.NewVerifier(authSecret)
			if err != nil {
				return err
			}
			token, err := verifier.Issue(subject, ttl, nil)
			if err != nil {
				return fmt.Errorf("failed to mint token: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "subject: %s\ntoken: %s\n", subject, token)
			return nil
		},
	}

	cmd.Flags().StringVar(&authSecret, "auth-secret", "", "Shared secret for token signing. Can also use TASKDECK_AUTH_SECRET env var.")
	cmd.Flags().StringVar(&subject, "subject", "", "Token subject UUID (default: a new random UUID)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")

	return cmd
}
