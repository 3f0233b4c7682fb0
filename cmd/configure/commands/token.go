package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/studygenius/studygenius/internal/config"
	"github.com/studygenius/studygenius/internal/services/entitlement"
)

// NewTokenCmd creates the token command
func NewTokenCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a premium entitlement token",
		Long:  "Issue a signed premium token for a session, for support and testing. Requires ENTITLEMENT_SECRET.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.EntitlementSecret == "" {
				return fmt.Errorf("ENTITLEMENT_SECRET is not configured")
			}

			if sessionID == "" {
				sessionID = uuid.NewString()
			} else if uuid.Validate(sessionID) != nil {
				return fmt.Errorf("--session must be a UUID")
			}

			svc, err := entitlement.NewService([]byte(cfg.EntitlementSecret), cfg.EntitlementTTL)
			if err != nil {
				return fmt.Errorf("failed to create entitlement service: %w", err)
			}

			token, err := svc.IssuePremium(sessionID)
			if err != nil {
				return fmt.Errorf("failed to issue token: %w", err)
			}

			fmt.Printf("Session: %s\n", sessionID)
			fmt.Printf("Token:   %s\n", token)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID to issue the token for (default: a fresh UUID)")
	return cmd
}
