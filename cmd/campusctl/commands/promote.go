package commands

import (
	"campusbot/internal/config"
	"campusbot/internal/services"
	"fmt"

	"github.com/spf13/cobra"
)

func newPromoteAdminsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote-admins",
		Short: "Grant the admin role to users in ADMIN_EMAIL_DOMAINS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if len(cfg.AdminEmailDomains) == 0 {
				return fmt.Errorf("ADMIN_EMAIL_DOMAINS is not set")
			}

			db, err := openDatabase(cfg)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			users := services.NewUserService(db, cfg.AllowedEmailDomains, cfg.AdminEmailDomains)
			n, err := users.PromoteAdmins(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "promoted %d user(s)\n", n)
			return nil
		},
	}
}
