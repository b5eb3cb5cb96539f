package commands

import (
	"campusbot/internal/config"
	"campusbot/internal/models"
	"campusbot/internal/providers"
	"campusbot/internal/services"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// operator runs tests with admin rights so server keys may be used
var operator = services.Principal{UserID: "campusctl", Role: models.RoleAdmin}

func newTestProviderCmd() *cobra.Command {
	var req models.TestConnectionRequest

	cmd := &cobra.Command{
		Use:   "test-provider [ollama|openai|gemini]...",
		Short: "Run a connection test against the server default providers",
		Long: `Runs the same connection test as POST /api/settings/test-connection.
With no arguments every provider kind is tested. Flags override the
server defaults for the test only.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			kinds := providers.AllKinds()
			if len(args) > 0 {
				kinds = kinds[:0:0]
				for _, arg := range args {
					k, err := providers.ParseKind(arg)
					if err != nil {
						return err
					}
					kinds = append(kinds, k)
				}
			}

			registry := providers.NewDefaultRegistry(&http.Client{})
			tester := services.NewConnectionTester(registry, config.NewDefaultsStore(cfg.Providers), cfg.ConnectionTestTimeout)

			out := cmd.OutOrStdout()
			failed := 0
			for _, k := range kinds {
				r := req
				r.Provider = string(k)
				res := tester.Test(cmd.Context(), r, operator)
				mark := "✅"
				if !res.Success {
					mark = "❌"
					failed++
				}
				fmt.Fprintf(out, "%s %-7s %s\n", mark, k, res.Message)
				if res.Details != "" {
					fmt.Fprintf(out, "          %s\n", res.Details)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d provider(s) failed", failed, len(kinds))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.APIKey, "api-key", "", "API key for hosted providers")
	cmd.Flags().StringVar(&req.OllamaURL, "ollama-url", "", "Ollama base URL")
	cmd.Flags().StringVar(&req.Model, "model", "", "model to test")
	return cmd
}
