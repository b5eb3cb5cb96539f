package commands

import (
	"campusbot/internal/config"
	"campusbot/internal/knowledge"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newReindexCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Load the knowledge base and list the indexed documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				dir = cfg.KnowledgeDir
			}

			base := knowledge.NewBase(dir)
			if err := base.Reload(); err != nil {
				return fmt.Errorf("failed to index %s: %w", dir, err)
			}

			docs := base.Documents()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tDOCUMENT\tLINES")
			for _, d := range docs {
				fmt.Fprintf(w, "%s\t%s\t%d\n", d.Category, d.Name, d.Lines)
			}
			w.Flush()
			fmt.Fprintf(cmd.OutOrStdout(), "%d document(s) indexed from %s\n", len(docs), dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "knowledge base directory (default KNOWLEDGE_DIR)")
	return cmd
}
