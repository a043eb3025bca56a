package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/contentgen/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "contentgen",
	Short: "Educational content generator for primary school teachers",
	Long: "contentgen turns a topic, a grade and a content template into a lesson plan, quiz,\n" +
		"worksheet or story using a hosted language model, and can draw a matching illustration.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a contentgen.yaml config file")
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite history database (overrides CONTENTGEN_DB env var)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(templatesCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then history.db from config, then CONTENTGEN_DB env var, then the default
// XDG path.
func resolveDBPath(cmd *cobra.Command, configured string) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if configured != "" {
		return configured, store.EnsureDir(configured)
	}
	return store.DefaultDBPath()
}
