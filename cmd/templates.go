package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/contentgen/internal/config"
	"github.com/abhisek/contentgen/internal/templates"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the available content templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry(cmd)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-16s  %s\n", "Key", "Name")
		fmt.Fprintln(out, strings.Repeat("─", 40))
		for _, t := range reg.List() {
			fmt.Fprintf(out, "%-16s  %s\n", t.Key, t.Name)
		}
		fmt.Fprintf(out, "\n%d templates\n", reg.Len())
		return nil
	},
}

// loadRegistry returns the configured template table without touching
// providers or the database.
func loadRegistry(cmd *cobra.Command) (*templates.Registry, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cfg.Templates.File == "" {
		return templates.Default(), nil
	}
	reg, err := templates.Load(cfg.Templates.File)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	return reg, nil
}
