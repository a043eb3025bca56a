package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/contentgen/internal/generate"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Print the prompt a template would send (no model call)",
	Long: `Fill a template with the given values and print the resulting prompt.

This is a stateless tool: no API key, no database, no events.
Useful for checking a custom templates file before using it.`,
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().StringP("template", "t", "", "Template key (required)")
	previewCmd.Flags().String("topic", "", "Topic of the content")
	previewCmd.Flags().String("grade", "", "Grade level: 1st to 5th")
	previewCmd.Flags().IntP("count", "n", generate.DefaultCount, "Number of questions or items")
	previewCmd.Flags().String("elements", "", "Story elements, for the story template")
	_ = previewCmd.MarkFlagRequired("template")
}

func runPreview(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry(cmd)
	if err != nil {
		return err
	}

	p := generate.Params{}
	p.TemplateKey, _ = cmd.Flags().GetString("template")
	p.Topic, _ = cmd.Flags().GetString("topic")
	p.Grade, _ = cmd.Flags().GetString("grade")
	p.Count, _ = cmd.Flags().GetInt("count")
	p.Elements, _ = cmd.Flags().GetString("elements")

	prompt, err := generate.Prompt(reg, p)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), prompt)
	return nil
}
