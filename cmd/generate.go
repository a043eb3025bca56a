package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/contentgen/internal/export"
	"github.com/abhisek/contentgen/internal/generate"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate content once and print it",
	Example: `  contentgen generate -t science --topic "Volcanoes" --grade 3rd
  contentgen generate -t math --topic Fractions --grade 4th --count 10 --export
  contentgen generate -t story --topic "The Moon" --grade 1st --image`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tmpl, _ := cmd.Flags().GetString("template")
		topic, _ := cmd.Flags().GetString("topic")
		grade, _ := cmd.Flags().GetString("grade")
		count, _ := cmd.Flags().GetInt("count")
		elements, _ := cmd.Flags().GetString("elements")
		doExport, _ := cmd.Flags().GetBool("export")
		doImage, _ := cmd.Flags().GetBool("image")
		outDir, _ := cmd.Flags().GetString("out")

		rt, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer rt.close()

		if outDir == "" {
			outDir = rt.cfg.Export.Dir
		}
		sink := export.NewDirSink(outDir)
		ctrl := rt.newController()
		ctx := cmd.Context()

		st, err := ctrl.GenerateText(ctx, generate.Params{
			TemplateKey: tmpl,
			Topic:       topic,
			Grade:       grade,
			Count:       count,
			Elements:    elements,
		})
		if err != nil {
			return err
		}
		if msg := st.ErrorMessage(); msg != "" {
			return errors.New(msg)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, st.Text.Text)
		fmt.Fprintln(os.Stderr)
		fmt.Fprintf(os.Stderr, "Generation Time: %.2fs | Token Count: %d\n",
			st.Text.Metrics.ElapsedSeconds, st.Text.Metrics.ApproxTokens)

		if doExport {
			if _, err := ctrl.Export(ctx, sink); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "Exported to", sink.LastPath)
		}

		if !doImage {
			return nil
		}
		st, err = ctrl.GenerateImage(ctx, topic)
		if err != nil {
			return err
		}
		if msg := st.ErrorMessage(); msg != "" {
			return errors.New(msg)
		}
		name, err := ctrl.SaveImage(ctx, sink)
		if err != nil {
			return err
		}
		if name != "" {
			fmt.Fprintln(os.Stderr, "Image saved to", sink.LastPath)
		} else if st.Image.URL != "" {
			fmt.Fprintln(os.Stderr, "Image URL:", st.Image.URL)
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().StringP("template", "t", "", "Template key (see `contentgen templates`)")
	generateCmd.Flags().String("topic", "", "Topic of the content")
	generateCmd.Flags().String("grade", "", "Grade level: 1st to 5th")
	generateCmd.Flags().IntP("count", "n", generate.DefaultCount, "Number of questions or items")
	generateCmd.Flags().String("elements", "", "Story elements, for the story template")
	generateCmd.Flags().Bool("export", false, "Save the generated text to a file")
	generateCmd.Flags().Bool("image", false, "Also generate an illustration for the topic")
	generateCmd.Flags().StringP("out", "o", "", "Directory for exported files (overrides export.dir)")
}
