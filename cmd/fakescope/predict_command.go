package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahrav/fakescope/internal/application"
	"github.com/ahrav/fakescope/internal/domain"
)

func newPredictCommand(ctx *commandContext) *cobra.Command {
	var image, video, audio string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "predict [files...]",
		Short: "Classify media as Real or Fake",
		Long: "Classify one image, video and/or audio file with the configured ensemble.\n" +
			"Positional files are routed to a modality by their content.",
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := collectInputs(image, video, audio, args)
			if err != nil {
				return err
			}

			e, err := ctx.ensemble()
			if err != nil {
				return err
			}

			result, err := e.Predict(cmd.Context(), inputs)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, result)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderResult(result))
			return nil
		},
	}

	cmd.Flags().StringVar(&image, "image", "", "Image file")
	cmd.Flags().StringVar(&video, "video", "", "Video file")
	cmd.Flags().StringVar(&audio, "audio", "", "Audio file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the result as JSON")
	return cmd
}

// collectInputs merges explicit flags with content-routed positional files.
func collectInputs(image, video, audio string, files []string) (domain.Inputs, error) {
	inputs, err := application.InputsForFiles(files...)
	if err != nil {
		return domain.Inputs{}, err
	}

	explicit := domain.Inputs{Image: image, Video: video, Audio: audio}
	for _, m := range explicit.Present() {
		if prev := inputs.For(m); prev != "" {
			return domain.Inputs{}, fmt.Errorf("%w %s: %s and %s", application.ErrDuplicateModality, m, prev, explicit.For(m))
		}
		inputs = inputs.Set(m, explicit.For(m))
	}

	if inputs.Empty() {
		return domain.Inputs{}, fmt.Errorf("%w: pass --image, --video, --audio or at least one file", domain.ErrInvalidInput)
	}
	return inputs, nil
}

func renderResult(result domain.EnsembleResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Verdict: %s (real %.3f, fake %.3f)\n",
		result.Label, result.Probabilities.Real, result.Probabilities.Fake)

	rows := make([][]string, 0, len(result.Contributions))
	for _, c := range result.Contributions {
		rows = append(rows, []string{
			c.Modality.String(),
			fmt.Sprintf("%.2f", c.Weight),
			fmt.Sprintf("%.3f", c.Probabilities.Real),
			fmt.Sprintf("%.3f", c.Probabilities.Fake),
		})
		for _, sub := range c.SubScores {
			rows = append(rows, []string{
				"  " + sub.Name,
				fmt.Sprintf("%.2f", sub.Weight),
				fmt.Sprintf("%.3f", sub.Probabilities.Real),
				fmt.Sprintf("%.3f", sub.Probabilities.Fake),
			})
		}
	}
	if len(rows) > 0 {
		b.WriteString(renderTable(
			[]string{"Modality", "Weight", "Real", "Fake"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
		))
		b.WriteString("\n")
	}
	return b.String()
}
