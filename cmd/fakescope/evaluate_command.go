package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahrav/fakescope/internal/application"
)

func newEvaluateCommand(ctx *commandContext) *cobra.Command {
	var manifestPath string
	var workers int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score the ensemble against a labeled manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(manifestPath) == "" {
				return fmt.Errorf("--manifest is required")
			}
			manifest, err := application.LoadManifest(manifestPath)
			if err != nil {
				return err
			}

			e, err := ctx.ensemble()
			if err != nil {
				return err
			}

			report, err := application.Evaluate(cmd.Context(), e, manifest.Samples, application.EvaluationOptions{
				Workers: workers,
				Metrics: ctx.metrics,
				Logger:  ctx.logger,
			})
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, report)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderReport(report))
			return nil
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "Manifest of labeled samples")
	cmd.Flags().IntVarP(&workers, "workers", "w", 1, "Concurrent predictions; only raise when classifiers allow it")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the report as JSON")
	return cmd
}

func renderReport(r *application.EvaluationReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run %s: %d samples in %s\n", r.RunID, len(r.Predictions), r.Duration.Round(time.Millisecond))

	rows := make([][]string, 0, len(r.Predictions))
	for _, p := range r.Predictions {
		mark := "yes"
		if !p.Correct() {
			mark = "no"
		}
		rows = append(rows, []string{
			p.Sample.ID,
			p.Truth.String(),
			p.Result.Label.String(),
			fmt.Sprintf("%.3f", p.Result.Probabilities.Fake),
			mark,
		})
	}
	b.WriteString(renderTable(
		[]string{"Sample", "Truth", "Predicted", "Fake", "Correct"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	b.WriteString("\n\n")

	s := r.Scores
	b.WriteString(renderTable(
		[]string{"Metric", "Value"},
		[][]string{
			{"Accuracy", formatScore(s.Accuracy)},
			{"Precision", formatScore(s.Precision)},
			{"Recall", formatScore(s.Recall)},
			{"F1", formatScore(s.F1)},
			{"Mean fake probability", formatScore(s.MeanFakeProbability)},
		},
		[]columnAlignment{alignLeft, alignRight},
	))
	b.WriteString("\n\n")

	cm := r.Confusion
	b.WriteString(renderTable(
		[]string{"Truth \\ Predicted", "Real", "Fake"},
		[][]string{
			{"Real", strconv.Itoa(cm.TrueReal), strconv.Itoa(cm.FalseFake)},
			{"Fake", strconv.Itoa(cm.FalseReal), strconv.Itoa(cm.TrueFake)},
		},
		[]columnAlignment{alignLeft, alignRight, alignRight},
	))
	b.WriteString("\n")
	return b.String()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
