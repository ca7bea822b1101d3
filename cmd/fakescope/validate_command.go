package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahrav/fakescope/internal/application"
	"github.com/ahrav/fakescope/internal/domain"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			e, err := ctx.ensemble()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration %s is valid\n", ctx.configPath)

			names := make([]string, 0, len(cfg.Classifiers))
			for name := range cfg.Classifiers {
				names = append(names, name)
			}
			sort.Strings(names)

			weights := e.Weights()
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				cc := cfg.Classifiers[name]
				var weight float64
				if m, err := domain.ParseModality(name); err == nil {
					weight = weights.For(m)
				}
				rows = append(rows, []string{name, cc.Type, cc.Name, fmt.Sprintf("%.2f", weight), target(cc)})
				for _, m := range cc.Members {
					rows = append(rows, []string{"", m.Type, "  " + m.Name, fmt.Sprintf("%.2f", m.Weight), target(m)})
				}
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Modality", "Type", "Name", "Weight", "Target"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}

// target describes where a classifier gets its scores.
func target(cc application.ClassifierConfig) string {
	switch cc.Type {
	case "static":
		if cc.Output != nil {
			return cc.Output.String()
		}
	case "ensemble":
		return fmt.Sprintf("%d members", len(cc.Members))
	}
	return strings.TrimSpace(cc.Endpoint)
}
