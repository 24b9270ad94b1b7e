package main

import (
	"fmt"
	"strings"

	"validation-viewer/core/monitoring"
	"validation-viewer/core/orchestrator"
	"validation-viewer/core/reconciler"
	"validation-viewer/core/selection"

	"github.com/spf13/cobra"
)

func (a *app) keyCmd() *cobra.Command {
	var reference string
	cmd := &cobra.Command{
		Use:   "key <revision>...",
		Short: "Print the comparison key of a selection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			state, err := a.resolve(cmd.ErrOrStderr(), cat, args, "", reference)
			if err != nil {
				return err
			}
			_, ordered, err := state.Comparison()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(ordered, selection.KeySeparator))
			return nil
		},
	}
	cmd.Flags().StringVar(&reference, "reference", "", "explicit comparison reference")
	return cmd
}

func (a *app) compareCmd() *cobra.Command {
	var (
		mode      string
		reference string
	)
	cmd := &cobra.Command{
		Use:   "compare [revision]...",
		Short: "Load a comparison, generating it if needed",
		Long: `Loads the comparison of the given revisions, or of the default selection
of --mode when none are given. Missing comparisons are generated by the
backend while progress is shown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			cat, err := a.loadCatalog(ctx)
			if err != nil {
				return err
			}
			state, err := a.resolve(cmd.ErrOrStderr(), cat, args, mode, reference)
			if err != nil {
				return err
			}
			ref, ordered, err := state.Comparison()
			if err != nil {
				return err
			}
			key := strings.Join(ordered, selection.KeySeparator)

			orch, err := orchestrator.New(a.client, orchestrator.Options{
				PollInterval:    a.cfg.PollInterval,
				PollTimeout:     a.cfg.PollTimeout,
				MaxPollFailures: a.cfg.MaxPollFailures,
				Logger:          a.logger,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "%s %s\n", titleStyle.Render("comparing"), key)
			obs := orchestrator.Observers{newProgressPrinter(out), monitoring.NewJobMonitor(a.logger)}
			artifact, err := orch.Run(ctx, key, ordered, obs)
			if err != nil {
				return err
			}

			newest := cat.Newest(state.Selected())
			enriched := reconciler.Reconcile(artifact, newest)

			fmt.Fprintf(out, "%s %s\n", titleStyle.Render("reference:"), ref)
			if enriched.NewestRevision != nil {
				fmt.Fprintf(out, "%s %s\n", titleStyle.Render("newest:"), enriched.NewestRevision.Label)
			}
			for _, pkg := range enriched.Packages {
				plots := 0
				for _, pf := range pkg.PlotFiles {
					plots += len(pf.Plots)
				}
				line := fmt.Sprintf("%-24s plots=%-4d comparison_errors=%-3d failed_scripts=%d",
					pkg.Name, plots, pkg.ComparisonError, pkg.FailCount)
				switch {
				case pkg.FailCount > 0 || pkg.ComparisonError > 0:
					fmt.Fprintln(out, errorStyle.Render(line))
				default:
					fmt.Fprintln(out, labelStyle.Render(line))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "default selection mode when no revisions are given")
	cmd.Flags().StringVar(&reference, "reference", "", "explicit comparison reference")
	return cmd
}
