package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/testimony-tracker/internal/testimony"
)

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Runs one update, prune, and regenerate pass, then exits",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			tasks := appInstance.Tasks()
			ctx := cmd.Context()
			if err := tasks.Update(ctx); err != nil {
				return fmt.Errorf("update: %w", err)
			}
			var errs []error
			if err := tasks.Prune(ctx); err != nil {
				errs = append(errs, fmt.Errorf("prune: %w", err))
			}
			if err := tasks.Regenerate(ctx); err != nil {
				errs = append(errs, fmt.Errorf("regenerate: %w", err))
			}
			for _, e := range errs {
				appInstance.Logger().Warn("refresh pass incomplete", zap.Error(e))
			}
			renderResults(cmd.OutOrStdout(), appInstance.Config().Source.DisplayBill(), tasks.Snapshot())
			return errors.Join(errs...)
		},
	}
}

func newCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Prints the current stance tallies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			tasks := appInstance.Tasks()
			if err := tasks.Update(cmd.Context()); err != nil {
				return fmt.Errorf("update: %w", err)
			}
			renderResults(cmd.OutOrStdout(), appInstance.Config().Source.DisplayBill(), tasks.Snapshot())
			return nil
		},
	}
}

func newMissingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "missing",
		Short: "Prints supporters of the comparison bill who have not testified yet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config()
			if cfg.Source.CompareURL() == "" {
				return errors.New("no comparison bill configured (source.compare_bill)")
			}
			if err := appInstance.Tasks().Update(cmd.Context()); err != nil {
				return fmt.Errorf("update: %w", err)
			}
			// #nosec G304 -- path comes from configuration.
			data, err := os.ReadFile(cfg.Storage.MissingNamesPath())
			if err != nil {
				return fmt.Errorf("read missing names: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, name := range strings.Split(string(data), "\n") {
				if name != "" {
					fmt.Fprintln(out, name)
				}
			}
			return nil
		},
	}
}

func renderResults(w io.Writer, bill string, snap *testimony.Snapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(bill + " testimony")
	t.AppendHeader(table.Row{"Stance", "Count"})
	if snap == nil {
		snap = &testimony.Snapshot{}
	}
	t.AppendRow(table.Row{"Total", snap.Results.Total})
	for _, stance := range testimony.Stances {
		t.AppendRow(table.Row{string(stance), snap.Results.Count(stance)})
	}
	if snap.MissingEnabled {
		t.AppendFooter(table.Row{"Missing", snap.MissingCount})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
