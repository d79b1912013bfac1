package cli

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"k2ledger/internal/campaign"
	"k2ledger/internal/catalog"
	"k2ledger/internal/cdpp"
	"k2ledger/internal/layout"
)

func newCDPPCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cdpp",
		Short: "Compute and compare 6-hour CDPP tables",
	}

	var (
		campaignID  string
		lightCurves string
		out         string
		cadence     string
		jsonOut     bool
	)
	compute := &cobra.Command{
		Use:   "compute --campaign <id> --light-curves <dir> --out <table>",
		Short: "Append raw and de-trended CDPP for every campaign target not yet in the table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := campaign.Parse(campaignID)
			if err != nil {
				return err
			}
			targets, err := catalog.NewTableResolver(a.cfg.CatalogDir).ResolveCampaignTargets(cmd.Context(), id, cadence)
			if err != nil {
				return fmt.Errorf("resolve targets for campaign %s: %w", id, err)
			}
			res, err := cdpp.Compute(cmd.Context(), cdpp.Options{
				Targets:     targets,
				LightCurves: lightCurves,
				Out:         out,
				Logger:      a.logger,
			})
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d targets: %d already present, %d added, %d failed\n",
				res.Total, res.Already, res.Added, res.Failed)
			return nil
		},
	}
	compute.Flags().StringVar(&campaignID, "campaign", "", "campaign or decile, e.g. 5 or 5.3")
	compute.Flags().StringVar(&lightCurves, "light-curves", "", "directory of <epic>.txt light curves")
	compute.Flags().StringVar(&out, "out", "", "CDPP table to create or extend")
	compute.Flags().StringVar(&cadence, "cadence", layout.CadenceLong, "cadence: lc|sc")
	compute.Flags().BoolVar(&jsonOut, "json", false, "print JSON output")
	_ = compute.MarkFlagRequired("campaign")
	_ = compute.MarkFlagRequired("light-curves")
	_ = compute.MarkFlagRequired("out")

	var showRows bool
	compare := &cobra.Command{
		Use:   "compare <table-a> <table-b>",
		Short: "Report the relative de-trended CDPP difference of table b against table a",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tableA, err := cdpp.ReadTable(args[0])
			if err != nil {
				return err
			}
			tableB, err := cdpp.ReadTable(args[1])
			if err != nil {
				return err
			}
			res := cdpp.Compare(tableA, tableB)
			w := cmd.OutOrStdout()
			if showRows {
				for _, r := range res.Rows {
					fmt.Fprintf(w, "%09d %15.3f %15.3f %10s\n", r.ID, r.A, r.B, formatRatio(r.Diff))
				}
			}
			fmt.Fprintf(w, "targets:          %d\n", len(res.Rows))
			fmt.Fprintf(w, "missing in b:     %d\n", res.Missing)
			fmt.Fprintf(w, "median cdpp a:    %.3f\n", res.MedianA)
			fmt.Fprintf(w, "median cdpp b:    %.3f\n", res.MedianB)
			fmt.Fprintf(w, "median rel. diff: %s\n", formatRatio(res.MedianDiff))
			return nil
		},
	}
	compare.Flags().BoolVar(&showRows, "rows", false, "also print one line per target")

	cmd.AddCommand(compute, compare)
	return cmd
}

func formatRatio(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%+.2f%%", 100*v)
}
