package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"k2ledger/internal/campaign"
	"k2ledger/internal/catalog"
	"k2ledger/internal/ledger"
	"k2ledger/internal/logging"
	"k2ledger/internal/report"
)

type statusFlags struct {
	campaigns string
	model     string
	cadence   string
	purge     bool
	injection bool
	depths    []float64
	jsonOut   bool
	strict    bool
	watch     bool
	interval  time.Duration
}

// statusResult is the JSON shape of one scan.
type statusResult struct {
	Campaigns []any `json:"campaigns"`
	Anomalies int   `json:"anomalies"`
	Purged    int   `json:"purged"`
}

func newStatusCmd(a *app) *cobra.Command {
	f := &statusFlags{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report per-campaign download, de-trend and publish progress",
		Long: `Scans the data tree and prints one row per campaign. A single whole campaign
is reported per decile; a single campaign row also lists remaining and errored
targets when there are few of them.

Examples:
  k2ledger status
  k2ledger status --campaign 5
  k2ledger status --campaign 5.3 --purge
  k2ledger status --campaign 5 --injection --depths 0.01,0.001`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, a, f)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.campaigns, "campaign", "", "campaigns: 5, 5.3, 0-17 or comma-separated (default all)")
	flags.StringVar(&f.model, "model", ledger.DefaultModel, "de-trending model name")
	flags.StringVar(&f.cadence, "cadence", "lc", "cadence: lc|sc")
	flags.BoolVar(&f.purge, "purge", false, "delete error markers so failed targets are retried")
	flags.BoolVar(&f.injection, "injection", false, "report the injection-recovery ledger instead")
	flags.Float64SliceVar(&f.depths, "depths", ledger.DefaultDepths, "injection depths")
	flags.BoolVar(&f.jsonOut, "json", false, "print JSON output")
	flags.BoolVar(&f.strict, "strict", false, "exit non-zero when the scan recorded anomalies")
	flags.BoolVar(&f.watch, "watch", false, "rescan on an interval in a terminal view")
	flags.DurationVar(&f.interval, "interval", 30*time.Second, "rescan interval for --watch")
	return cmd
}

func runStatus(cmd *cobra.Command, a *app, f *statusFlags) error {
	var ids []campaign.ID
	if f.campaigns != "" {
		parsed, err := campaign.ParseList(f.campaigns)
		if err != nil {
			return err
		}
		ids = parsed
	}
	if f.watch {
		if f.purge {
			return errors.New("--watch cannot be combined with --purge")
		}
		if f.jsonOut {
			return errors.New("--watch cannot be combined with --json")
		}
		if f.interval <= 0 {
			return errors.New("--interval must be > 0")
		}
		return runWatch(cmd.Context(), a, f.interval, func(ctx context.Context, w *strings.Builder) error {
			_, err := scanOnce(ctx, a, f, ids, w)
			return err
		})
	}

	table := cmd.OutOrStdout()
	if f.jsonOut {
		table = io.Discard
	}
	res, err := scanOnce(cmd.Context(), a, f, ids, table)
	if err != nil {
		return err
	}
	if f.jsonOut {
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
	}
	if f.strict && res.Anomalies > 0 {
		return fmt.Errorf("%w: %d anomalies", ledger.ErrScanAnomalies, res.Anomalies)
	}
	return nil
}

// scanOnce runs one scan and renders the table into w.
func scanOnce(ctx context.Context, a *app, f *statusFlags, ids []campaign.ID, w io.Writer) (statusResult, error) {
	rep := logging.NewScanReporter(a.logger)
	scanner := ledger.NewScanner(a.cfg.Tree(), catalog.NewTableResolver(a.cfg.CatalogDir), rep, a.cfg.FITSVersion)

	var res statusResult
	if f.injection {
		rows, err := scanner.InjectionScan(ctx, ledger.InjectionOptions{
			Campaigns: ids,
			Model:     f.model,
			Depths:    f.depths,
			Purge:     f.purge,
		})
		if err != nil {
			return statusResult{}, err
		}
		for _, r := range rows {
			res.Campaigns = append(res.Campaigns, r)
		}
		res.Anomalies = ledger.InjectionAnomalyCount(rows)
		if err := report.Injection(w, rows); err != nil {
			return statusResult{}, err
		}
	} else {
		summaries, err := scanner.Scan(ctx, ledger.ScanOptions{
			Campaigns: ids,
			Model:     f.model,
			Cadence:   f.cadence,
			Purge:     f.purge,
		})
		if err != nil {
			return statusResult{}, err
		}
		for _, s := range summaries {
			res.Campaigns = append(res.Campaigns, s)
		}
		res.Anomalies = ledger.AnomalyCount(summaries)
		if err := report.Status(w, summaries); err != nil {
			return statusResult{}, err
		}
	}
	res.Purged = rep.Purges()
	if res.Campaigns == nil {
		res.Campaigns = []any{}
	}
	return res, nil
}
