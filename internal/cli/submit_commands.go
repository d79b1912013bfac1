package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"k2ledger/internal/campaign"
	"k2ledger/internal/config"
	"k2ledger/internal/layout"
	"k2ledger/internal/ledger"
	"k2ledger/internal/pbs"
	"k2ledger/internal/runstore"
)

type submitFlags struct {
	campaign string
	epic     int64
	model    string
	cadence  string
	csv      bool
	dryRun   bool
	jsonOut  bool
}

var submitShort = map[config.JobKind]string{
	config.JobDownload: "Submit a batch job that downloads raw target data for a campaign",
	config.JobRun:      "Submit a batch job that de-trends a campaign or a single target",
	config.JobPublish:  "Submit a batch job that writes publishable FITS files",
}

func newSubmitCmd(a *app, kind config.JobKind) *cobra.Command {
	f := &submitFlags{}
	cmd := &cobra.Command{
		Use:   string(kind) + " --campaign <id> [flags] [-- extra detrend args]",
		Short: submitShort[kind],
		Long: submitShort[kind] + `.

The job config is written under the data tree's jobs directory and only its
path is passed to qsub; the batch script runs "k2ledger worker ` + string(kind) + `".

Examples:
  k2ledger ` + string(kind) + ` --campaign 5
  k2ledger ` + string(kind) + ` --campaign 5.3 --dry-run --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, a, kind, f, args)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.campaign, "campaign", "", "campaign or decile, e.g. 5 or 5.3")
	flags.BoolVar(&f.dryRun, "dry-run", false, "write the job config and print the qsub command without submitting")
	flags.BoolVar(&f.jsonOut, "json", false, "print JSON output")
	if kind != config.JobDownload {
		flags.Int64Var(&f.epic, "epic", 0, "process a single EPIC target")
		flags.StringVar(&f.model, "model", ledger.DefaultModel, "de-trending model name")
		flags.StringVar(&f.cadence, "cadence", layout.CadenceLong, "cadence: lc|sc")
	}
	if kind == config.JobPublish {
		flags.BoolVar(&f.csv, "csv", false, "also write CSV light curves")
	}
	_ = cmd.MarkFlagRequired("campaign")
	return cmd
}

func runSubmit(cmd *cobra.Command, a *app, kind config.JobKind, f *submitFlags, extra []string) error {
	id, err := campaign.Parse(f.campaign)
	if err != nil {
		return err
	}
	if f.epic < 0 {
		return errors.New("--epic must be a positive EPIC id")
	}
	if kind == config.JobDownload && len(extra) > 0 {
		return fmt.Errorf("download takes no extra arguments, got %q", strings.Join(extra, " "))
	}

	job := config.NewJob(kind, a.cfg, id, f.epic)
	job.Model = f.model
	job.Cadence = f.cadence
	job.PublishCSV = f.csv
	job.ExtraArgs = extra

	rec, err := pbs.NewSubmitter(a.cfg, a.logger).Submit(cmd.Context(), job, pbs.SubmitOptions{DryRun: f.dryRun})
	if err != nil {
		return err
	}
	if f.jsonOut {
		return printJSON(cmd.OutOrStdout(), rec)
	}
	out := cmd.OutOrStdout()
	if rec.DryRun {
		fmt.Fprintf(out, "dry run: %s\n", strings.Join(rec.Argv, " "))
		fmt.Fprintf(out, "job config: %s\n", rec.JobConfigPath)
		return nil
	}
	fmt.Fprintf(out, "submitted %s as %s\n", rec.Name, rec.JobID)
	return nil
}

func newJobsCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recorded batch submissions, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := runstore.ListSubmissions(a.cfg.Tree().JobsDir())
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), recs)
			}
			out := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintln(out, "no submissions recorded")
				return nil
			}
			for _, r := range recs {
				jobID := r.JobID
				if r.DryRun {
					jobID = "(dry run)"
				}
				fmt.Fprintf(out, "%-20s %-9s %-16s %s\n", r.CreatedAt, r.Kind, r.Name, jobID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON output")
	return cmd
}
