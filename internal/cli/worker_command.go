package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"k2ledger/internal/catalog"
	"k2ledger/internal/config"
	"k2ledger/internal/detrend"
	"k2ledger/internal/worker"
)

func newWorkerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Batch-side entrypoints started by the PBS scripts",
		Long: `Runs a saved job on the compute node. These commands are started by the
installed PBS scripts and are rarely run by hand.`,
	}
	for _, kind := range []config.JobKind{config.JobDownload, config.JobRun, config.JobPublish} {
		cmd.AddCommand(newWorkerKindCmd(a, kind))
	}
	return cmd
}

func newWorkerKindCmd(a *app, kind config.JobKind) *cobra.Command {
	var (
		jobConfig string
		workers   int
		jsonOut   bool
	)
	cmd := &cobra.Command{
		Use:   string(kind) + " --job-config <path>",
		Short: "Execute a saved " + string(kind) + " job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := config.LoadJob(jobConfig)
			if err != nil {
				return err
			}
			if job.Kind != kind {
				return fmt.Errorf("job config %s is a %s job, not %s", jobConfig, job.Kind, kind)
			}
			logger := a.logger
			client := detrend.Client{
				DetrendCommand:  a.cfg.Commands.Detrend,
				DownloadCommand: a.cfg.Commands.Download,
				Progress: func(target int64, stream detrend.OutputStream, line string) {
					logger.Debug(line, zap.Int64("target", target), zap.String("stream", string(stream)))
				},
			}
			res, err := worker.Run(cmd.Context(), worker.Options{
				Config:    a.cfg,
				Job:       job,
				Catalog:   catalog.NewTableResolver(a.cfg.CatalogDir),
				Detrender: client,
				Logger:    logger,
				Workers:   workers,
			})
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d targets, %d succeeded, %d failed, %d skipped\n",
				res.Kind, res.Job, res.Targets, res.Succeeded, res.Failed, res.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&jobConfig, "job-config", "", "path of the saved job config")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel targets (0 = config or CPU count)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON output")
	_ = cmd.MarkFlagRequired("job-config")
	return cmd
}
