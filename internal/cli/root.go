package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"k2ledger/internal/config"
	"k2ledger/internal/logging"
)

// app carries the state shared by every subcommand once the root has loaded config.
type app struct {
	configPath string
	dataRoot   string
	logFile    string
	verbose    bool

	cfg      config.Config
	logger   *zap.Logger
	closeLog func()
}

// Run executes the k2ledger command line and returns the first error.
func Run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx, args, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	defer a.teardown()
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "k2ledger",
		Short: "Completion ledger and batch submission for K2 light-curve de-trending",
		Long: `k2ledger reports how far each K2 campaign has progressed through the
download, de-trend and publish stages by scanning the data tree, and submits
the batch jobs that advance it.

Quick start:
  k2ledger config init
  k2ledger status --campaign 5
  k2ledger run --campaign 5.3`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", config.DefaultConfigPath, "config file path")
	flags.StringVar(&a.dataRoot, "data-root", "", "override data_root (and "+config.DataRootEnv+")")
	flags.StringVar(&a.logFile, "log-file", "", "append log records to this file")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newStatusCmd(a),
		newSubmitCmd(a, config.JobDownload),
		newSubmitCmd(a, config.JobRun),
		newSubmitCmd(a, config.JobPublish),
		newWorkerCmd(a),
		newDoctorCmd(a),
		newJobsCmd(a),
		newConfigCmd(a),
		newCDPPCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dataRoot != "" {
		derived := config.Normalize(config.Config{DataRoot: cfg.DataRoot, Mission: cfg.Mission})
		if cfg.CatalogDir == derived.CatalogDir {
			cfg.CatalogDir = ""
		}
		if cfg.PBS.ScriptDir == derived.PBS.ScriptDir {
			cfg.PBS.ScriptDir = ""
		}
		cfg.DataRoot = a.dataRoot
		cfg = config.Normalize(cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	logFile := cfg.Logging.File
	if a.logFile != "" {
		logFile = a.logFile
	}
	logger, closeLog, err := logging.New(logging.Options{
		File:        logFile,
		Level:       cfg.Logging.Level,
		ScreenLevel: cfg.Logging.ScreenLevel,
		Verbose:     a.verbose,
		Screen:      cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	a.closeLog = closeLog
	return nil
}

func (a *app) teardown() {
	if a.closeLog != nil {
		a.closeLog()
		a.closeLog = nil
	}
}
