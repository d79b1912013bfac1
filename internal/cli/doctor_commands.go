package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"k2ledger/internal/doctor"
)

var errDoctorFailed = errors.New("doctor checks failed")

func newDoctorCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run dependency and filesystem preflight checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res := doctor.Run(a.cfg)
			if jsonOut {
				if err := printJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else {
				printDoctor(cmd.OutOrStdout(), res)
			}
			if !res.OK {
				return errDoctorFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON output")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the k2ledger config file",
	}

	var showJSON bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective config after defaults and overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showJSON {
				return printJSON(cmd.OutOrStdout(), a.cfg)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(a.cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	show.Flags().BoolVar(&showJSON, "json", false, "print JSON output")

	var (
		force    bool
		initJSON bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the config file, install the PBS scripts and run doctor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := doctor.Init(doctor.InitOptions{
				ConfigPath: a.configPath,
				Config:     a.cfg,
				Overwrite:  force,
			})
			if err != nil {
				return err
			}
			if initJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			out := cmd.OutOrStdout()
			if res.CreatedConfig {
				fmt.Fprintf(out, "config written: %s\n", res.ConfigPath)
			} else {
				fmt.Fprintf(out, "config kept: %s\n", res.ConfigPath)
			}
			for _, p := range res.ScriptsWritten {
				fmt.Fprintf(out, "script installed: %s\n", p)
			}
			printDoctor(out, res.Doctor)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config and scripts")
	initCmd.Flags().BoolVar(&initJSON, "json", false, "print JSON output")

	cmd.AddCommand(show, initCmd)
	return cmd
}

func printDoctor(w io.Writer, res doctor.Result) {
	for _, c := range res.Checks {
		mark := "ok  "
		if !c.OK {
			mark = "FAIL"
		}
		fmt.Fprintf(w, "[%s] %-20s %s\n", mark, c.Name, c.Message)
	}
	if res.OK {
		fmt.Fprintln(w, "doctor: all checks passed")
	} else {
		fmt.Fprintln(w, "doctor: some checks failed")
	}
}
