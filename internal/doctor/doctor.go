package doctor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"k2ledger/internal/config"
	"k2ledger/internal/detrend"
	"k2ledger/internal/pbs"
	"k2ledger/internal/runstore"
)

type Result struct {
	OK     bool    `json:"ok"`
	Checks []Check `json:"checks"`
}

type Check struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type InitOptions struct {
	ConfigPath string
	Config     config.Config
	Overwrite  bool
}

type InitResult struct {
	ConfigPath     string   `json:"config_path"`
	CreatedConfig  bool     `json:"created_config"`
	ScriptsWritten []string `json:"scripts_written"`
	Doctor         Result   `json:"doctor"`
}

// Run checks that this host can submit jobs and that batch jobs will find what they need.
func Run(cfg config.Config) Result {
	checks := make([]Check, 0, 9)

	qsub := pbs.DependencyStatus(cfg.PBS.Qsub)
	checks = append(checks, Check{
		Name:    "dependency:qsub",
		OK:      qsub.QsubFound,
		Message: dependencyMessage(qsub.QsubFound, qsub.QsubPath, cfg.PBS.Qsub),
	})
	dep := detrend.Client{DetrendCommand: cfg.Commands.Detrend, DownloadCommand: cfg.Commands.Download}.DependencyStatus()
	checks = append(checks, Check{
		Name:    "dependency:detrend",
		OK:      dep.DetrendFound,
		Message: dependencyMessage(dep.DetrendFound, dep.DetrendPath, cfg.Commands.Detrend),
	})
	checks = append(checks, Check{
		Name:    "dependency:download",
		OK:      dep.DownloadFound,
		Message: dependencyMessage(dep.DownloadFound, dep.DownloadPath, cfg.Commands.Download),
	})

	tree := cfg.Tree()
	for _, d := range []struct{ name, path string }{
		{"directory:data", tree.MissionDir()},
		{"directory:jobs", tree.JobsDir()},
		{"directory:locks", tree.LocksDir()},
	} {
		ok, msg := ensureWritableDir(d.path)
		checks = append(checks, Check{Name: d.name, OK: ok, Message: msg})
	}

	ok, msg := catalogReadable(cfg.CatalogDir)
	checks = append(checks, Check{Name: "catalog:tables", OK: ok, Message: msg})

	for _, kind := range []config.JobKind{config.JobDownload, config.JobRun, config.JobPublish} {
		path := cfg.ScriptPath(kind)
		_, err := os.Stat(path)
		msg := "found at " + path
		if err != nil {
			msg = "missing " + path + " (run `k2ledger config init`)"
		}
		checks = append(checks, Check{Name: "pbs:" + string(kind), OK: err == nil, Message: msg})
	}

	res := Result{OK: true, Checks: checks}
	for _, c := range checks {
		if !c.OK {
			res.OK = false
			break
		}
	}
	return res
}

// Init writes the config file (unless it exists) and installs the PBS scripts, then
// reports the doctor checks for the result.
func Init(opts InitOptions) (InitResult, error) {
	cfg := config.Normalize(opts.Config)
	path := config.ResolvePath(opts.ConfigPath)
	created := false
	if _, err := os.Stat(path); err != nil || opts.Overwrite {
		if _, err := config.Save(path, cfg, true); err != nil {
			return InitResult{}, err
		}
		created = true
	}
	scripts, err := pbs.InstallScripts(cfg.PBS.ScriptDir, opts.Overwrite)
	if err != nil {
		return InitResult{}, err
	}
	return InitResult{
		ConfigPath:     path,
		CreatedConfig:  created,
		ScriptsWritten: scripts,
		Doctor:         Run(cfg),
	}, nil
}

func dependencyMessage(ok bool, path, name string) string {
	if ok {
		return name + " found at " + path
	}
	return name + " not found on PATH"
}

func ensureWritableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	if err := runstore.Mkdir(path); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, "k2ledger-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true, "writable"
}

func catalogReadable(dir string) (bool, string) {
	matches, err := filepath.Glob(filepath.Join(dir, "c[0-9][0-9]*.csv"))
	if err != nil {
		return false, err.Error()
	}
	if len(matches) == 0 {
		return false, "no campaign tables in " + dir
	}
	return true, fmt.Sprintf("%d campaign tables in %s", len(matches), dir)
}
