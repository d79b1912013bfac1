package pbs

import (
	"fmt"
	"strings"

	"k2ledger/internal/config"
)

// Env variable names exported to the batch job through qsub -v.
const (
	EnvDataRoot  = "EVEREST_DAT"
	EnvJobConfig = "JOBCONFIG"
	EnvNodes     = "NODES"
)

// Build assembles the qsub argument vector for a saved job. argv[0] is the qsub binary.
func Build(cfg config.Config, job config.Job, jobPath string) ([]string, error) {
	switch job.Kind {
	case config.JobDownload:
		return buildDownload(cfg, job, jobPath), nil
	case config.JobRun:
		return buildCompute(cfg, cfg.PBS.Run, job, jobPath), nil
	case config.JobPublish:
		return buildCompute(cfg, cfg.PBS.Publish, job, jobPath), nil
	default:
		return nil, fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

func buildDownload(cfg config.Config, job config.Job, jobPath string) []string {
	q := cfg.PBS.Download
	argv := []string{
		cfg.PBS.Qsub, cfg.ScriptPath(config.JobDownload),
		"-q", q.Queue,
		"-v", envList(EnvDataRoot, cfg.DataRoot, EnvJobConfig, jobPath),
		"-o", cfg.Tree().LogPath(job.Name),
		"-j", "oe",
		"-N", job.Name,
		"-l", walltime(cfg.Walltime(q)),
	}
	return appendMail(argv, cfg.PBS.Email)
}

func buildCompute(cfg config.Config, q config.Queue, job config.Job, jobPath string) []string {
	argv := []string{
		cfg.PBS.Qsub, cfg.ScriptPath(job.Kind),
		"-v", envList(EnvDataRoot, cfg.DataRoot, EnvNodes, fmt.Sprintf("%d", q.Nodes), EnvJobConfig, jobPath),
		"-o", cfg.Tree().LogPath(job.Name),
		"-j", "oe",
		"-N", job.Name,
		"-l", nodes(q),
		"-l", walltime(cfg.Walltime(q)),
	}
	argv = appendMail(argv, cfg.PBS.Email)
	if q.Queue != "" {
		argv = append(argv, "-q", q.Queue)
	}
	return argv
}

func nodes(q config.Queue) string {
	req := fmt.Sprintf("nodes=%d:ppn=%d,feature=%dcore", q.Nodes, q.PPN, q.PPN)
	if q.MPN > 0 {
		req += fmt.Sprintf(",mem=%dgb", q.MPN*q.Nodes)
	}
	return req
}

func walltime(hours int) string {
	return fmt.Sprintf("walltime=%d:00:00", hours)
}

func appendMail(argv []string, email string) []string {
	if strings.TrimSpace(email) == "" {
		return argv
	}
	return append(argv, "-M", email, "-m", "ae")
}

func envList(kv ...string) string {
	parts := make([]string, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		parts = append(parts, kv[i]+"="+kv[i+1])
	}
	return strings.Join(parts, ",")
}
