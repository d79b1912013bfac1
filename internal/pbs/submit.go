package pbs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"k2ledger/internal/config"
	"k2ledger/internal/runstore"
)

type DependencyReport struct {
	QsubFound bool   `json:"qsub_found"`
	QsubPath  string `json:"qsub_path,omitempty"`
}

func DependencyStatus(qsub string) DependencyReport {
	report := DependencyReport{}
	if path, err := exec.LookPath(qsub); err == nil {
		report.QsubFound = true
		report.QsubPath = path
	}
	return report
}

type SubmitOptions struct {
	DryRun bool
}

// Submitter writes the job config, runs qsub and records the submission.
type Submitter struct {
	cfg    config.Config
	logger *zap.Logger
}

func NewSubmitter(cfg config.Config, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{cfg: cfg, logger: logger}
}

func (s *Submitter) Submit(ctx context.Context, job config.Job, opts SubmitOptions) (runstore.SubmissionRecord, error) {
	jobsDir := s.cfg.Tree().JobsDir()
	jobPath, err := config.SaveJob(jobsDir, job)
	if err != nil {
		return runstore.SubmissionRecord{}, fmt.Errorf("save job config: %w", err)
	}
	argv, err := Build(s.cfg, job, jobPath)
	if err != nil {
		return runstore.SubmissionRecord{}, err
	}

	rec := runstore.SubmissionRecord{
		ID:            job.ID,
		Name:          job.Name,
		Kind:          string(job.Kind),
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		JobConfigPath: jobPath,
		Argv:          argv,
		DryRun:        opts.DryRun,
	}
	if !opts.DryRun {
		jobID, err := runQsub(ctx, argv)
		if err != nil {
			return rec, err
		}
		rec.JobID = jobID
		s.logger.Info("job submitted",
			zap.String("name", job.Name),
			zap.String("kind", string(job.Kind)),
			zap.String("job_id", jobID))
	}
	if _, err := runstore.SaveSubmission(jobsDir, rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func runQsub(ctx context.Context, argv []string) (string, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return "", fmt.Errorf("qsub command is not configured")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("qsub failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	jobID := strings.TrimSpace(stdout.String())
	if jobID == "" {
		return "", fmt.Errorf("qsub returned no job id")
	}
	return jobID, nil
}
