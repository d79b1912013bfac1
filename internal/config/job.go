package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"k2ledger/internal/campaign"
	"k2ledger/internal/layout"
	"k2ledger/internal/runstore"
)

type JobKind string

const (
	JobDownload JobKind = "download"
	JobRun      JobKind = "run"
	JobPublish  JobKind = "publish"
)

func ParseJobKind(raw string) (JobKind, error) {
	switch JobKind(strings.ToLower(strings.TrimSpace(raw))) {
	case JobDownload:
		return JobDownload, nil
	case JobRun:
		return JobRun, nil
	case JobPublish:
		return JobPublish, nil
	default:
		return "", fmt.Errorf("unknown job kind %q (want download, run or publish)", raw)
	}
}

// Job is everything a batch-side worker needs. It is written before qsub and only
// its path travels through the queue environment.
type Job struct {
	SchemaVersion int      `yaml:"schema_version" json:"schema_version"`
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	Kind          JobKind  `yaml:"kind" json:"kind"`
	CreatedAt     string   `yaml:"created_at" json:"created_at"`
	DataRoot      string   `yaml:"data_root" json:"data_root"`
	Mission       string   `yaml:"mission" json:"mission"`
	Campaign      int      `yaml:"campaign" json:"campaign"`
	Subcampaign   int      `yaml:"subcampaign" json:"subcampaign"`
	EPIC          int64    `yaml:"epic,omitempty" json:"epic,omitempty"`
	Model         string   `yaml:"model,omitempty" json:"model,omitempty"`
	Cadence       string   `yaml:"cadence,omitempty" json:"cadence,omitempty"`
	PublishCSV    bool     `yaml:"publish_csv,omitempty" json:"publish_csv,omitempty"`
	ExtraArgs     []string `yaml:"extra_args,omitempty" json:"extra_args,omitempty"`
}

// NewJob stamps a fresh id and the queue job name. A non-zero epic names the job
// after the target instead of the campaign.
func NewJob(kind JobKind, cfg Config, id campaign.ID, epic int64) Job {
	job := Job{
		SchemaVersion: SchemaVersion,
		ID:            uuid.NewString(),
		Kind:          kind,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		DataRoot:      cfg.DataRoot,
		Mission:       cfg.Mission,
		Campaign:      id.Number,
		Subcampaign:   id.Sub,
		EPIC:          epic,
	}
	switch {
	case kind == JobDownload:
		job.Name = id.JobName("download_")
	case epic > 0:
		job.Name = fmt.Sprintf("EPIC%d", epic)
	default:
		job.Name = id.JobName("")
	}
	return job
}

func (j Job) CampaignID() campaign.ID {
	if j.Subcampaign == campaign.Whole {
		return campaign.New(j.Campaign)
	}
	return campaign.NewDecile(j.Campaign, j.Subcampaign)
}

func (j Job) Validate() error {
	if j.SchemaVersion != SchemaVersion {
		return fmt.Errorf("%w: job schema %d", ErrUnsupportedSchema, j.SchemaVersion)
	}
	if _, err := ParseJobKind(string(j.Kind)); err != nil {
		return err
	}
	if strings.TrimSpace(j.ID) == "" || strings.TrimSpace(j.Name) == "" {
		return fmt.Errorf("job requires id and name")
	}
	if strings.TrimSpace(j.DataRoot) == "" {
		return fmt.Errorf("job %s: data_root is required", j.Name)
	}
	if j.Campaign < 0 {
		return fmt.Errorf("job %s: campaign must be >= 0", j.Name)
	}
	if j.Subcampaign < campaign.Whole || j.Subcampaign >= campaign.DecileCount {
		return fmt.Errorf("job %s: subcampaign %d out of range", j.Name, j.Subcampaign)
	}
	if err := layout.CheckID(j.EPIC); err != nil {
		return fmt.Errorf("job %s: %w", j.Name, err)
	}
	return nil
}

func JobPath(jobsDir string, j Job) string {
	return filepath.Join(jobsDir, runstore.JobFileStem(j.Name, j.ID)+".yaml")
}

func SaveJob(jobsDir string, j Job) (string, error) {
	if err := j.Validate(); err != nil {
		return "", err
	}
	path := JobPath(jobsDir, j)
	if err := runstore.WriteYAML(path, j); err != nil {
		return "", err
	}
	return path, nil
}

func LoadJob(path string) (Job, error) {
	var j Job
	if err := runstore.ReadYAML(path, &j); err != nil {
		return Job{}, err
	}
	if err := j.Validate(); err != nil {
		return Job{}, fmt.Errorf("job config %s: %w", path, err)
	}
	return j, nil
}
