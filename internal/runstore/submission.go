package runstore

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// SubmissionRecord is written next to the job config for every qsub call.
type SubmissionRecord struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Kind          string   `json:"kind"`
	CreatedAt     string   `json:"created_at"`
	JobConfigPath string   `json:"job_config_path"`
	Argv          []string `json:"argv"`
	JobID         string   `json:"job_id,omitempty"`
	DryRun        bool     `json:"dry_run,omitempty"`
}

// JobFileStem is the shared stem of a job config and its submission record.
func JobFileStem(name, id string) string {
	return fmt.Sprintf("%s-%s", strings.TrimSpace(name), strings.TrimSpace(id))
}

func SubmissionPath(jobsDir, name, id string) string {
	return filepath.Join(jobsDir, JobFileStem(name, id)+".json")
}

func SaveSubmission(jobsDir string, rec SubmissionRecord) (string, error) {
	if strings.TrimSpace(rec.Name) == "" || strings.TrimSpace(rec.ID) == "" {
		return "", fmt.Errorf("submission record requires name and id")
	}
	path := SubmissionPath(jobsDir, rec.Name, rec.ID)
	if err := WriteJSON(path, rec); err != nil {
		return "", err
	}
	return path, nil
}

func LoadSubmission(path string) (SubmissionRecord, error) {
	var rec SubmissionRecord
	if err := ReadJSON(path, &rec); err != nil {
		return SubmissionRecord{}, err
	}
	return rec, nil
}

// ListSubmissions returns every record in jobsDir, oldest first.
func ListSubmissions(jobsDir string) ([]SubmissionRecord, error) {
	paths, err := ListFiles(jobsDir, ".json")
	if err != nil {
		return nil, err
	}
	out := make([]SubmissionRecord, 0, len(paths))
	for _, p := range paths {
		rec, err := LoadSubmission(p)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt < out[j].CreatedAt
	})
	return out, nil
}
