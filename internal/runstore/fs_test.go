package runstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSubmissionRecordsListOldestFirst(t *testing.T) {
	jobs := t.TempDir()
	newer := SubmissionRecord{ID: "b", Name: "c05", Kind: "run", CreatedAt: "2026-01-02T00:00:00Z", Argv: []string{"qsub"}}
	older := SubmissionRecord{ID: "a", Name: "c06", Kind: "run", CreatedAt: "2026-01-01T00:00:00Z", JobID: "123.pbs"}
	for _, rec := range []SubmissionRecord{newer, older} {
		if _, err := SaveSubmission(jobs, rec); err != nil {
			t.Fatalf("save submission: %v", err)
		}
	}
	// job configs share the directory and must not be picked up
	if err := os.WriteFile(filepath.Join(jobs, "c05-b.yaml"), []byte("kind: run\n"), 0o644); err != nil {
		t.Fatalf("write job config: %v", err)
	}

	got, err := ListSubmissions(jobs)
	if err != nil {
		t.Fatalf("list submissions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("unexpected order: %q, %q", got[0].ID, got[1].ID)
	}
	if got[0].JobID != "123.pbs" {
		t.Fatalf("job id not preserved: %q", got[0].JobID)
	}
}

func TestListFilesMissingDirectory(t *testing.T) {
	got, err := ListFiles(filepath.Join(t.TempDir(), "missing"), ".json")
	if err != nil {
		t.Fatalf("list missing dir: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty listing, got %v", got)
	}
}

func TestReadYAMLRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.yaml")
	if err := os.WriteFile(path, []byte("name: a\nbogus: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var v struct {
		Name string `yaml:"name"`
	}
	if err := ReadYAML(path, &v); err == nil {
		t.Fatal("expected unknown field error")
	}
}
