package pbs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"k2ledger/internal/campaign"
	"k2ledger/internal/config"
	"k2ledger/internal/runstore"
)

func testConfig(root string) config.Config {
	cfg := config.Default()
	cfg.DataRoot = root
	cfg.PBS.ScriptDir = "/opt/k2ledger/pbs"
	return config.Normalize(cfg)
}

func TestBuildDownload(t *testing.T) {
	cfg := testConfig("/data")
	cfg.PBS.Email = "ops@example.org"
	job := config.NewJob(config.JobDownload, cfg, campaign.NewDecile(5, 3), 0)

	got, err := Build(cfg, job, "/data/k2/jobs/x.yaml")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"qsub", "/opt/k2ledger/pbs/download.pbs",
		"-q", "build",
		"-v", "EVEREST_DAT=/data,JOBCONFIG=/data/k2/jobs/x.yaml",
		"-o", "/data/k2/download_c05.3.log",
		"-j", "oe",
		"-N", "download_c05.3",
		"-l", "walltime=8:00:00",
		"-M", "ops@example.org", "-m", "ae",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("argv mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildRunWithMemoryAndQueue(t *testing.T) {
	cfg := testConfig("/data")
	cfg.PBS.Run = config.Queue{Queue: "bf", Nodes: 2, PPN: 16, Walltime: 48, MPN: 4}
	cfg.Dev = true
	job := config.NewJob(config.JobRun, cfg, campaign.New(1), 201367065)

	got, err := Build(cfg, job, "/j.yaml")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"qsub", "/opt/k2ledger/pbs/run.pbs",
		"-v", "EVEREST_DAT=/data,NODES=2,JOBCONFIG=/j.yaml",
		"-o", "/data/k2/EPIC201367065.log",
		"-j", "oe",
		"-N", "EPIC201367065",
		"-l", "nodes=2:ppn=16,feature=16core,mem=8gb",
		"-l", "walltime=10:00:00",
		"-q", "bf",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("argv mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildPublishDefaults(t *testing.T) {
	cfg := testConfig("/data")
	job := config.NewJob(config.JobPublish, cfg, campaign.New(11), 0)

	got, err := Build(cfg, job, "/j.yaml")
	if err != nil {
		t.Fatal(err)
	}
	joined := strings.Join(got, " ")
	for _, part := range []string{"/opt/k2ledger/pbs/publish.pbs", "-N c11", "nodes=5:ppn=12,feature=12core", "walltime=100:00:00"} {
		if !strings.Contains(joined, part) {
			t.Fatalf("argv %q missing %q", joined, part)
		}
	}
	if strings.Contains(joined, " -q ") || strings.Contains(joined, " -M ") {
		t.Fatalf("unexpected queue or mail flags: %q", joined)
	}
}

func TestSubmitRunsQsubAndRecordsSubmission(t *testing.T) {
	tmp := t.TempDir()
	fakeBin := filepath.Join(tmp, "bin")
	if err := os.MkdirAll(fakeBin, 0o755); err != nil {
		t.Fatal(err)
	}
	argsLog := filepath.Join(tmp, "qsub.args")
	qsubScript := `#!/usr/bin/env bash
set -euo pipefail
printf '%s\n' "$@" > "$QSUB_ARGS_LOG"
echo "4242.pbs-server"
`
	if err := os.WriteFile(filepath.Join(fakeBin, "qsub"), []byte(qsubScript), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", fakeBin+":"+os.Getenv("PATH"))
	t.Setenv("QSUB_ARGS_LOG", argsLog)

	cfg := testConfig(filepath.Join(tmp, "data"))
	job := config.NewJob(config.JobRun, cfg, campaign.NewDecile(3, 0), 0)
	rec, err := NewSubmitter(cfg, nil).Submit(context.Background(), job, SubmitOptions{})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if rec.JobID != "4242.pbs-server" {
		t.Fatalf("unexpected job id %q", rec.JobID)
	}

	loaded, err := config.LoadJob(rec.JobConfigPath)
	if err != nil {
		t.Fatalf("job config not readable: %v", err)
	}
	if loaded.ID != job.ID || loaded.Name != "c03.0" {
		t.Fatalf("unexpected job config: %+v", loaded)
	}

	args, err := os.ReadFile(argsLog)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(args), "JOBCONFIG="+rec.JobConfigPath) {
		t.Fatalf("qsub did not receive job config path:\n%s", args)
	}

	subs, err := runstore.ListSubmissions(cfg.Tree().JobsDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 || subs[0].JobID != "4242.pbs-server" || subs[0].DryRun {
		t.Fatalf("unexpected submission records: %+v", subs)
	}
}

func TestSubmitDryRunDoesNotCallQsub(t *testing.T) {
	tmp := t.TempDir()
	cfg := testConfig(filepath.Join(tmp, "data"))
	cfg.PBS.Qsub = filepath.Join(tmp, "missing-qsub")
	job := config.NewJob(config.JobDownload, cfg, campaign.New(2), 0)

	rec, err := NewSubmitter(cfg, nil).Submit(context.Background(), job, SubmitOptions{DryRun: true})
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if !rec.DryRun || rec.JobID != "" || rec.Argv[0] != cfg.PBS.Qsub {
		t.Fatalf("unexpected dry-run record: %+v", rec)
	}
}

func TestSubmitSurfacesQsubFailure(t *testing.T) {
	tmp := t.TempDir()
	script := filepath.Join(tmp, "qsub")
	if err := os.WriteFile(script, []byte("#!/usr/bin/env bash\necho 'qsub: Unknown queue' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig(filepath.Join(tmp, "data"))
	cfg.PBS.Qsub = script
	job := config.NewJob(config.JobRun, cfg, campaign.New(4), 0)

	_, err := NewSubmitter(cfg, nil).Submit(context.Background(), job, SubmitOptions{})
	if err == nil || !strings.Contains(err.Error(), "Unknown queue") {
		t.Fatalf("expected qsub stderr in error, got %v", err)
	}
	subs, _ := runstore.ListSubmissions(cfg.Tree().JobsDir())
	if len(subs) != 0 {
		t.Fatalf("failed submission must not be recorded, got %d", len(subs))
	}
}

func TestDependencyStatus(t *testing.T) {
	if DependencyStatus(filepath.Join(t.TempDir(), "nope")).QsubFound {
		t.Fatal("expected qsub to be missing")
	}
}

func TestInstallScripts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pbs")
	written, err := InstallScripts(dir, false)
	if err != nil {
		t.Fatalf("install scripts: %v", err)
	}
	if len(written) != 3 {
		t.Fatalf("expected 3 scripts, got %v", written)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "run.pbs"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `worker run --job-config "$JOBCONFIG"`) {
		t.Fatalf("run script does not start the worker:\n%s", raw)
	}

	again, err := InstallScripts(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Fatalf("existing scripts must be kept, rewrote %v", again)
	}
}
