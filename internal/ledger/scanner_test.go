package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"k2ledger/internal/campaign"
	"k2ledger/internal/catalog"
	"k2ledger/internal/layout"
	"k2ledger/internal/model"
)

type recordingReporter struct {
	anomalies []string
	purged    []string
}

func (r *recordingReporter) Anomaly(_ string, path string, _ error) {
	r.anomalies = append(r.anomalies, path)
}

func (r *recordingReporter) Purged(_ string, _ model.TargetRecord, path string) {
	r.purged = append(r.purged, path)
}

func writeMarkers(t *testing.T, tree layout.Tree, id campaign.ID, target int64, names ...string) string {
	t.Helper()
	dir, err := tree.TargetDir(id, target)
	require.NoError(t, err)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir target: %v", err)
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write marker: %v", err)
		}
	}
	return dir
}

func TestScanCountsMarkers(t *testing.T) {
	tree := layout.NewTree(t.TempDir(), "")
	c5 := campaign.New(5)
	resolver := catalog.Static{5: {201000001, 201000002, 201000003, 201000004}}

	writeMarkers(t, tree, c5, 201000001, "data.npz", "nPLD.npz", layout.FITSFile(201000001, 5, "2.0", "lc"))
	writeMarkers(t, tree, c5, 201000002, "data.npz", "nPLD.err")
	writeMarkers(t, tree, c5, 201000003, "data.npz")
	// not in the universe: stale directory from an earlier catalog
	writeMarkers(t, tree, c5, 201999999, "data.npz", "nPLD.npz")

	scanner := NewScanner(tree, resolver, nil, "2.0")
	got, err := scanner.Scan(context.Background(), ScanOptions{Campaigns: []campaign.ID{c5, campaign.New(6)}})
	// campaign 6 has no table: the whole scan fails
	require.ErrorIs(t, err, catalog.ErrNoTable)
	require.Nil(t, got)

	got, err = scanner.Scan(context.Background(), ScanOptions{Campaigns: []campaign.ID{c5, c5}})
	require.NoError(t, err)
	require.Len(t, got, 2)

	want := model.CampaignSummary{
		Campaign:     "5",
		Total:        4,
		Downloaded:   3,
		Processed:    1,
		Published:    1,
		Errored:      1,
		RemainingIDs: []string{"201000003"},
		ErroredIDs:   []string{"201000002"},
	}
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestScanMissingCampaignDirectory(t *testing.T) {
	tree := layout.NewTree(t.TempDir(), "")
	scanner := NewScanner(tree, catalog.Static{3: {1, 2, 3}}, nil, "2.0")

	got, err := scanner.Scan(context.Background(), ScanOptions{Campaigns: []campaign.ID{campaign.New(3), campaign.New(3)}})
	require.NoError(t, err)
	for _, s := range got {
		require.Equal(t, 3, s.Total)
		require.Zero(t, s.Downloaded)
		require.Zero(t, s.Processed)
		require.Zero(t, s.Errored)
		require.Empty(t, s.Anomalies)
	}
}

func TestScanEmptyUniverse(t *testing.T) {
	tree := layout.NewTree(t.TempDir(), "")
	c2 := campaign.New(2)
	writeMarkers(t, tree, c2, 200000001, "data.npz", "nPLD.npz")
	scanner := NewScanner(tree, catalog.Static{2: {}}, nil, "2.0")

	got, err := scanner.Scan(context.Background(), ScanOptions{Campaigns: []campaign.ID{c2, c2}})
	require.NoError(t, err)
	require.Equal(t, 0, got[0].Total)
	require.Equal(t, 0, got[0].Processed)
	require.False(t, got[0].Complete())
}

func TestScanSuccessWinsOverStaleError(t *testing.T) {
	tree := layout.NewTree(t.TempDir(), "")
	c1 := campaign.New(1)
	writeMarkers(t, tree, c1, 201000010, "nPLD.npz", "nPLD.err")
	scanner := NewScanner(tree, catalog.Static{1: {201000010}}, nil, "")

	got, err := scanner.Scan(context.Background(), ScanOptions{Campaigns: []campaign.ID{c1, c1}})
	require.NoError(t, err)
	require.Equal(t, 1, got[0].Processed)
	require.Equal(t, 0, got[0].Errored)
	require.True(t, got[0].Complete())
}

func TestScanShortCadenceUsesSCStage(t *testing.T) {
	tree := layout.NewTree(t.TempDir(), "")
	c4 := campaign.New(4)
	writeMarkers(t, tree, c4, 210000001, "nPLD.npz")
	writeMarkers(t, tree, c4, 210000002, "nPLD.sc.npz")
	writeMarkers(t, tree, c4, 210000003, "nPLD.sc.err")
	scanner := NewScanner(tree, catalog.Static{4: {210000001, 210000002, 210000003}}, nil, "2.0")

	got, err := scanner.Scan(context.Background(), ScanOptions{Campaigns: []campaign.ID{c4, c4}, Cadence: "sc"})
	require.NoError(t, err)
	require.Equal(t, 1, got[0].Processed)
	require.Equal(t, 1, got[0].Errored)
	require.Equal(t, []string{"210000001"}, got[0].RemainingIDs)
}

func TestScanIsIdempotentWithoutPurge(t *testing.T) {
	tree := layout.NewTree(t.TempDir(), "")
	c7 := campaign.New(7)
	targets := []int64{220000001, 220000002, 220000003, 221000004}
	writeMarkers(t, tree, c7, targets[0], "data.npz", "nPLD.npz")
	writeMarkers(t, tree, c7, targets[1], "nPLD.err")
	writeMarkers(t, tree, c7, targets[3], "data.npz")
	scanner := NewScanner(tree, catalog.Static{7: targets}, nil, "2.0")

	opts := ScanOptions{Campaigns: []campaign.ID{c7, c7}}
	first, err := scanner.Scan(context.Background(), opts)
	require.NoError(t, err)
	second, err := scanner.Scan(context.Background(), opts)
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeat scan differs (-first +second):\n%s", diff)
	}
}

func TestScanPurgeRemovesOnlyErrorMarkers(t *testing.T) {
	tree := layout.NewTree(t.TempDir(), "")
	c8 := campaign.New(8)
	targets := []int64{230000001, 230000002}
	errDir := writeMarkers(t, tree, c8, targets[0], "data.npz", "nPLD.err", "other.err")
	okDir := writeMarkers(t, tree, c8, targets[1], "data.npz", "nPLD.npz")
	reporter := &recordingReporter{}
	scanner := NewScanner(tree, catalog.Static{8: targets}, reporter, "2.0")

	opts := ScanOptions{Campaigns: []campaign.ID{c8, c8}, Purge: true}
	got, err := scanner.Scan(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, 1, got[0].Errored)
	require.Equal(t, 1, got[0].Purged)
	// the second entry scans the same campaign after the purge already happened
	require.Equal(t, 0, got[1].Errored)
	require.Equal(t, []string{filepath.Join(errDir, "nPLD.err")}, reporter.purged)

	require.NoFileExists(t, filepath.Join(errDir, "nPLD.err"))
	require.FileExists(t, filepath.Join(errDir, "other.err"))
	require.FileExists(t, filepath.Join(errDir, "data.npz"))
	require.FileExists(t, filepath.Join(okDir, "nPLD.npz"))

	after, err := scanner.Scan(context.Background(), ScanOptions{Campaigns: []campaign.ID{c8, c8}})
	require.NoError(t, err)
	require.Equal(t, 0, after[0].Errored)
	require.Equal(t, []string{"230000001"}, after[0].RemainingIDs)
}

func TestScanRecordsUnparsableNamesAsAnomalies(t *testing.T) {
	tree := layout.NewTree(t.TempDir(), "")
	c9 := campaign.New(9)
	writeMarkers(t, tree, c9, 240000001, "nPLD.npz")
	bad := filepath.Join(tree.CampaignDir(c9), "240000000", "abcde")
	require.NoError(t, os.MkdirAll(bad, 0o755))
	// plain files and foreign directories next to prefix directories are ignored
	require.NoError(t, os.WriteFile(filepath.Join(tree.CampaignDir(c9), "notes.txt"), nil, 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(tree.CampaignDir(c9), "scratch"), 0o755))

	reporter := &recordingReporter{}
	scanner := NewScanner(tree, catalog.Static{9: {240000001}}, reporter, "2.0")
	got, err := scanner.Scan(context.Background(), ScanOptions{Campaigns: []campaign.ID{c9, c9}})
	require.NoError(t, err)
	require.Equal(t, 1, got[0].Processed)
	require.Len(t, got[0].Anomalies, 1)
	require.Equal(t, 2, AnomalyCount(got))
	require.Equal(t, []string{bad, bad}, reporter.anomalies)
}

func TestScanDecileFiltersUniverse(t *testing.T) {
	tree := layout.NewTree(t.TempDir(), "")
	c3 := campaign.New(3)
	targets := make([]int64, 0, 20)
	for i := int64(0); i < 20; i++ {
		targets = append(targets, 205000000+i)
	}
	for _, target := range targets {
		writeMarkers(t, tree, c3, target, "nPLD.npz")
	}
	scanner := NewScanner(tree, catalog.Static{3: targets}, nil, "2.0")

	got, err := scanner.Scan(context.Background(), ScanOptions{Campaigns: []campaign.ID{c3}})
	require.NoError(t, err)
	require.Len(t, got, campaign.DecileCount)
	for i, s := range got {
		require.True(t, s.Decile)
		require.Equal(t, campaign.NewDecile(3, i).String(), s.Campaign)
		require.Equal(t, 2, s.Total)
		require.Equal(t, 2, s.Processed)
	}
}

func TestScanHonoursCancellation(t *testing.T) {
	tree := layout.NewTree(t.TempDir(), "")
	c0 := campaign.New(0)
	writeMarkers(t, tree, c0, 202000001, "nPLD.npz")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewScanner(tree, catalog.Static{0: {202000001}}, nil, "2.0").
		Scan(ctx, ScanOptions{Campaigns: []campaign.ID{c0, c0}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestExpandCampaigns(t *testing.T) {
	require.Len(t, ExpandCampaigns(nil), campaign.DefaultLast+1)
	require.Len(t, ExpandCampaigns([]campaign.ID{campaign.New(5)}), campaign.DecileCount)
	single := []campaign.ID{campaign.NewDecile(5, 3)}
	require.Equal(t, single, ExpandCampaigns(single))
	list := []campaign.ID{campaign.New(1), campaign.New(2)}
	require.Equal(t, list, ExpandCampaigns(list))
}

func TestScanFollowsSymlinkedDirectories(t *testing.T) {
	tree := layout.NewTree(t.TempDir(), "")
	c5 := campaign.New(5)
	elsewhere := t.TempDir()

	// a target directory that is a link
	linkedTarget := filepath.Join(elsewhere, "target")
	require.NoError(t, os.MkdirAll(linkedTarget, 0o755))
	for _, name := range []string{"data.npz", "nPLD.npz"} {
		require.NoError(t, os.WriteFile(filepath.Join(linkedTarget, name), nil, 0o644))
	}
	prefixDir := filepath.Join(tree.CampaignDir(c5), "123400000")
	require.NoError(t, os.MkdirAll(prefixDir, 0o755))
	require.NoError(t, os.Symlink(linkedTarget, filepath.Join(prefixDir, "56789")))

	// a whole prefix directory that is a link
	linkedPrefix := filepath.Join(elsewhere, "prefix")
	require.NoError(t, os.MkdirAll(filepath.Join(linkedPrefix, "00002"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(linkedPrefix, "00002", "data.npz"), nil, 0o644))
	require.NoError(t, os.Symlink(linkedPrefix, filepath.Join(tree.CampaignDir(c5), "201000000")))

	// a dangling link for a catalog target
	dangling := filepath.Join(prefixDir, "56790")
	require.NoError(t, os.Symlink(filepath.Join(elsewhere, "gone"), dangling))

	reporter := &recordingReporter{}
	scanner := NewScanner(tree, catalog.Static{5: {123456789, 201000002, 123456790}}, reporter, "2.0")
	got, err := scanner.Scan(context.Background(), ScanOptions{Campaigns: []campaign.ID{c5, c5}})
	require.NoError(t, err)

	s := got[0]
	require.Equal(t, 3, s.Total)
	require.Equal(t, 2, s.Downloaded)
	require.Equal(t, 1, s.Processed)
	require.Equal(t, []string{"201000002"}, s.RemainingIDs)
	require.Len(t, s.Anomalies, 1)
	require.Equal(t, []string{dangling, dangling}, reporter.anomalies)
}
