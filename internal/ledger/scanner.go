package ledger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"k2ledger/internal/campaign"
	"k2ledger/internal/catalog"
	"k2ledger/internal/layout"
	"k2ledger/internal/model"
)

const DefaultModel = "nPLD"

// ErrScanAnomalies is returned by callers that treat unexpected structure as a failure.
var ErrScanAnomalies = errors.New("scan encountered unexpected filesystem structure")

// Reporter receives the problems and side effects of a scan. It replaces any
// process-wide error hook; its lifetime is one invocation.
type Reporter interface {
	Anomaly(campaign, path string, err error)
	Purged(campaign string, rec model.TargetRecord, path string)
}

type nopReporter struct{}

func (nopReporter) Anomaly(string, string, error)             {}
func (nopReporter) Purged(string, model.TargetRecord, string) {}

type ScanOptions struct {
	Campaigns []campaign.ID
	Model     string
	Cadence   string
	Purge     bool
}

// Scanner projects the marker files on disk into campaign summaries. It keeps no state
// between scans; the filesystem is the only source of truth.
type Scanner struct {
	tree        layout.Tree
	catalog     catalog.Resolver
	reporter    Reporter
	fitsVersion string
}

func NewScanner(tree layout.Tree, resolver catalog.Resolver, reporter Reporter, fitsVersion string) *Scanner {
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &Scanner{
		tree:        tree,
		catalog:     resolver,
		reporter:    reporter,
		fitsVersion: strings.TrimSpace(fitsVersion),
	}
}

// ExpandCampaigns applies the request convention: a single whole campaign is reported
// per decile, anything else is reported as given. Nothing requested means every campaign.
func ExpandCampaigns(ids []campaign.ID) []campaign.ID {
	if len(ids) == 0 {
		return campaign.All()
	}
	if len(ids) == 1 && !ids[0].IsDecile() {
		return ids[0].Deciles()
	}
	out := make([]campaign.ID, len(ids))
	copy(out, ids)
	return out
}

func (s *Scanner) Scan(ctx context.Context, opts ScanOptions) ([]model.CampaignSummary, error) {
	modelName := strings.TrimSpace(opts.Model)
	if modelName == "" {
		modelName = DefaultModel
	}
	cadence := layout.NormalizeCadence(opts.Cadence)
	stage := layout.StageName(modelName, cadence)

	ids := ExpandCampaigns(opts.Campaigns)
	summaries := make([]model.CampaignSummary, 0, len(ids))
	for _, id := range ids {
		targets, err := s.catalog.ResolveCampaignTargets(ctx, id, cadence)
		if err != nil {
			return nil, fmt.Errorf("resolve targets for campaign %s: %w", id, err)
		}
		summary, err := s.scanCampaign(ctx, id, targets, stage, cadence, opts.Purge)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *Scanner) scanCampaign(ctx context.Context, id campaign.ID, targets []int64, stage, cadence string, purge bool) (model.CampaignSummary, error) {
	summary := model.CampaignSummary{
		Campaign:     id.String(),
		Decile:       id.IsDecile(),
		Total:        len(targets),
		RemainingIDs: []string{},
		ErroredIDs:   []string{},
	}
	anomaly := func(path string, err error) {
		summary.Anomalies = append(summary.Anomalies, fmt.Sprintf("%s: %v", path, err))
		s.reporter.Anomaly(summary.Campaign, path, err)
	}

	err := walkTargets(ctx, s.tree, id, universeSet(targets), anomaly, func(target int64, dir string) {
		errPath := filepath.Join(dir, layout.ErrorMarker(stage))
		rec := model.TargetRecord{
			ID:         target,
			Downloaded: exists(filepath.Join(dir, layout.DataMarker), anomaly),
			Published:  exists(filepath.Join(dir, layout.FITSFile(target, id.Number, s.fitsVersion, cadence)), anomaly),
		}
		success := exists(filepath.Join(dir, layout.SuccessMarker(stage)), anomaly)
		failure := !success && exists(errPath, anomaly)
		rec.Stage = model.ClassifyStage(success, failure)
		summary.Add(rec)

		if purge && rec.Stage == model.StageErrored {
			removed, err := removeIfExists(errPath)
			if err != nil {
				anomaly(errPath, fmt.Errorf("purge error marker: %w", err))
				return
			}
			if removed {
				summary.Purged++
				if err := model.TransitionTargetStage(&rec, model.StageRemaining); err == nil {
					s.reporter.Purged(summary.Campaign, rec, errPath)
				}
			}
		}
	})
	if err != nil {
		return model.CampaignSummary{}, err
	}
	if err := summary.Validate(); err != nil {
		anomaly(s.tree.CampaignDir(id), err)
	}
	return summary, nil
}

// AnomalyCount totals the anomalies recorded across summaries.
func AnomalyCount(summaries []model.CampaignSummary) int {
	n := 0
	for _, s := range summaries {
		n += len(s.Anomalies)
	}
	return n
}
