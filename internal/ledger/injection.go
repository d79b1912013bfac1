package ledger

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"k2ledger/internal/campaign"
	"k2ledger/internal/layout"
	"k2ledger/internal/model"
)

var DefaultDepths = []float64{0.01, 0.001, 0.0001}

type InjectionOptions struct {
	Campaigns []campaign.ID
	Model     string
	Depths    []float64
	Purge     bool
}

type injectionKey struct {
	masked bool
	depth  float64
}

// InjectionScan reports one row per (campaign, depth, mask), depth-major with the
// unmasked row first. Injection runs always use the long cadence target universe.
func (s *Scanner) InjectionScan(ctx context.Context, opts InjectionOptions) ([]model.InjectionSummary, error) {
	modelName := strings.TrimSpace(opts.Model)
	if modelName == "" {
		modelName = DefaultModel
	}
	depths := uniqueDepths(opts.Depths)
	if len(depths) == 0 {
		depths = DefaultDepths
	}

	ids := ExpandCampaigns(opts.Campaigns)
	out := make([]model.InjectionSummary, 0, len(ids)*len(depths)*2)
	for _, id := range ids {
		targets, err := s.catalog.ResolveCampaignTargets(ctx, id, layout.CadenceLong)
		if err != nil {
			return nil, fmt.Errorf("resolve targets for campaign %s: %w", id, err)
		}
		rows, err := s.scanInjectionCampaign(ctx, id, targets, modelName, depths, opts.Purge)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (s *Scanner) scanInjectionCampaign(ctx context.Context, id campaign.ID, targets []int64, modelName string, depths []float64, purge bool) ([]model.InjectionSummary, error) {
	keys := make([]injectionKey, 0, len(depths)*2)
	rows := make(map[injectionKey]*model.InjectionSummary, len(depths)*2)
	for _, depth := range depths {
		for _, masked := range []bool{false, true} {
			k := injectionKey{masked: masked, depth: depth}
			keys = append(keys, k)
			rows[k] = &model.InjectionSummary{
				Campaign: id.String(),
				Decile:   id.IsDecile(),
				Masked:   masked,
				Depth:    depth,
				Total:    len(targets),
			}
		}
	}

	var anomalies []string
	anomaly := func(path string, err error) {
		anomalies = append(anomalies, fmt.Sprintf("%s: %v", path, err))
		s.reporter.Anomaly(id.String(), path, err)
	}

	err := walkTargets(ctx, s.tree, id, universeSet(targets), anomaly, func(target int64, dir string) {
		for _, k := range keys {
			row := rows[k]
			stage := layout.InjectionStage(modelName, k.masked, k.depth)
			if exists(filepath.Join(dir, layout.SuccessMarker(stage)), anomaly) {
				row.Done++
				continue
			}
			errPath := filepath.Join(dir, layout.ErrorMarker(stage))
			if !exists(errPath, anomaly) {
				continue
			}
			row.Errored++
			if !purge {
				continue
			}
			removed, err := removeIfExists(errPath)
			if err != nil {
				anomaly(errPath, fmt.Errorf("purge error marker: %w", err))
				continue
			}
			if removed {
				row.Purged++
				s.reporter.Purged(id.String(), model.TargetRecord{ID: target, Stage: model.StageRemaining}, errPath)
			}
		}
	})
	if err != nil {
		return nil, err
	}

	for _, k := range keys {
		if err := rows[k].Validate(); err != nil {
			anomaly(s.tree.CampaignDir(id), err)
		}
	}

	out := make([]model.InjectionSummary, 0, len(keys))
	for i, k := range keys {
		row := *rows[k]
		// directory-level anomalies are shared by every row of the campaign; attach once
		if i == 0 {
			row.Anomalies = anomalies
		}
		out = append(out, row)
	}
	return out, nil
}

// uniqueDepths drops repeated depths, keeping first-seen order.
func uniqueDepths(depths []float64) []float64 {
	seen := make(map[float64]bool, len(depths))
	out := make([]float64, 0, len(depths))
	for _, d := range depths {
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// InjectionAnomalyCount totals the anomalies recorded across injection rows.
func InjectionAnomalyCount(rows []model.InjectionSummary) int {
	n := 0
	for _, r := range rows {
		n += len(r.Anomalies)
	}
	return n
}
