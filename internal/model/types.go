package model

import "fmt"

// TargetRecord is the per-target view produced while scanning. It is never persisted.
type TargetRecord struct {
	ID         int64 `json:"id"`
	Downloaded bool  `json:"downloaded"`
	Published  bool  `json:"published"`
	Stage      Stage `json:"stage"`
}

// CampaignSummary aggregates one campaign (or decile). It is recomputed on every scan.
type CampaignSummary struct {
	Campaign     string   `json:"campaign"`
	Decile       bool     `json:"decile"`
	Total        int      `json:"total"`
	Downloaded   int      `json:"downloaded"`
	Processed    int      `json:"processed"`
	Published    int      `json:"published"`
	Errored      int      `json:"errored"`
	Purged       int      `json:"purged,omitempty"`
	RemainingIDs []string `json:"remaining_ids"`
	ErroredIDs   []string `json:"errored_ids"`
	Anomalies    []string `json:"anomalies,omitempty"`
}

func (s *CampaignSummary) Add(rec TargetRecord) {
	if rec.Downloaded {
		s.Downloaded++
	}
	if rec.Published {
		s.Published++
	}
	switch rec.Stage {
	case StageProcessed:
		s.Processed++
	case StageErrored:
		s.Errored++
		s.ErroredIDs = append(s.ErroredIDs, fmt.Sprintf("%09d", rec.ID))
	default:
		s.RemainingIDs = append(s.RemainingIDs, fmt.Sprintf("%09d", rec.ID))
	}
}

// Validate checks the counting invariants of a finished scan.
func (s CampaignSummary) Validate() error {
	if s.Processed+s.Errored > s.Total {
		return fmt.Errorf("campaign %s: processed (%d) + errored (%d) exceeds total (%d)", s.Campaign, s.Processed, s.Errored, s.Total)
	}
	if s.Downloaded > s.Total || s.Published > s.Total {
		return fmt.Errorf("campaign %s: downloaded/published exceed total (%d)", s.Campaign, s.Total)
	}
	if len(s.ErroredIDs) != s.Errored {
		return fmt.Errorf("campaign %s: errored ids (%d) disagree with count (%d)", s.Campaign, len(s.ErroredIDs), s.Errored)
	}
	return nil
}

func (s CampaignSummary) Complete() bool {
	return s.Total > 0 && s.Processed == s.Total
}

// InjectionSummary is one (mask, depth) row of the injection ledger.
type InjectionSummary struct {
	Campaign  string   `json:"campaign"`
	Decile    bool     `json:"decile"`
	Masked    bool     `json:"masked"`
	Depth     float64  `json:"depth"`
	Total     int      `json:"total"`
	Done      int      `json:"done"`
	Errored   int      `json:"errored"`
	Purged    int      `json:"purged,omitempty"`
	Anomalies []string `json:"anomalies,omitempty"`
}

// Validate checks the counting invariant of one injection row.
func (r InjectionSummary) Validate() error {
	if r.Done+r.Errored > r.Total {
		return fmt.Errorf("campaign %s depth %g masked=%t: done (%d) + errored (%d) exceeds total (%d)",
			r.Campaign, r.Depth, r.Masked, r.Done, r.Errored, r.Total)
	}
	return nil
}
