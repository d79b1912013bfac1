package model

import "testing"

func TestClassifyStageIsExclusive(t *testing.T) {
	cases := []struct {
		success bool
		failure bool
		want    Stage
	}{
		{false, false, StageRemaining},
		{true, false, StageProcessed},
		{false, true, StageErrored},
		{true, true, StageProcessed},
	}
	for _, tc := range cases {
		if got := ClassifyStage(tc.success, tc.failure); got != tc.want {
			t.Fatalf("classify(%t,%t): got %q want %q", tc.success, tc.failure, got, tc.want)
		}
	}
}

func TestCanTransition_AllowsExpectedPaths(t *testing.T) {
	cases := []struct {
		from Stage
		to   Stage
	}{
		{StageRemaining, StageProcessed},
		{StageRemaining, StageErrored},
		{StageErrored, StageRemaining},
		{StageErrored, StageProcessed},
	}
	for _, tc := range cases {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be allowed", tc.from, tc.to)
		}
	}
}

func TestCanTransition_RejectsInvalidPaths(t *testing.T) {
	cases := []struct {
		from Stage
		to   Stage
	}{
		{StageProcessed, StageRemaining},
		{StageProcessed, StageErrored},
		{"not_a_stage", StageRemaining},
	}
	for _, tc := range cases {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be rejected", tc.from, tc.to)
		}
	}
}

func TestTransitionTargetStage_BlocksIllegalTransition(t *testing.T) {
	rec := TargetRecord{ID: 201367065, Stage: StageProcessed}
	if err := TransitionTargetStage(&rec, StageRemaining); err == nil {
		t.Fatal("expected illegal transition error")
	}
	if rec.Stage != StageProcessed {
		t.Fatalf("stage changed on rejected transition: %q", rec.Stage)
	}
}

func TestSummaryAddAndValidate(t *testing.T) {
	s := CampaignSummary{Campaign: "5", Total: 3}
	s.Add(TargetRecord{ID: 1, Downloaded: true, Published: true, Stage: StageProcessed})
	s.Add(TargetRecord{ID: 2, Downloaded: true, Stage: StageErrored})
	s.Add(TargetRecord{ID: 3, Stage: StageRemaining})
	if s.Processed != 1 || s.Errored != 1 || s.Downloaded != 2 || s.Published != 1 {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if len(s.RemainingIDs) != 1 || s.RemainingIDs[0] != "000000003" {
		t.Fatalf("unexpected remaining ids: %v", s.RemainingIDs)
	}
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
	s.Total = 1
	if err := s.Validate(); err == nil {
		t.Fatal("expected invariant violation")
	}
}

func TestInjectionSummaryValidate(t *testing.T) {
	r := InjectionSummary{Campaign: "5", Depth: 0.01, Total: 2, Done: 1, Errored: 1}
	if err := r.Validate(); err != nil {
		t.Fatal(err)
	}
	r.Done = 2
	if err := r.Validate(); err == nil {
		t.Fatal("expected invariant violation")
	}
}
