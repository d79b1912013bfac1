package model

import "fmt"

type Stage string

const (
	StageRemaining Stage = "remaining"
	StageProcessed Stage = "processed"
	StageErrored   Stage = "errored"
)

var allowedTransitions = map[Stage]map[Stage]bool{
	StageRemaining: {
		StageRemaining: true,
		StageProcessed: true,
		StageErrored:   true,
	},
	StageErrored: {
		StageErrored:   true,
		StageRemaining: true, // error marker purged, target becomes runnable again
		StageProcessed: true,
	},
	StageProcessed: {
		StageProcessed: true,
	},
}

func IsKnownStage(stage Stage) bool {
	_, ok := allowedTransitions[stage]
	return ok
}

func CanTransition(from, to Stage) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// ClassifyStage maps the two processing markers onto exactly one stage.
// A success marker wins over a stale error marker.
func ClassifyStage(success, failure bool) Stage {
	switch {
	case success:
		return StageProcessed
	case failure:
		return StageErrored
	default:
		return StageRemaining
	}
}

func TransitionTargetStage(rec *TargetRecord, to Stage) error {
	from := rec.Stage
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid target stage transition: %q -> %q (target=%09d)", from, to, rec.ID)
	}
	rec.Stage = to
	return nil
}
