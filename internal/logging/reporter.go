package logging

import (
	"sync/atomic"

	"go.uber.org/zap"

	"k2ledger/internal/model"
)

// ScanReporter logs what a ledger scan ran into and keeps counts for the exit status.
type ScanReporter struct {
	logger    *zap.Logger
	anomalies atomic.Int64
	purged    atomic.Int64
}

func NewScanReporter(logger *zap.Logger) *ScanReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScanReporter{logger: logger}
}

func (r *ScanReporter) Anomaly(campaign, path string, err error) {
	r.anomalies.Add(1)
	r.logger.Warn("unexpected filesystem structure",
		zap.String("campaign", campaign),
		zap.String("path", path),
		zap.Error(err))
}

func (r *ScanReporter) Purged(campaign string, rec model.TargetRecord, path string) {
	r.purged.Add(1)
	r.logger.Info("purged error marker",
		zap.String("campaign", campaign),
		zap.Int64("target", rec.ID),
		zap.String("stage", string(rec.Stage)),
		zap.String("path", path))
}

func (r *ScanReporter) Anomalies() int {
	return int(r.anomalies.Load())
}

func (r *ScanReporter) Purges() int {
	return int(r.purged.Load())
}
