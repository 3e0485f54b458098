package pipeline

import (
	"context"
	"log/slog"

	"platewatch/internal/admission"
	"platewatch/internal/arbitration"
	"platewatch/internal/audit"
	"platewatch/internal/classifier"
	"platewatch/internal/config"
	"platewatch/internal/records"
	"platewatch/internal/store"
	"platewatch/internal/tracking"
)

// BatchStore persists dispatched batches for audit.
type BatchStore interface {
	SaveBatch(ctx context.Context, batch *store.Batch) error
}

// Options configures a Pipeline. Settings is copied from config; the
// capability fields are supplied by the caller.
type Options struct {
	VideoID    int64
	ChunkIndex int
	// TimeOffset is added to audit event timestamps so chunked runs report
	// video time. Record timestamps are shifted at merge instead.
	TimeOffset float64

	Tier       admission.Tier
	Settings   config.Pipeline
	Threshold  config.Threshold
	CollageDir string
	Cost       float64

	Detector   Detector
	Recognizer LocalRecognizer
	Classifier classifier.BatchClassifier
	Scorer     tracking.Scorer
	Validator  arbitration.PlateValidator
	Filter     arbitration.LocalPlateFilter

	Records  records.Repository
	Batches  BatchStore
	Recorder audit.Recorder
	Logger   *slog.Logger
}

// OptionsFromConfig fills the configuration-derived fields of Options for an
// unchunked run. Capabilities and sinks are left for the caller.
func OptionsFromConfig(cfg *config.Config) Options {
	tier, err := admission.ParseTier(cfg.Pipeline.Sensitivity)
	if err != nil {
		tier = admission.TierHigh
	}
	return Options{
		ChunkIndex: -1,
		Tier:       tier,
		Settings:   cfg.Pipeline,
		Threshold:  cfg.Threshold,
		CollageDir: cfg.Paths.CollageDir,
		Cost:       cfg.Vision.CostPerBatch,
		Filter:     arbitration.DefaultLocalPlateFilter(),
	}
}
