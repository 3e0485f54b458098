package classifier

import (
	"context"
	"fmt"
	"log/slog"

	"platewatch/internal/logging"
	"platewatch/internal/services"
	"platewatch/internal/services/vision"
)

// Describer is the subset of vision.Client the provider needs.
type Describer interface {
	DescribeImage(ctx context.Context, prompt string, jpeg []byte) (string, error)
}

// VisionProvider classifies collages with a multimodal chat model.
type VisionProvider struct {
	client Describer
	prompt string
	logger *slog.Logger
}

// NewVisionProvider builds a provider for a rows×cols collage.
func NewVisionProvider(client Describer, rows, cols int, logger *slog.Logger) *VisionProvider {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &VisionProvider{client: client, prompt: Prompt(rows, cols), logger: logger}
}

// ClassifyBatch implements BatchClassifier.
func (p *VisionProvider) ClassifyBatch(ctx context.Context, jpeg []byte) Outcome {
	raw, err := p.client.DescribeImage(ctx, p.prompt, jpeg)
	if err != nil {
		status, marker := StatusFailed, services.ErrTransient
		if vision.IsTimeout(err) {
			status, marker = StatusTimeout, services.ErrTimeout
		}
		logging.WarnWithContext(logging.WithContext(ctx, p.logger), "vision classification failed", "classifier_call_failed",
			logging.String("status", string(status)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "batch falls back to local plate reads"),
			logging.String(logging.FieldErrorHint, "check vision.api_key, network access, and vision.timeout_seconds"),
		)
		return Outcome{Status: status, Err: services.Wrap(marker, "classifier", "describe collage", "", err)}
	}
	results, err := ParseResults(raw)
	if err != nil {
		return Outcome{Status: StatusMalformed, Raw: raw, Err: fmt.Errorf("malformed classifier response: %w", err)}
	}
	return Outcome{Status: StatusSuccess, Results: results, Raw: raw}
}

// NewFromConfig assembles the provider chain used by the pipeline: the vision
// client behind a rate-limited, quota-gated Gate. A disabled or keyless
// configuration yields a gate that reports disabled.
func NewFromConfig(cfg VisionSettings, quota *Quota, logger *slog.Logger) *Gate {
	if !cfg.Enabled || cfg.Client.APIKey == "" {
		return NewGate(nil, 0, quota)
	}
	client := vision.NewClient(cfg.Client, vision.WithRetryMaxAttempts(cfg.RetryMaxAttempts))
	provider := NewVisionProvider(client, cfg.Rows, cfg.Cols, logger)
	return NewGate(Chain{provider}, cfg.MinInterval, quota)
}
