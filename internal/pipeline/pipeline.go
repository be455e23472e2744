package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pranavgnn/thirdeye/internal/config"
	"github.com/pranavgnn/thirdeye/internal/model"
	"github.com/pranavgnn/thirdeye/internal/store"
	"github.com/pranavgnn/thirdeye/pkg/anthropic"
)

// Pipeline runs the full analysis flow for one image: vision classification,
// catalog matching, manual-verification disposition, persistence, and
// narration.
type Pipeline struct {
	cfg       *config.Config
	store     store.Store
	index     CandidateIndex
	anthropic anthropic.Client
	names     []string
}

// New assembles a pipeline from its collaborators. violationNames is the
// allowed-label vocabulary given to the classifier.
func New(cfg *config.Config, st store.Store, idx CandidateIndex, client anthropic.Client, violationNames []string) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		index:     idx,
		anthropic: client,
		names:     violationNames,
	}
}

// Process analyzes one image and returns the full result. Classification and
// validation failures abort the run with a typed error; storage and narration
// failures degrade instead, so a caller with an analysis in hand always gets
// a reply to forward.
func (p *Pipeline) Process(ctx context.Context, imageRef string, reporterIdentity *string) (*model.ProcessResult, error) {
	started := time.Now()

	analysis, err := VisionPhase(ctx, imageRef, p.names, p.anthropic, p.cfg.Anthropic)
	if err != nil {
		return nil, err
	}

	matched, err := MatchPhase(ctx, analysis, p.index, p.anthropic, p.cfg.Anthropic)
	if err != nil {
		return nil, err
	}

	report := &model.Report{
		Analysis:                *analysis,
		Violations:              matched,
		ReporterIdentity:        reporterIdentity,
		ImageReference:          imageRef,
		NeedsManualVerification: NeedsManualVerification(*analysis, matched),
		CreatedAt:               time.Now().UTC(),
	}

	var outcome model.StorageOutcome
	if report.Analysis.ViolationConfirmed() {
		outcome = store.PersistReport(ctx, p.store, report)
	}

	narration := NarratePhase(ctx, report, outcome, p.anthropic, p.cfg.Anthropic)

	zap.L().Info("pipeline run complete",
		zap.Bool("violation", report.Analysis.ViolationConfirmed()),
		zap.Int("matched", len(matched)),
		zap.Bool("needs_manual_verification", report.NeedsManualVerification),
		zap.Bool("stored", outcome.Stored),
		zap.Duration("elapsed", time.Since(started)))

	return &model.ProcessResult{
		Report:    report,
		Storage:   outcome,
		Narration: narration,
	}, nil
}
