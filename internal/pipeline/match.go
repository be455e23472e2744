package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pranavgnn/thirdeye/internal/catalog"
	"github.com/pranavgnn/thirdeye/internal/config"
	"github.com/pranavgnn/thirdeye/internal/model"
	"github.com/pranavgnn/thirdeye/pkg/anthropic"
)

// CandidateIndex retrieves catalog entries similar to a free-text label.
type CandidateIndex interface {
	Query(ctx context.Context, label string, k int) ([]catalog.Entry, error)
}

// candidatesPerLabel is how many catalog entries are retrieved and validated
// for each label the classifier emitted.
const candidatesPerLabel = 2

const validatorSystemPrompt = `You verify traffic violation matches. Given an observed violation label and a candidate entry from the official violation catalog, decide whether the candidate genuinely describes the observed violation.

Respond with ONLY a JSON object: {"is_valid": true} or {"is_valid": false}. No prose.`

// MatchPhase resolves the classifier's free-text violation labels against the
// catalog. Retrieval proposes candidates, the validator confirms or rejects
// each one, and confirmed entries are deduplicated by id. A candidate
// rejected for one label may still be confirmed for a later one.
func MatchPhase(ctx context.Context, analysis *model.AnalysisRecord, idx CandidateIndex, client anthropic.Client, cfg config.AnthropicConfig) ([]catalog.Entry, error) {
	if !analysis.VehicleDetected || !analysis.ViolationConfirmed() || len(analysis.ViolationLabels) == 0 {
		return nil, nil
	}

	var matched []catalog.Entry
	seen := make(map[int]bool)

	for _, label := range analysis.ViolationLabels {
		candidates, err := idx.Query(ctx, label, candidatesPerLabel)
		if err != nil {
			// Retrieval failures are infrastructure errors, not judgments
			// about the candidate, so they keep their own type.
			return nil, eris.Wrapf(err, "pipeline: retrieve candidates for %q", label)
		}

		for _, candidate := range candidates {
			if seen[candidate.ID] {
				continue
			}
			ok, err := validateCandidate(ctx, label, candidate, client, cfg)
			if err != nil {
				return nil, &ValidationError{Err: err}
			}
			if ok {
				matched = append(matched, candidate)
				seen[candidate.ID] = true
			}
		}
	}

	zap.L().Info("violation matching complete",
		zap.Int("labels", len(analysis.ViolationLabels)),
		zap.Int("matched", len(matched)))

	return matched, nil
}

// validateCandidate asks the validator model whether a retrieved catalog
// entry genuinely matches the observed label.
func validateCandidate(ctx context.Context, label string, candidate catalog.Entry, client anthropic.Client, cfg config.AnthropicConfig) (bool, error) {
	prompt := fmt.Sprintf("Observed violation: %s\n\nCandidate catalog entry:\n%s", label, candidate.DocumentText())

	resp, err := client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     cfg.ValidatorModel,
		MaxTokens: 64,
		System:    anthropic.BuildCachedSystemBlocks(validatorSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return false, eris.Wrapf(err, "validate candidate %q", candidate.Name)
	}
	resp.Usage.LogCost(cfg.ValidatorModel, "validator")

	var verdict struct {
		IsValid bool `json:"is_valid"`
	}
	raw := cleanJSON(extractText(resp))
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return false, eris.Wrapf(err, "parse validator verdict for %q", candidate.Name)
	}
	return verdict.IsValid, nil
}
