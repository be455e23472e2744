package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pranavgnn/thirdeye/internal/config"
	"github.com/pranavgnn/thirdeye/internal/model"
	"github.com/pranavgnn/thirdeye/pkg/anthropic"
)

const visionSystemPromptTemplate = `You are a traffic violation analyst reviewing photos submitted by citizens in India.

Examine the image and respond with ONLY a JSON object, no prose before or after, with exactly these fields:

{
  "vehicle_detected": boolean,
  "is_violation": boolean or null,
  "license_plate": string or null,
  "license_plate_confidence": number between 0 and 1,
  "is_india_location": boolean,
  "location_confidence": number between 0 and 1,
  "title": string or null,
  "short_description": string or null,
  "detailed_description": string or null,
  "violations": array of strings,
  "confidence_score": number between 0 and 1
}

Rules:
- "vehicle_detected": true only if at least one motor vehicle is visible.
- "is_violation": null when no vehicle is detected. Otherwise true only if a traffic violation is clearly visible.
- "license_plate": report a plate only when you can read it with confidence above 0.7; otherwise null. Indian plates follow the pattern XX00XX0000 (state code, district number, series, number). Normalize to uppercase with no spaces.
- "is_india_location": assume the photo is from India. Mark false only when you are more than 99%% certain the scene is outside India (foreign signage, left-hand-drive traffic, non-Indian plates).
- "violations": each entry must be exactly one of the allowed names below. Never invent a name. Empty array when no violation is visible.
- "confidence_score": your overall confidence in the complete assessment. Be conservative; uncertain assessments must score below 0.6.
- "title" and the descriptions: short factual summaries of what the image shows, null when no violation.

Allowed violation names:
%s`

// visionMaxTokens bounds the structured classifier response.
const visionMaxTokens = 1024

// VisionPhase runs the vision classifier on one image reference and parses
// the structured analysis. Failures wrap into ClassificationError.
func VisionPhase(ctx context.Context, imageRef string, violationNames []string, client anthropic.Client, cfg config.AnthropicConfig) (*model.AnalysisRecord, error) {
	prompt := fmt.Sprintf(visionSystemPromptTemplate, "- "+strings.Join(violationNames, "\n- "))

	resp, err := client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     cfg.VisionModel,
		MaxTokens: visionMaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(prompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: "Analyze this image for traffic violations.", Image: imageRef},
		},
	})
	if err != nil {
		return nil, &ClassificationError{Err: err}
	}
	resp.Usage.LogCost(cfg.VisionModel, "vision")

	raw := extractText(resp)
	if raw == "" {
		return nil, &ClassificationError{Err: eris.New("empty classifier response")}
	}

	var analysis model.AnalysisRecord
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &analysis); err != nil {
		return nil, &ClassificationError{Err: eris.Wrap(err, "parse classifier response")}
	}

	analysis.LicensePlateConfidence = clamp01(analysis.LicensePlateConfidence)
	analysis.LocationConfidence = clamp01(analysis.LocationConfidence)
	analysis.OverallConfidence = clamp01(analysis.OverallConfidence)

	zap.L().Debug("vision analysis complete",
		zap.Bool("vehicle_detected", analysis.VehicleDetected),
		zap.Bool("violation", analysis.ViolationConfirmed()),
		zap.Int("labels", len(analysis.ViolationLabels)),
		zap.Float64("confidence", analysis.OverallConfidence))

	return &analysis, nil
}

// extractText concatenates the text blocks of a response.
func extractText(resp *anthropic.MessageResponse) string {
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

// cleanJSON strips markdown code fences that models sometimes wrap around
// JSON output.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
