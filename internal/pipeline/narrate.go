package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/pranavgnn/thirdeye/internal/config"
	"github.com/pranavgnn/thirdeye/internal/model"
	"github.com/pranavgnn/thirdeye/pkg/anthropic"
)

const narratorSystemPrompt = `You write the reply message sent back to a citizen who reported a possible traffic violation. You receive a JSON summary of the analysis and must produce a short, clear plain-text message.

Rules, in order:
1. If the summary says the location may be outside India, open with a warning that the service covers India only.
2. If no vehicle was detected, say so and ask for a clearer photo.
3. If no violation was found, say the image shows no clear violation.
4. For confirmed violations, name each matched violation with its fine amount in rupees and the section of the Motor Vehicles Act.
5. Mention the license plate only if the summary includes one.
6. If the report needs manual verification, say an official will review it.
7. If "storage" is "failed", apologize, state the reason from "storage_error", and ask the citizen to try again later. If "storage" is "skipped", no report was filed; do not mention storage at all.

Tone: factual and polite. Plain prose sentences only, no lists, no markdown, no emoji other than a leading warning sign when rule 1 applies. Keep it under 150 words.`

// outsideIndiaConfidenceBar is how certain the classifier must be that the
// scene is outside India before narration leads with a coverage warning.
const outsideIndiaConfidenceBar = 0.99

const outsideIndiaWarning = "⚠️ This photo appears to be from outside India. This service only handles Indian traffic violations."

// Storage states reported to the narrator. Persistence is skipped entirely
// when no violation was confirmed.
const (
	storageSkipped = "skipped"
	storageStored  = "stored"
	storageFailed  = "failed"
)

// narrationPayload is the summary handed to the narrator model. The plate is
// omitted entirely when its confidence is below the disclosure floor so the
// model cannot leak it.
type narrationPayload struct {
	VehicleDetected         bool     `json:"vehicle_detected"`
	IsViolation             *bool    `json:"is_violation"`
	LicensePlate            *string  `json:"license_plate,omitempty"`
	MaybeOutsideIndia       bool     `json:"maybe_outside_india"`
	Violations              []string `json:"violations"`
	NeedsManualVerification bool     `json:"needs_manual_verification"`
	Storage                 string   `json:"storage"`
	StorageError            string   `json:"storage_error,omitempty"`
	ReportID                int64    `json:"report_id,omitempty"`
}

func storageState(report *model.Report, storage model.StorageOutcome) (state, reason string) {
	if !report.Analysis.ViolationConfirmed() {
		return storageSkipped, ""
	}
	if storage.Stored {
		return storageStored, ""
	}
	return storageFailed, storage.Error
}

// NarratePhase produces the citizen-facing reply for a completed run. The
// narrator model is best effort: on any failure a deterministic narration is
// composed instead, so this phase never fails the pipeline.
func NarratePhase(ctx context.Context, report *model.Report, storage model.StorageOutcome, client anthropic.Client, cfg config.AnthropicConfig) string {
	state, reason := storageState(report, storage)
	payload := narrationPayload{
		VehicleDetected:         report.Analysis.VehicleDetected,
		IsViolation:             report.Analysis.IsViolation,
		MaybeOutsideIndia:       maybeOutsideIndia(report.Analysis),
		NeedsManualVerification: report.NeedsManualVerification,
		Storage:                 state,
		StorageError:            reason,
	}
	if state == storageStored {
		payload.ReportID = storage.ReportID
	}
	if plateDisclosable(report.Analysis) {
		payload.LicensePlate = report.Analysis.LicensePlate
	}
	for _, v := range report.Violations {
		payload.Violations = append(payload.Violations,
			fmt.Sprintf("%s (fine ₹%d, Section %s)", v.Name, v.FineAmount, v.Section))
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return enforceDisclosure(fallbackNarration(report, storage), report)
	}

	resp, err := client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     cfg.NarratorModel,
		MaxTokens: 512,
		System:    anthropic.BuildCachedSystemBlocks(narratorSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: string(raw)},
		},
	})
	if err != nil {
		zap.L().Warn("narration model failed, using fallback", zap.Error(err))
		return enforceDisclosure(fallbackNarration(report, storage), report)
	}
	resp.Usage.LogCost(cfg.NarratorModel, "narrator")

	text := extractText(resp)
	if text == "" {
		zap.L().Warn("narration model returned no text, using fallback")
		return enforceDisclosure(fallbackNarration(report, storage), report)
	}
	return enforceDisclosure(text, report)
}

func maybeOutsideIndia(a model.AnalysisRecord) bool {
	return !a.IsIndiaLocation && a.LocationConfidence > outsideIndiaConfidenceBar
}

func plateDisclosable(a model.AnalysisRecord) bool {
	return a.PlateReported() && a.LicensePlateConfidence >= plateConfidenceFloor
}

// enforceDisclosure applies the disclosure rules to generated text. Model
// output is untrusted: low-confidence plates are redacted even if the model
// somehow produced one, the outside-India warning must open the message, and
// a manual-verification notice is present when required.
func enforceDisclosure(text string, report *model.Report) string {
	if report.Analysis.PlateReported() && !plateDisclosable(report.Analysis) {
		text = strings.ReplaceAll(text, *report.Analysis.LicensePlate, "[plate unclear]")
	}

	if maybeOutsideIndia(report.Analysis) {
		trimmed := strings.TrimSpace(text)
		if !strings.HasPrefix(trimmed, outsideIndiaWarning) {
			trimmed = strings.TrimSpace(strings.ReplaceAll(trimmed, outsideIndiaWarning, ""))
			trimmed = outsideIndiaWarning + "\n\n" + trimmed
		}
		text = trimmed
	}

	if report.NeedsManualVerification && !strings.Contains(strings.ToLower(text), "review") {
		text += "\n\nAn official will review this report before any action is taken."
	}

	return text
}

// joinProse joins clauses into one English enumeration.
func joinProse(clauses []string) string {
	switch len(clauses) {
	case 0:
		return ""
	case 1:
		return clauses[0]
	default:
		return strings.Join(clauses[:len(clauses)-1], ", ") + " and " + clauses[len(clauses)-1]
	}
}

// fallbackNarration composes a deterministic reply when the narrator model is
// unavailable. Prose only, no lists; fine amounts use Indian digit grouping.
func fallbackNarration(report *model.Report, storage model.StorageOutcome) string {
	var sb strings.Builder

	switch {
	case !report.Analysis.VehicleDetected:
		sb.WriteString("No vehicle could be detected in this photo. Please send a clearer image of the vehicle and scene.")
	case !report.Analysis.ViolationConfirmed():
		sb.WriteString("Thank you for the report. The image does not show a clear traffic violation.")
	default:
		if len(report.Violations) == 0 {
			sb.WriteString("Thank you for the report. A violation appears present but no entry in the violation catalog could be confirmed.")
		} else {
			p := message.NewPrinter(language.MustParse("en-IN"))
			clauses := make([]string, len(report.Violations))
			for i, v := range report.Violations {
				clauses[i] = p.Sprintf("%s, which carries a fine of ₹%d under Section %s", v.Name, v.FineAmount, v.Section)
			}
			sb.WriteString("Thank you for the report. The image shows ")
			sb.WriteString(joinProse(clauses))
			sb.WriteString(".")
		}
		if plateDisclosable(report.Analysis) {
			sb.WriteString(fmt.Sprintf(" The vehicle plate is %s.", *report.Analysis.LicensePlate))
		}
	}

	if report.Analysis.ViolationConfirmed() {
		if storage.Stored {
			sb.WriteString(fmt.Sprintf(" Your report has been filed with reference number %d.", storage.ReportID))
		} else {
			sb.WriteString(fmt.Sprintf(" Your report could not be recorded: %s. Please try again later.", storage.Error))
		}
	}

	return strings.TrimSpace(sb.String())
}
