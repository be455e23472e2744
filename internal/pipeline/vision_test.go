package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/pranavgnn/thirdeye/pkg/anthropic"
)

const sampleAnalysisJSON = `{
	"vehicle_detected": true,
	"is_violation": true,
	"license_plate": "KA05MH8899",
	"license_plate_confidence": 0.85,
	"is_india_location": true,
	"location_confidence": 0.9,
	"title": "Helmetless riding",
	"short_description": "Rider without helmet",
	"detailed_description": "A scooter rider without a helmet at a junction.",
	"violations": ["Helmet Missing"],
	"confidence_score": 0.88
}`

func TestVisionPhase_ParsesAnalysis(t *testing.T) {
	ctx := context.Background()

	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything,
		mock.MatchedBy(func(req anthropic.MessageRequest) bool {
			return req.Model == "vision-model" &&
				req.Messages[0].Image == "https://example.com/scene.jpg" &&
				strings.Contains(req.System[0].Text, "Helmet Missing")
		})).Return(textResponse(sampleAnalysisJSON), nil)

	analysis, err := VisionPhase(ctx, "https://example.com/scene.jpg",
		[]string{"Helmet Missing", "Triple Riding"}, client, testAnthropicCfg)

	assert.NoError(t, err)
	assert.True(t, analysis.VehicleDetected)
	assert.True(t, analysis.ViolationConfirmed())
	assert.Equal(t, "KA05MH8899", *analysis.LicensePlate)
	assert.Equal(t, []string{"Helmet Missing"}, analysis.ViolationLabels)
	assert.InDelta(t, 0.88, analysis.OverallConfidence, 1e-9)
	client.AssertExpectations(t)
}

func TestVisionPhase_StripsCodeFences(t *testing.T) {
	ctx := context.Background()

	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("```json\n"+sampleAnalysisJSON+"\n```"), nil)

	analysis, err := VisionPhase(ctx, "ref", nil, client, testAnthropicCfg)

	assert.NoError(t, err)
	assert.True(t, analysis.VehicleDetected)
}

func TestVisionPhase_ClampsConfidences(t *testing.T) {
	ctx := context.Background()

	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"vehicle_detected": true, "license_plate_confidence": 1.7, "location_confidence": -0.3, "confidence_score": 2.0}`), nil)

	analysis, err := VisionPhase(ctx, "ref", nil, client, testAnthropicCfg)

	assert.NoError(t, err)
	assert.Equal(t, 1.0, analysis.LicensePlateConfidence)
	assert.Equal(t, 0.0, analysis.LocationConfidence)
	assert.Equal(t, 1.0, analysis.OverallConfidence)
}

func TestVisionPhase_APIFailure(t *testing.T) {
	ctx := context.Background()

	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, errors.New("overloaded"))

	analysis, err := VisionPhase(ctx, "ref", nil, client, testAnthropicCfg)

	assert.Nil(t, analysis)
	var cErr *ClassificationError
	assert.ErrorAs(t, err, &cErr)
}

func TestVisionPhase_UnparseableResponse(t *testing.T) {
	ctx := context.Background()

	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("I cannot analyze this image."), nil)

	analysis, err := VisionPhase(ctx, "ref", nil, client, testAnthropicCfg)

	assert.Nil(t, analysis)
	var cErr *ClassificationError
	assert.ErrorAs(t, err, &cErr)
}

func TestVisionPhase_EmptyResponse(t *testing.T) {
	ctx := context.Background()

	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&anthropic.MessageResponse{}, nil)

	analysis, err := VisionPhase(ctx, "ref", nil, client, testAnthropicCfg)

	assert.Nil(t, analysis)
	var cErr *ClassificationError
	assert.ErrorAs(t, err, &cErr)
}

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanJSON("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanJSON(`{"a":1}`))
}
