package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/pranavgnn/thirdeye/internal/catalog"
	"github.com/pranavgnn/thirdeye/internal/model"
	"github.com/pranavgnn/thirdeye/pkg/anthropic"
)

// --- Anthropic mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// textResponse builds a single-text-block response, the shape every phase
// consumes.
func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

// forModel matches a CreateMessage request by model id.
func forModel(model string) interface{} {
	return mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == model
	})
}

// --- Candidate index mock ---

type mockCandidateIndex struct {
	mock.Mock
}

func (m *mockCandidateIndex) Query(ctx context.Context, label string, k int) ([]catalog.Entry, error) {
	args := m.Called(ctx, label, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Entry), args.Error(1)
}

// --- Store fake ---

// fakeStore records inserts and answers with a fixed id or error.
type fakeStore struct {
	insertID   int64
	insertErr  error
	inserts    [][]string // column sets, in call order
	lastValues []any
}

func (s *fakeStore) InsertReport(ctx context.Context, columns []string, values []any) (int64, error) {
	s.inserts = append(s.inserts, columns)
	s.lastValues = values
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	return s.insertID, nil
}

func (s *fakeStore) ListReports(ctx context.Context, limit int) ([]model.StoredReport, error) {
	return nil, nil
}

func (s *fakeStore) Migrate(ctx context.Context) error { return nil }

func (s *fakeStore) Close() error { return nil }
