package openai

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/civium/simsearch/internal/domain"
)

// Uncertainty band: a top category score in this range yields Uncertain=true
// even when the provider did not flag the text outright.
const uncertainScoreFloor = 0.4

// Moderator classifies text via the OpenAI Moderations API.
type Moderator struct {
	client *openai.Client
	logger *zap.Logger
}

// NewModerator creates a moderation client.
func NewModerator(client *openai.Client, logger *zap.Logger) *Moderator {
	return &Moderator{client: client, logger: logger}
}

// Classify runs the moderation model against the raw text.
// The verdict is transient and must never be persisted.
func (m *Moderator) Classify(ctx context.Context, text string) (domain.Verdict, error) {
	resp, err := m.client.Moderations(ctx, openai.ModerationRequest{
		Input: text,
		Model: openai.ModerationOmniLatest,
	})
	if err != nil {
		return domain.Verdict{}, parseAPIError(err)
	}

	if len(resp.Results) == 0 {
		return domain.Verdict{Uncertain: true}, nil
	}

	res := resp.Results[0]
	verdict := domain.Verdict{Inappropriate: res.Flagged}

	if !res.Flagged && topCategoryScore(res.CategoryScores) >= uncertainScoreFloor {
		verdict.Uncertain = true
	}

	return verdict, nil
}

func topCategoryScore(s openai.ResultCategoryScores) float32 {
	top := s.Hate
	for _, v := range []float32{
		s.HateThreatening, s.Harassment, s.HarassmentThreatening,
		s.SelfHarm, s.SelfHarmIntent, s.SelfHarmInstructions,
		s.Sexual, s.SexualMinors, s.Violence, s.ViolenceGraphic,
	} {
		if v > top {
			top = v
		}
	}
	return top
}
