package questionsource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/TechFest-2026/exam-session-service/internal/models"
)

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiSource generates exam questions with the Gemini API. The model is
// constrained to a JSON response schema matching RawQuestionItem so the
// output feeds straight into bank normalization.
type GeminiSource struct {
	client *genai.Client
	model  *genai.GenerativeModel
	logger *slog.Logger
}

func NewGeminiSource(ctx context.Context, apiKey string, logger *slog.Logger) (*GeminiSource, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(defaultGeminiModel)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"prompt": {
					Type:        genai.TypeString,
					Description: "The question text shown to the candidate",
				},
				"choices": {
					Type:        genai.TypeArray,
					Description: "Answer options; empty for free-text questions",
					Items:       &genai.Schema{Type: genai.TypeString},
				},
				"answer": {
					Type:        genai.TypeString,
					Description: "The correct choice text, or the expected free-text answer",
				},
			},
			Required: []string{"prompt", "answer"},
		},
	}

	return &GeminiSource{
		client: client,
		model:  model,
		logger: logger,
	}, nil
}

func (g *GeminiSource) GenerateQuestions(ctx context.Context, topic string, count int) ([]models.RawQuestionItem, error) {
	prompt := fmt.Sprintf(
		"Write %d exam questions on the topic %q. "+
			"Prefer multiple-choice questions with exactly 4 choices and one correct answer; "+
			"an occasional short free-text question (no choices) is fine. "+
			"The answer field must repeat the correct choice text verbatim.",
		count, topic)

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini generation failed: %w", err)
	}

	raw := extractText(resp)
	if raw == "" {
		return nil, fmt.Errorf("gemini returned an empty response")
	}

	var items []models.RawQuestionItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		g.logger.Error("Failed to decode generated questions", "error", err)
		return nil, fmt.Errorf("failed to decode generated questions: %w", err)
	}

	g.logger.Info("Generated questions", "topic", topic, "requested", count, "received", len(items))
	return items, nil
}

func (g *GeminiSource) Close() error {
	return g.client.Close()
}

func extractText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return strings.TrimSpace(sb.String())
}
