package gemini

import (
	"context"
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

func TestGenerationConfig(t *testing.T) {
	cfg := generationConfig(domain.GenerateOptions{Temperature: 0.1, MaxTokens: 2048}, 0.95, 40)
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.1, *cfg.Temperature, 1e-6)
	require.NotNil(t, cfg.MaxOutputTokens)
	assert.Equal(t, int32(2048), *cfg.MaxOutputTokens)
	require.NotNil(t, cfg.TopP)
	require.NotNil(t, cfg.TopK)
	assert.Equal(t, int32(40), *cfg.TopK)

	bare := generationConfig(domain.GenerateOptions{}, 0, 0)
	assert.Nil(t, bare.MaxOutputTokens)
	assert.Nil(t, bare.TopP)
	assert.Nil(t, bare.TopK)
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Revenue was "), genai.Text("$5M.\n")}},
		}},
	}
	assert.Equal(t, "Revenue was $5M.", responseText(resp))
	assert.Empty(t, responseText(nil))
	assert.Empty(t, responseText(&genai.GenerateContentResponse{}))
	assert.Empty(t, responseText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}))
}

func TestNewClient_RequiresProjectAndRegion(t *testing.T) {
	_, err := NewClient(context.Background(), Config{Region: "us-central1"})
	assert.Error(t, err)
	_, err = NewClient(context.Background(), Config{ProjectID: "p"})
	assert.Error(t, err)
}
