package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
)

const (
	geminiModelName = "gemini-2.0-flash"
	// Upper bound on one completion call; the resolver's headroom check
	// assumes calls cannot run longer than this.
	completionTimeout = 8 * time.Second
)

// GeminiCompleter satisfies Completer using the Gemini API, configured for
// deterministic strict-JSON output
type GeminiCompleter struct {
	model *genai.GenerativeModel
}

// NewGeminiCompleter creates a completer from an initialized genai client
func NewGeminiCompleter(client *genai.Client) *GeminiCompleter {
	model := client.GenerativeModel(geminiModelName)
	model.SetTemperature(0.1)
	model.ResponseMIMEType = "application/json"
	return &GeminiCompleter{model: model}
}

// Complete sends the prompt and returns the concatenated text of the first
// candidate. Empty or blocked responses are errors; the caller decides how
// to degrade.
func (g *GeminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	resp, err := g.model.GenerateContent(callCtx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("completion returned no candidates")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", errors.New("completion returned no text")
	}
	return b.String(), nil
}
