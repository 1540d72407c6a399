// Package llm adapts Gemini to the reply-assist endpoint: an operator asks
// for a short in-character message and gets back plain text to paste into the
// chat window.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/novaops/nova-control/internal/core"
)

const defaultModel = "gemini-1.5-flash"

// replySystem keeps the model in character. The output goes straight into a
// conversation, so no assistant-speak and no markdown.
const replySystem = "You write short, warm, natural-sounding replies for a dating-site conversation. " +
	"Stay in character as the woman whose profile context is given. " +
	"Answer with the message text only, no markdown, no preamble. " +
	"Never mention being an assistant."

// ReplyPrompt assembles the prompts for one assisted reply. profileNote and
// history may be empty; task alone is a valid request, since an opener has no
// conversation yet.
func ReplyPrompt(profileNote, history, task string) (system, user string) {
	if profileNote == "" && history == "" {
		return replySystem, task
	}
	var b strings.Builder
	if profileNote != "" {
		fmt.Fprintf(&b, "Profile context: %s\n\n", profileNote)
	}
	if history != "" {
		fmt.Fprintf(&b, "Conversation so far:\n%s\n\n", history)
	}
	fmt.Fprintf(&b, "Task: %s", task)
	return replySystem, b.String()
}

type GeminiLLM struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiLLM(ctx context.Context, apiKey, modelName string) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = defaultModel
	}
	m := cl.GenerativeModel(modelName)
	// replies are a few sentences; a warmer temperature keeps them from
	// sounding canned
	m.SetTemperature(0.9)
	m.SetTopP(0.95)
	m.SetMaxOutputTokens(256)
	return &GeminiLLM{client: cl, model: m}, nil
}

func (g *GeminiLLM) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m := g.model
	if systemPrompt != "" {
		// SystemInstruction lives on the model; work on a copy so concurrent
		// requests with different prompts don't race.
		clone := *g.model
		clone.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
		m = &clone
	}

	resp, err := m.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return collectText(resp), nil
}

func collectText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String())
}

var _ core.LLMProvider = (*GeminiLLM)(nil)
