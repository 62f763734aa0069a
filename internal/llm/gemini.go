package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Reason(ctx context.Context, call Call) (string, error) {
	config := &genai.GenerateContentConfig{}
	if call.Instruction != "" {
		config.SystemInstruction = genai.NewContentFromText(call.Instruction, genai.RoleUser)
	}
	if call.Structured {
		config.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(call.Content, genai.RoleUser)}, config)
	if err != nil {
		return "", fmt.Errorf("%s gemini call: %w", call.Role, err)
	}

	var out strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				out.WriteString(part.Text)
			}
			if out.Len() > 0 {
				break
			}
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("%s: %w", call.Role, ErrEmptyResponse)
	}
	return out.String(), nil
}
