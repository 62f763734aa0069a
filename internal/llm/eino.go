package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"
)

// Generator is the part of an eino chat model the adapter needs.
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message) (*schema.Message, error)
}

type generatorFunc func(ctx context.Context, input []*schema.Message) (*schema.Message, error)

func (f generatorFunc) Generate(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
	return f(ctx, input)
}

// Eino drives an eino chat model.
type Eino struct {
	model Generator
}

func NewEino(g Generator) *Eino {
	return &Eino{model: g}
}

func (e *Eino) Reason(ctx context.Context, call Call) (string, error) {
	input := []*schema.Message{
		schema.SystemMessage(call.Instruction),
		schema.UserMessage(call.Content),
	}
	msg, err := e.model.Generate(ctx, input)
	if err != nil {
		return "", fmt.Errorf("%s generate: %w", call.Role, err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", fmt.Errorf("%s: %w", call.Role, ErrEmptyResponse)
	}
	return msg.Content, nil
}

// NewOpenAI builds an OpenAI-compatible chat model. An empty baseURL uses
// the provider default.
func NewOpenAI(ctx context.Context, apiKey, baseURL, modelName string, maxTokens int) (*Eino, error) {
	cfg := &openai.ChatModelConfig{
		APIKey: apiKey,
		Model:  modelName,
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if maxTokens > 0 {
		cfg.MaxTokens = &maxTokens
	}
	cm, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create openai model: %w", err)
	}
	return NewEino(generatorFunc(func(ctx context.Context, in []*schema.Message) (*schema.Message, error) {
		return cm.Generate(ctx, in)
	})), nil
}

func NewDeepSeek(ctx context.Context, apiKey, modelName string, maxTokens int) (*Eino, error) {
	cm, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
		APIKey:    apiKey,
		Model:     modelName,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create deepseek model: %w", err)
	}
	return NewEino(generatorFunc(func(ctx context.Context, in []*schema.Message) (*schema.Message, error) {
		return cm.Generate(ctx, in)
	})), nil
}
