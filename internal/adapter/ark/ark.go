// Package ark implements app.ModelClient against the Volcengine Ark
// OpenAI-compatible chat completions API.
package ark

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"prism/internal/app"

	"github.com/sashabaranov/go-openai"
)

// Config selects the endpoint and the model ids.
type Config struct {
	APIKey      string
	BaseURL     string
	ChatModel   string
	VisionModel string
	Timeout     time.Duration
}

// Client talks to the model service.
type Client struct {
	api         *openai.Client
	chatModel   string
	visionModel string
}

var _ app.ModelClient = (*Client)(nil)

// New builds a Client. The vision model falls back to the chat model.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ark: api key is required")
	}
	if cfg.ChatModel == "" {
		return nil, errors.New("ark: chat model is required")
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.ChatModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		api:         openai.NewClientWithConfig(oc),
		chatModel:   cfg.ChatModel,
		visionModel: cfg.VisionModel,
	}, nil
}

// Chat sends a text conversation.
func (c *Client) Chat(ctx context.Context, req app.CompletionRequest) (*app.Completion, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	return c.complete(ctx, c.chatModel, msgs, req)
}

// Vision sends one image with a text prompt.
func (c *Client) Vision(ctx context.Context, image []byte, mimeType, prompt string, req app.CompletionRequest) (*app.Completion, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))
	msgs := []openai.ChatCompletionMessage{{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
		},
	}}
	return c.complete(ctx, c.visionModel, msgs, req)
}

func (c *Client) complete(ctx context.Context, model string, msgs []openai.ChatCompletionMessage, req app.CompletionRequest) (*app.Completion, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("ark %s: %w", model, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("ark %s: empty response", model)
	}

	name := resp.Model
	if name == "" {
		name = model
	}
	return &app.Completion{
		Content:    resp.Choices[0].Message.Content,
		Model:      name,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}
