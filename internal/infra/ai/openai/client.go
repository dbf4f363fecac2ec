package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/sketch2sys/internal/domain/sketch"
	"github.com/bryanwahyu/sketch2sys/internal/infra/ai/prompt"
)

const (
	maxTokens    = 4096
	defaultModel = "gpt-4o"
)

// Client calls an OpenAI compatible chat completion endpoint with the sketch
// image and a strict JSON schema.
type Client struct {
	*openai.Client
	Model  string
	Detail openai.ImageURLDetail
}

// NewClient builds a client; baseURL may be empty for api.openai.com.
func NewClient(apiKey, baseURL, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &Client{Client: openai.NewClientWithConfig(cfg), Model: model, Detail: openai.ImageURLDetailHigh}
}

// ModelName returns the model identifier sent with every request
func (c *Client) ModelName() string {
	if c.Model == "" {
		return defaultModel
	}
	return c.Model
}

func (c *Client) Analyze(ctx context.Context, file *sketch.File) (sketch.AnalysisResult, error) {
	if file == nil || len(file.Data) == 0 {
		return sketch.AnalysisResult{}, fmt.Errorf("empty sketch file")
	}
	_, dataURL := prompt.EncodeImage(file.Data, file.MediaType)

	model := c.ModelName()
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   prompt.SchemaName,
				Schema: prompt.Schema(),
				Strict: true,
			},
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: c.Detail},
					},
					{Type: openai.ChatMessagePartTypeText, Text: prompt.GetUserPrompt()},
				},
			},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return sketch.AnalysisResult{}, serviceError(err)
	}
	if len(resp.Choices) == 0 {
		return sketch.AnalysisResult{}, sketch.ErrNoResponse
	}

	return prompt.DecodeAnalysis(resp.Choices[0].Message.Content)
}

func serviceError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &sketch.ServiceError{StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &sketch.ServiceError{StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return &sketch.ServiceError{Err: err}
}
