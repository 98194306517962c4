// Package bedrockmodel sends single-shot completions to an Anthropic model
// hosted on Amazon Bedrock.
package bedrockmodel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"healthcare-assistant/internal/usecase"
)

const (
	AgentType        = "bedrock-model"
	anthropicVersion = "bedrock-2023-05-31"
)

type runtimeAPI interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// messagesRequest is the Anthropic Messages body accepted by InvokeModel.
type messagesRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      float64   `json:"temperature"`
	System           string    `json:"system,omitempty"`
	Messages         []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Client implements usecase.ModelClient.
type Client struct {
	api runtimeAPI
}

func New(api runtimeAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("bedrockmodel: api must not be nil")
	}
	return &Client{api: api}, nil
}

func (c *Client) Complete(ctx context.Context, in usecase.Completion) (string, error) {
	if strings.TrimSpace(in.ModelID) == "" {
		return "", errors.New("bedrockmodel: model id must not be empty")
	}
	if in.MaxTokens <= 0 {
		return "", errors.New("bedrockmodel: max tokens must be positive")
	}

	body, err := json.Marshal(messagesRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        in.MaxTokens,
		Temperature:      in.Temperature,
		System:           in.System,
		Messages:         []message{{Role: "user", Content: in.Prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("bedrockmodel: marshal request: %w", err)
	}

	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(in.ModelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("bedrockmodel: invoke model: %w", err)
	}
	if out == nil || len(out.Body) == 0 {
		return "", errors.New("bedrockmodel: empty response body")
	}

	var payload messagesResponse
	if err := json.Unmarshal(out.Body, &payload); err != nil {
		return "", fmt.Errorf("bedrockmodel: decode response: %w", err)
	}
	var b strings.Builder
	for _, part := range payload.Content {
		if part.Type == "text" {
			b.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", errors.New("bedrockmodel: no text content in response")
	}
	return b.String(), nil
}
