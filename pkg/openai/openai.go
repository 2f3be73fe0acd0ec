package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the OpenAI compatible endpoint of Gemini.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	// DefaultModel is the model used when none is configured.
	DefaultModel = "gemini-2.5-flash"
)

var ErrEmptyResponse = errors.New("openai: empty response")

type Config struct {
	Debug       bool
	BaseURL     string
	Model       string
	Temperature float32
	Client      *http.Client
	Logger      *zap.Logger
}

// Client sends chat completions to an OpenAI compatible API. The API key is
// given on every call so it can be resolved fresh each time.
type Client struct {
	debug       bool
	baseURL     string
	model       string
	temperature float32
	client      *http.Client
	log         *zap.Logger
}

func New(cfg *Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout: 2 * time.Minute,
		}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		debug:       cfg.Debug,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		model:       model,
		temperature: cfg.Temperature,
		client:      client,
		log:         log,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

func (c *Client) api(key string) *goopenai.Client {
	cfg := goopenai.DefaultConfig(key)
	cfg.BaseURL = c.baseURL
	cfg.HTTPClient = c.client
	return goopenai.NewClientWithConfig(cfg)
}

// ChatCompletion sends a single user message and returns the reply.
func (c *Client) ChatCompletion(ctx context.Context, key, msg string) (string, error) {
	return c.complete(ctx, key, goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: msg},
		},
	})
}

// JSONCompletion sends a system instruction and a user message asking for a
// JSON object reply. The raw reply is returned without decoding.
func (c *Client) JSONCompletion(ctx context.Context, key, system, user string) (string, error) {
	return c.complete(ctx, key, goopenai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: system},
			{Role: goopenai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
}

// Ping checks that the key is accepted by sending a trivial message.
func (c *Client) Ping(ctx context.Context, key string) error {
	if _, err := c.ChatCompletion(ctx, key, "Hi"); err != nil {
		return fmt.Errorf("openai: ping failed: %w", err)
	}
	return nil
}

func (c *Client) complete(ctx context.Context, key string, req goopenai.ChatCompletionRequest) (string, error) {
	start := time.Now()
	resp, err := c.api(key).CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai: couldn't create chat completion: %w", err)
	}
	if c.debug {
		c.log.Debug("openai: chat completion",
			zap.String("model", req.Model),
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
