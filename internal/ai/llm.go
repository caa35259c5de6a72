// Package ai talks to a language model to summarize articles and answer
// questions about them.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/newsbrief/newsbrief/internal/config"
	"github.com/newsbrief/newsbrief/internal/types"
)

// Provider specifies which LLM backend to use.
type Provider string

const (
	ProviderOpenRouter Provider = "openrouter"
	ProviderOpenAI     Provider = "openai"
	ProviderOllama     Provider = "ollama"
	ProviderCustom     Provider = "custom"
)

const (
	defaultOpenRouterEndpoint = "https://openrouter.ai/api/v1/chat/completions"
	defaultOpenAIEndpoint     = "https://api.openai.com/v1/chat/completions"
	defaultOllamaEndpoint     = "http://localhost:11434"
)

// Input validation errors. Callers usually check input before calling and
// only see these on programming mistakes.
var (
	ErrNoText          = errors.New("no text provided for summarization")
	ErrMissingQuestion = errors.New("both context and a question are required")
)

const (
	summaryPrompt = "Please provide a concise summary of the following news article:\n\n%s\n\nSummary:"
	chatPrompt    = "Based on the following article content, answer the question:\n\nArticle: %s\n\nQuestion: %s\n\nAnswer:"
)

// Client communicates with an LLM.
type Client struct {
	cfg    config.AIConfig
	client *http.Client
	logger *slog.Logger
}

// NewClient creates a new LLM client. The request timeout comes from
// cfg.Timeout.
func NewClient(cfg config.AIConfig, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With("component", "llm_client", "provider", cfg.Provider),
	}
}

// Configured reports whether the client has what it needs to make calls.
// Hosted providers need an API key; Ollama and custom endpoints do not.
func (c *Client) Configured() bool {
	switch Provider(c.cfg.Provider) {
	case ProviderOllama:
		return true
	case ProviderCustom:
		return c.cfg.Endpoint != ""
	default:
		return c.cfg.APIKey != ""
	}
}

// Summarize returns a concise summary of text.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoText
	}
	out, err := c.Generate(ctx, fmt.Sprintf(summaryPrompt, c.clip(text)))
	if err != nil {
		return "", fmt.Errorf("summarize text: %w", err)
	}
	return out, nil
}

// Chat answers question using article as its only context.
func (c *Client) Chat(ctx context.Context, article, question string) (string, error) {
	article = strings.TrimSpace(article)
	question = strings.TrimSpace(question)
	if article == "" || question == "" {
		return "", ErrMissingQuestion
	}
	out, err := c.Generate(ctx, fmt.Sprintf(chatPrompt, c.clip(article), question))
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	return out, nil
}

// Generate sends a prompt to the LLM and returns the trimmed response.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.Configured() {
		return "", types.ErrAINotConfigured
	}

	var (
		out string
		err error
	)
	switch Provider(c.cfg.Provider) {
	case ProviderOpenRouter, "":
		out, err = c.generateChat(ctx, prompt, c.endpoint(defaultOpenRouterEndpoint), string(ProviderOpenRouter))
	case ProviderOpenAI:
		out, err = c.generateChat(ctx, prompt, c.endpoint(defaultOpenAIEndpoint), string(ProviderOpenAI))
	case ProviderOllama:
		out, err = c.generateOllama(ctx, prompt)
	case ProviderCustom:
		out, err = c.generateCustom(ctx, prompt)
	default:
		return "", fmt.Errorf("unsupported LLM provider: %s", c.cfg.Provider)
	}
	if err != nil {
		c.logger.Warn("llm request failed", "error", err)
		return "", err
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", &types.UpstreamError{Service: c.cfg.Provider, Err: types.ErrEmptyResponse}
	}
	return out, nil
}

func (c *Client) endpoint(fallback string) string {
	if c.cfg.Endpoint != "" {
		return c.cfg.Endpoint
	}
	return fallback
}

// clip bounds the prompt input to MaxInput runes.
func (c *Client) clip(s string) string {
	if c.cfg.MaxInput <= 0 || utf8.RuneCountInString(s) <= c.cfg.MaxInput {
		return s
	}
	return string([]rune(s)[:c.cfg.MaxInput])
}

// generateChat speaks the OpenAI chat-completions dialect shared by
// OpenRouter, OpenAI and Gemini's compatibility endpoint.
func (c *Client) generateChat(ctx context.Context, prompt, endpoint, service string) (string, error) {
	payload := map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	if c.cfg.MaxTokens > 0 {
		payload["max_tokens"] = c.cfg.MaxTokens
	}
	if c.cfg.Temperature > 0 {
		payload["temperature"] = c.cfg.Temperature
	}

	respBody, err := c.post(ctx, endpoint, payload, service)
	if err != nil {
		return "", err
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &types.UpstreamError{Service: service, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(result.Choices) == 0 {
		return "", &types.UpstreamError{Service: service, Err: errors.New("unexpected response: no choices")}
	}
	return result.Choices[0].Message.Content, nil
}

func (c *Client) generateOllama(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":  c.cfg.Model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": c.cfg.Temperature,
			"num_predict": c.cfg.MaxTokens,
		},
	}

	endpoint := strings.TrimSuffix(c.endpoint(defaultOllamaEndpoint), "/") + "/api/generate"
	respBody, err := c.post(ctx, endpoint, payload, string(ProviderOllama))
	if err != nil {
		return "", err
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &types.UpstreamError{Service: string(ProviderOllama), Err: fmt.Errorf("decode response: %w", err)}
	}
	return result.Response, nil
}

// generateCustom posts {prompt, model} and treats the raw body as the answer.
func (c *Client) generateCustom(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"prompt": prompt,
		"model":  c.cfg.Model,
	}
	respBody, err := c.post(ctx, c.cfg.Endpoint, payload, string(ProviderCustom))
	if err != nil {
		return "", err
	}
	return string(respBody), nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, service string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &types.UpstreamError{Service: service, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &types.UpstreamError{Service: service, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(respBody))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, &types.UpstreamError{Service: service, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}
	return respBody, nil
}
