package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollamaapi "github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"taleweaver/internal/config"
	"taleweaver/internal/model"
)

// Cost constants for usage estimation (USD per 1M tokens).
const (
	pricePerMillionInputTokensUSD  = 0.1
	pricePerMillionOutputTokensUSD = 0.4
)

// GenerationParams are per-call sampling parameters. Pointers distinguish
// zero values from absent ones.
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// UsageInfo carries token accounting for one generation call.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	EstimatedCostUSD float64
}

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taleweaver_ai_requests_total",
			Help: "Total number of requests to the text generation API.",
		},
		[]string{"model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taleweaver_ai_request_duration_seconds",
			Help:    "Histogram of text generation request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
	aiTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taleweaver_ai_tokens_total",
			Help: "Total prompt and completion tokens consumed.",
		},
		[]string{"model", "kind"},
	)
)

// TextGenerator is the contract the pipeline requires from the generative
// text service.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt string, userInput string, params GenerationParams) (string, UsageInfo, error)
}

// NewTextGenerator builds the configured backend: an OpenAI-compatible
// endpoint or a local Ollama server.
func NewTextGenerator(cfg *config.Config, logger *zap.Logger) (TextGenerator, error) {
	switch cfg.AIBackend {
	case "openai":
		openaiConfig := openaigo.DefaultConfig(cfg.AIAPIKey)
		openaiConfig.BaseURL = cfg.AIBaseURL
		return &openAIClient{
			client: openaigo.NewClientWithConfig(openaiConfig),
			model:  cfg.AIModel,
			logger: logger.Named("OpenAIClient"),
		}, nil
	case "ollama":
		baseURL := strings.TrimSuffix(cfg.AIBaseURL, "/v1")
		baseURL = strings.TrimSuffix(baseURL, "/")
		parsedURL, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Ollama base URL %q: %w", baseURL, err)
		}
		return &ollamaClient{
			client:  ollamaapi.NewClient(parsedURL, &http.Client{Timeout: cfg.AITimeout}),
			model:   cfg.AIModel,
			timeout: cfg.AITimeout,
			logger:  logger.Named("OllamaClient"),
		}, nil
	default:
		return nil, fmt.Errorf("unknown AI backend: %s", cfg.AIBackend)
	}
}

// --- OpenAI-compatible client ---

type openAIClient struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

var _ TextGenerator = (*openAIClient)(nil)

func (c *openAIClient) GenerateText(ctx context.Context, systemPrompt string, userInput string, params GenerationParams) (string, UsageInfo, error) {
	usageInfo := UsageInfo{}

	if strings.TrimSpace(systemPrompt) == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: system prompt is empty", model.ErrGenerationFailed)
	}

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{
			Role:    openaigo.ChatMessageRoleUser,
			Content: userInput,
		})
	}

	startTime := time.Now()
	c.logger.Debug("Sending request to AI",
		zap.String("model", c.model),
		zap.Int("system_prompt_bytes", len(systemPrompt)),
		zap.Int("user_input_bytes", len(userInput)),
	)

	resp, err := c.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32Val(params.Temperature),
		MaxTokens:   intVal(params.MaxTokens),
		TopP:        float32Val(params.TopP),
	})

	duration := time.Since(startTime)

	if err != nil {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			return "", usageInfo, fmt.Errorf("%w: %v", model.ErrGenerationTimeout, err)
		}
		return "", usageInfo, fmt.Errorf("%w: %v", model.ErrGenerationFailed, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: received empty response", model.ErrGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())

	generatedText := resp.Choices[0].Message.Content

	if resp.Usage.TotalTokens > 0 {
		usageInfo.PromptTokens = resp.Usage.PromptTokens
		usageInfo.CompletionTokens = resp.Usage.CompletionTokens
		usageInfo.TotalTokens = resp.Usage.TotalTokens
	} else {
		// Some OpenAI-compatible gateways omit usage; estimate locally.
		usageInfo.PromptTokens = estimateTokens(systemPrompt + userInput)
		usageInfo.CompletionTokens = estimateTokens(generatedText)
		usageInfo.TotalTokens = usageInfo.PromptTokens + usageInfo.CompletionTokens
	}
	usageInfo.EstimatedCostUSD = calculateCost(usageInfo.PromptTokens, usageInfo.CompletionTokens)
	aiTokensTotal.With(prometheus.Labels{"model": c.model, "kind": "prompt"}).Add(float64(usageInfo.PromptTokens))
	aiTokensTotal.With(prometheus.Labels{"model": c.model, "kind": "completion"}).Add(float64(usageInfo.CompletionTokens))

	c.logger.Debug("AI response received",
		zap.Duration("duration", duration),
		zap.Int("response_chars", len(generatedText)),
		zap.Int("total_tokens", usageInfo.TotalTokens),
	)

	return generatedText, usageInfo, nil
}

// --- Ollama client ---

type ollamaClient struct {
	client  *ollamaapi.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

var _ TextGenerator = (*ollamaClient)(nil)

func (c *ollamaClient) GenerateText(ctx context.Context, systemPrompt string, userInput string, params GenerationParams) (string, UsageInfo, error) {
	usageInfo := UsageInfo{EstimatedCostUSD: 0} // local inference, no cost

	if strings.TrimSpace(systemPrompt) == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: system prompt is empty", model.ErrGenerationFailed)
	}

	messages := []ollamaapi.Message{
		{Role: "system", Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, ollamaapi.Message{Role: "user", Content: userInput})
	}

	req := &ollamaapi.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   func(b bool) *bool { return &b }(false),
		Options: map[string]interface{}{
			"temperature": params.Temperature,
			"top_p":       params.TopP,
			"num_predict": intVal(params.MaxTokens),
		},
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()

	var resp ollamaapi.ChatResponse
	err := c.client.Chat(requestCtx, req, func(r ollamaapi.ChatResponse) error {
		resp = r // keep the final (complete) response
		return nil
	})

	duration := time.Since(startTime)

	if err != nil {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			return "", usageInfo, fmt.Errorf("%w: %v", model.ErrGenerationTimeout, err)
		}
		return "", usageInfo, fmt.Errorf("%w: %v", model.ErrGenerationFailed, err)
	}

	if resp.Message.Content == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: received empty response", model.ErrGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())

	usageInfo.PromptTokens = resp.PromptEvalCount
	usageInfo.CompletionTokens = resp.EvalCount
	usageInfo.TotalTokens = resp.PromptEvalCount + resp.EvalCount
	aiTokensTotal.With(prometheus.Labels{"model": c.model, "kind": "prompt"}).Add(float64(usageInfo.PromptTokens))
	aiTokensTotal.With(prometheus.Labels{"model": c.model, "kind": "completion"}).Add(float64(usageInfo.CompletionTokens))

	c.logger.Debug("Ollama response received",
		zap.Duration("duration", duration),
		zap.Int("response_chars", len(resp.Message.Content)),
	)

	return resp.Message.Content, usageInfo, nil
}

// --- helpers ---

func calculateCost(promptTokens, completionTokens int) float64 {
	inputCost := float64(promptTokens) * pricePerMillionInputTokensUSD / 1_000_000.0
	outputCost := float64(completionTokens) * pricePerMillionOutputTokensUSD / 1_000_000.0
	return inputCost + outputCost
}

// estimateTokens counts tokens with the cl100k_base encoding, falling back
// to a character heuristic when the encoding is unavailable.
func estimateTokens(text string) int {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

func float32Val(f *float64) float32 {
	if f == nil {
		return 0
	}
	return float32(*f)
}

func intVal(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
