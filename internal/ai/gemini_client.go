package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"mediscan-backend/internal/faults"
	"mediscan-backend/internal/logger"
)

// GeminiClient wraps the Generative AI SDK with a circuit breaker, a
// client-side rate limiter and token accounting. One client is shared by
// the analysis and chat paths; they differ only in model name and prompt.
type GeminiClient struct {
	apiKey       string
	breaker      *gobreaker.CircuitBreaker
	rateLimiter  *rate.Limiter
	tokenCounter *TokenCounter
	client       *genai.Client
	tier         string
	limits       RateLimits
}

type TokenCounter struct {
	mu              sync.Mutex
	limits          RateLimits
	minuteTokens    int
	dailyTokens     int
	minuteRequests  int
	dailyRequests   int
	lastMinuteReset time.Time
	lastDayReset    time.Time
}

type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

func NewGeminiClient(apiKey string, tier string) (*GeminiClient, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, faults.Wrap(faults.DependencyUnavailable, err, "AI model initialization failed")
	}

	// Configure rate limits based on tier
	limits := getRateLimits(tier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	// RPM limit with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), max(limits.RPM/10, 1))

	return &GeminiClient{
		apiKey:       apiKey,
		breaker:      breaker,
		rateLimiter:  rateLimiter,
		tokenCounter: &TokenCounter{limits: limits},
		client:       client,
		tier:         tier,
		limits:       limits,
	}, nil
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "free":
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

// GenerateText sends a single-turn prompt to the named model and returns
// the generated text. Safety blocks and provider failures come back as
// typed faults so callers can react without inspecting SDK types.
func (gc *GeminiClient) GenerateText(ctx context.Context, modelName, prompt string) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.generate_content")
	defer span.End()

	estimatedTokens := estimateTokens(prompt)
	span.SetAttributes(
		attribute.Int("gemini.estimated_tokens", estimatedTokens),
		attribute.String("gemini.model", modelName),
	)

	if !gc.tokenCounter.CanConsume(estimatedTokens, 1) {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", faults.New(faults.ProviderError, "rate limit exceeded, wait before retry")
	}

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", faults.Wrap(faults.ProviderError, err, "request cancelled while rate limited")
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.GenerativeModel(modelName)
		model.SetTemperature(0.7)
		model.SetMaxOutputTokens(4096)

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			span.SetAttributes(attribute.Bool("gemini.error", true))
			span.SetAttributes(attribute.String("gemini.error_message", err.Error()))
			return nil, err
		}

		actualTokens := extractTokenUsage(resp)
		gc.tokenCounter.RecordUsage(actualTokens, 1)
		span.SetAttributes(attribute.Int("gemini.actual_tokens", actualTokens))

		return resp, nil
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
			return "", faults.Wrap(faults.ProviderError, err, "AI service is experiencing high demand, try again shortly")
		}
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return "", classifyProviderError(err)
	}

	resp := result.(*genai.GenerateContentResponse)

	// Prompt-level block: no candidates at all, feedback carries the reason.
	if len(resp.Candidates) == 0 {
		reason := "unspecified"
		if resp.PromptFeedback != nil {
			reason = resp.PromptFeedback.BlockReason.String()
		}
		span.SetAttributes(attribute.String("gemini.blocked_reason", reason))
		return "", faults.New(faults.ContentBlocked, "prompt blocked: %s", reason)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		span.SetAttributes(attribute.String("gemini.blocked_reason", "safety"))
		return "", faults.New(faults.ContentBlocked, "response blocked by safety filters")
	}

	text := collectText(candidate)
	if text == "" {
		return "", faults.New(faults.ProviderError, "model returned an empty response")
	}

	span.SetAttributes(attribute.Bool("gemini.success", true))
	return text, nil
}

// classifyProviderError maps SDK failures onto fault kinds by message
// inspection. The SDK does not export error types for these cases.
func classifyProviderError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "quota") || strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "429"):
		return faults.Wrap(faults.ProviderError, err, "AI provider quota exhausted")
	case strings.Contains(msg, "deadline") || strings.Contains(msg, "timeout"):
		return faults.Wrap(faults.ProviderError, err, "AI provider request timed out")
	case strings.Contains(msg, "api key") || strings.Contains(msg, "permission") || strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		return faults.Wrap(faults.ProviderError, err, "AI provider rejected credentials")
	default:
		return faults.Wrap(faults.ProviderError, err, "AI provider request failed")
	}
}

func collectText(candidate *genai.Candidate) string {
	if candidate.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}

func (tc *TokenCounter) CanConsume(tokens, requests int) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	now := time.Now()

	// Reset counters if time windows expired
	if now.Sub(tc.lastMinuteReset) >= time.Minute {
		tc.minuteTokens = 0
		tc.minuteRequests = 0
		tc.lastMinuteReset = now
	}

	if now.Sub(tc.lastDayReset) >= 24*time.Hour {
		tc.dailyTokens = 0
		tc.dailyRequests = 0
		tc.lastDayReset = now
	}

	if tc.minuteRequests+requests > tc.limits.RPM {
		return false
	}
	if tc.minuteTokens+tokens > tc.limits.TPM {
		return false
	}
	if tc.dailyRequests+requests > tc.limits.RPD {
		return false
	}

	return true
}

func (tc *TokenCounter) RecordUsage(tokens, requests int) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.minuteTokens += tokens
	tc.minuteRequests += requests
	tc.dailyTokens += tokens
	tc.dailyRequests += requests
}

// Rough estimation, 1 token is about 4 characters for Gemini.
func estimateTokens(prompt string) int {
	estimated := len(prompt) / 4
	if estimated < 1 {
		estimated = 1
	}
	return estimated
}

func extractTokenUsage(resp *genai.GenerateContentResponse) int {
	if resp.UsageMetadata != nil {
		return int(resp.UsageMetadata.TotalTokenCount)
	}

	totalText := ""
	for _, candidate := range resp.Candidates {
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					totalText += string(text)
				}
			}
		}
	}

	estimated := len(totalText) / 4
	if estimated < 1 {
		estimated = 1
	}
	return estimated
}

// Close the client
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
