package quizgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/avast/retry-go"
)

// LLMClient is the interface both generator implementations satisfy.
type LLMClient interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error)
}

// LLMResponse holds the raw response content and token usage.
type LLMResponse struct {
	Content      string
	PromptTokens int
	OutputTokens int
}

// ── APIClient: Anthropic SDK ─────────────────

type APIClient struct {
	client     *anthropic.Client
	model      string
	maxRetries uint
	retryDelay time.Duration
	logger     *slog.Logger
}

func NewAPIClient(apiKey, model string, maxRetries uint, logger *slog.Logger) *APIClient {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)
	return &APIClient{
		client:     &client,
		model:      model,
		maxRetries: maxRetries,
		retryDelay: time.Second,
		logger:     logger,
	}
}

func (c *APIClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   8192,
		Temperature: param.NewOpt(0.7),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}

	message, err := c.callWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}

	if responseText == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return &LLMResponse{
		Content:      responseText,
		PromptTokens: int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}, nil
}

func (c *APIClient) callWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	var message *anthropic.Message
	err := retry.Do(
		func() error {
			m, err := c.client.Messages.New(ctx, params)
			if err != nil {
				if !isRetryable(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			message = m
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.maxRetries+1),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.WarnContext(ctx, "anthropic API call failed, retrying", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("anthropic API failed after retries: %w", err)
	}
	return message, nil
}

// isRetryable treats rate limits, overload and server errors as transient.
func isRetryable(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return true
		case apiErr.StatusCode >= http.StatusInternalServerError:
			return true
		default:
			return false
		}
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// ── MockClient: local development ─────────────────────────

type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

// Generate returns a well-formed quiz built from the words of the prompt.
func (m *MockClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	questions, flashcards := requestedCounts(userPrompt)
	return &LLMResponse{
		Content:      buildMockJSON(keywords(userPrompt), questions, flashcards),
		PromptTokens: len(strings.Fields(systemPrompt + " " + userPrompt)),
		OutputTokens: 50 * (questions + flashcards),
	}, nil
}

func buildMockJSON(topics []string, questionCount, flashcardCount int) string {
	if len(topics) == 0 {
		topics = []string{"the material"}
	}

	var b strings.Builder
	b.WriteString(`{"questions":[`)
	for i := 0; i < questionCount; i++ {
		topic := topics[i%len(topics)]
		correct := i % 4
		if i > 0 {
			b.WriteString(",")
		}
		choices := make([]string, 4)
		for j := range choices {
			label := "unrelated to"
			if j == correct {
				label = "the key idea of"
			}
			choices[j] = fmt.Sprintf(`"[Mock] Option %d is %s %s"`, j+1, label, topic)
		}
		fmt.Fprintf(&b, `{"question":"[Mock] Question %d: what does the material say about %s?","choices":[%s],"correct_index":%d,"explanation":"[Mock] Option %d restates the key idea of %s."}`,
			i+1, topic, strings.Join(choices, ","), correct, correct+1, topic)
	}
	b.WriteString(`],"flashcards":[`)
	for i := 0; i < flashcardCount; i++ {
		topic := topics[i%len(topics)]
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"front":"[Mock] %s","back":"[Mock] A short definition of %s from the material."}`, topic, topic)
	}
	b.WriteString(`]}`)
	return b.String()
}

// keywords picks distinct longer words from the material section of the prompt.
func keywords(prompt string) []string {
	if i := strings.Index(prompt, materialMarker); i >= 0 {
		prompt = prompt[i+len(materialMarker):]
	}

	seen := make(map[string]bool)
	var words []string
	for _, w := range strings.Fields(strings.ToLower(prompt)) {
		w = strings.Trim(w, `.,;:!?()[]{}"'`)
		if len(w) < 6 || seen[w] || strings.ContainsAny(w, `\"`) {
			continue
		}
		seen[w] = true
		words = append(words, w)
		if len(words) == 10 {
			break
		}
	}
	return words
}
