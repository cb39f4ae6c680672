// Package verifier implements the proof verifier client for weekly missions.
// Proofs are judged by an LLM endpoint with an OpenAI-compatible chat API:
// the model answers SIM or NÃO followed by a short justification.
package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/upgrd-hub/progression-engine/internal/domain/mission"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
	"github.com/upgrd-hub/progression-engine/pkg/circuitbreaker"
	"github.com/upgrd-hub/progression-engine/pkg/logger"
	"github.com/upgrd-hub/progression-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidResponse is returned when the model's answer starts with
	// neither SIM nor NÃO. Matches shared.ErrVerifierInvalidResponse.
	ErrInvalidResponse = fmt.Errorf("%w: response is not a SIM/NÃO verdict",
		shared.ErrVerifierInvalidResponse)

	// ErrEmptyResponse is returned when the model returns no content.
	// Matches shared.ErrVerifierInvalidResponse.
	ErrEmptyResponse = fmt.Errorf("%w: empty response",
		shared.ErrVerifierInvalidResponse)
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the verifier client.
type ClientConfig struct {
	// BaseURL is the LLM endpoint base URL.
	BaseURL string

	// APIKey authenticates requests (Bearer token).
	APIKey string

	// Model is the model identifier sent with each request.
	Model string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// Retrier overrides the default retry policy (mainly for tests).
	Retrier *retry.Retrier

	// Breaker overrides the default circuit breaker (mainly for tests).
	Breaker *circuitbreaker.CircuitBreaker

	// Logger for structured logging.
	Logger *logger.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL: baseURL,
		Model:   "gpt-4o-mini",
		Timeout: 30 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client calls the LLM endpoint and translates its answer into a
// mission.Verdict. A returned error always means the verifier was
// unavailable or unintelligible, never a rejection: rejections come
// back as Verdict.Accepted == false.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
	log        *logger.Logger
}

// Compile-time interface check.
var _ mission.Verifier = (*Client)(nil)

// NewClient creates a new verifier client.
func NewClient(config ClientConfig) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Retrier == nil {
		config.Retrier = retry.VerifierRetrier()
	}
	if config.Logger == nil {
		config.Logger = logger.Default()
	}

	log := config.Logger.With(logger.Component("verifier"))
	if config.Breaker == nil {
		config.Breaker = circuitbreaker.VerifierBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		})
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		retrier:    config.Retrier,
		breaker:    config.Breaker,
		log:        log,
	}
}

// Verify asks the model whether the proof satisfies the mission's
// requirements.
func (c *Client) Verify(ctx context.Context, m *mission.Mission, proof string) (*mission.Verdict, error) {
	if m == nil {
		return nil, fmt.Errorf("verifier: mission cannot be nil")
	}

	var content string
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			var attemptErr error
			content, attemptErr = c.complete(ctx, m, proof)
			return attemptErr
		})
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", shared.ErrVerifierTimeout, err)
		}
		return nil, err
	}

	verdict, err := parseVerdict(content)
	if err != nil {
		c.log.Warn("unparseable verdict",
			logger.MissionID(m.ID.String()), logger.Err(err))
		return nil, err
	}

	c.log.Info("proof verified",
		logger.MissionID(m.ID.String()),
		logger.Bool("accepted", verdict.Accepted))
	return verdict, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Wire format
// ─────────────────────────────────────────────────────────────────────────────

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const systemPrompt = `Você é o verificador de missões da plataforma UPGRD.
O usuário enviará o nome de uma missão, os critérios de aceitação e a prova
apresentada. Responda exatamente SIM se a prova atende aos critérios, ou NÃO
caso contrário, seguido de uma justificativa curta de uma frase.`

func buildUserPrompt(m *mission.Mission, proof string) string {
	var b strings.Builder
	b.WriteString("Missão: ")
	b.WriteString(m.Name)
	b.WriteString("\nCritérios: ")
	b.WriteString(m.Requirements)
	b.WriteString("\nProva apresentada:\n")
	b.WriteString(proof)
	return b.String()
}

// complete performs a single chat-completion request and returns the
// model's raw answer. Transient failures are wrapped as retryable.
func (c *Client) complete(ctx context.Context, m *mission.Mission, proof string) (string, error) {
	reqBody := chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(m, proof)},
		},
		Temperature: 0,
		MaxTokens:   200,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	fullURL := strings.TrimRight(c.config.BaseURL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", retry.Retryable(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", retry.Retryable(fmt.Errorf("verifier endpoint status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return "", fmt.Errorf("verifier endpoint status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return parsed.Choices[0].Message.Content, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Verdict parsing
// ─────────────────────────────────────────────────────────────────────────────

// parseVerdict maps the model's free-text answer onto a verdict.
// The answer must start with SIM or NÃO; everything after the token
// becomes the verifier note.
func parseVerdict(content string) (*mission.Verdict, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, ErrEmptyResponse
	}

	upper := strings.ToUpper(trimmed)
	switch {
	case strings.HasPrefix(upper, "SIM"):
		return &mission.Verdict{Accepted: true, Note: verdictNote(trimmed, len("SIM"))}, nil
	case strings.HasPrefix(upper, "NÃO"):
		return &mission.Verdict{Accepted: false, Note: verdictNote(trimmed, len("NÃO"))}, nil
	case strings.HasPrefix(upper, "NAO"):
		return &mission.Verdict{Accepted: false, Note: verdictNote(trimmed, len("NAO"))}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidResponse, truncate(trimmed, 80))
}

// verdictNote strips the verdict token and leading punctuation,
// leaving only the justification text.
func verdictNote(content string, tokenLen int) string {
	rest := content[tokenLen:]
	return strings.TrimLeft(rest, " \t\n.,:;-—")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
