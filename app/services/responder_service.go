package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kitsune-chat/Kitsune/models"
)

// ResponderService generates in-character persona replies to fan messages
type ResponderService interface {
	Generate(ctx context.Context, persona *models.Persona, fan *models.Fan, recentMessages []*models.Message, summary, userMessage string) (*PersonaReply, error)
}

// PersonaReply is a generated reply in the persona's voice
type PersonaReply struct {
	Text             string   `json:"text"`
	SuggestedActions []string `json:"suggested_actions,omitempty"`
}

// ResponderConfig holds configuration for the OpenAI-compatible responder backend
type ResponderConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	HTTPClient  *http.Client
}

// ResponderServiceImpl implements ResponderService against any
// chat-completions compatible HTTP endpoint
type ResponderServiceImpl struct {
	cfg ResponderConfig
}

// NewResponderService creates a responder backed by an OpenAI-compatible API
func NewResponderService(cfg ResponderConfig) ResponderService {
	if cfg.HTTPClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 400 * time.Millisecond
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &ResponderServiceImpl{cfg: cfg}
}

// Generate produces a persona reply for the fan's message
func (s *ResponderServiceImpl) Generate(ctx context.Context, persona *models.Persona, fan *models.Fan, recentMessages []*models.Message, summary, userMessage string) (*PersonaReply, error) {
	endpointURL, err := s.buildEndpointURL()
	if err != nil {
		return nil, err
	}

	body, err := s.buildPayload(persona, fan, recentMessages, summary, userMessage)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		text, retry, err := s.callOnce(ctx, endpointURL, body)
		if err == nil {
			return &PersonaReply{Text: text}, nil
		}
		lastErr = err
		if !retry || attempt == s.cfg.MaxRetries {
			break
		}
		backoff := s.cfg.BackoffBase * (1 << attempt)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, lastErr
}

func (s *ResponderServiceImpl) buildPayload(persona *models.Persona, fan *models.Fan, recentMessages []*models.Message, summary, userMessage string) ([]byte, error) {
	messages := []map[string]string{
		{"role": "system", "content": buildSystemPrompt(persona, fan, summary)},
	}

	for _, msg := range recentMessages {
		role := "assistant"
		if msg.IsFromFan() {
			role = "user"
		}
		messages = append(messages, map[string]string{"role": role, "content": msg.Content})
	}

	messages = append(messages, map[string]string{"role": "user", "content": userMessage})

	payload := map[string]any{
		"model":    s.cfg.Model,
		"messages": messages,
	}
	if s.cfg.MaxTokens > 0 {
		payload["max_tokens"] = s.cfg.MaxTokens
	}
	if s.cfg.Temperature > 0 {
		payload["temperature"] = s.cfg.Temperature
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal chat completion payload: %w", err)
	}
	return b, nil
}

// buildSystemPrompt assembles the persona voice prompt together with the
// conversation summary and the fan's standing boundaries
func buildSystemPrompt(persona *models.Persona, fan *models.Fan, summary string) string {
	var sb strings.Builder
	sb.WriteString(persona.VoicePrompt)

	if persona.DisclosureText != "" {
		sb.WriteString("\n\nDisclosure you must honor: ")
		sb.WriteString(persona.DisclosureText)
	}
	if len(persona.AllowedTopics) > 0 {
		sb.WriteString("\nAllowed topics: ")
		sb.WriteString(strings.Join(persona.AllowedTopics, ", "))
	}
	if len(persona.ForbiddenTopics) > 0 {
		sb.WriteString("\nForbidden topics: ")
		sb.WriteString(strings.Join(persona.ForbiddenTopics, ", "))
	}
	if len(fan.Boundaries) > 0 {
		sb.WriteString("\nThis fan has set the following boundaries, respect them: ")
		sb.WriteString(strings.Join(fan.Boundaries, ", "))
	}
	if fan.SpendTierAtLeast(models.SpendTierPremium) {
		sb.WriteString("\nThis fan is a premium subscriber; be especially attentive.")
	}
	if strings.TrimSpace(summary) != "" {
		sb.WriteString("\n\nConversation so far: ")
		sb.WriteString(summary)
	}

	return sb.String()
}

func (s *ResponderServiceImpl) callOnce(ctx context.Context, endpointURL string, body []byte) (text string, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(s.cfg.APIKey) != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", false, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return "", true, fmt.Errorf("responder temporary status %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", false, fmt.Errorf("responder status %d", resp.StatusCode)
	}

	text, err = parseChatCompletions(respBody)
	if err != nil {
		return "", false, err
	}
	return text, false, nil
}

func (s *ResponderServiceImpl) buildEndpointURL() (string, error) {
	base := strings.TrimSpace(s.cfg.BaseURL)
	if base == "" {
		return "", fmt.Errorf("responder base url is empty")
	}
	if strings.HasSuffix(base, "/chat/completions") {
		return base, nil
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse responder base url: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/chat/completions"
	return u.String(), nil
}

func parseChatCompletions(body []byte) (string, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty choices in chat completion response")
	}
	if strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("missing message content in chat completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

// MockResponderService is a mock implementation for testing
type MockResponderService struct {
	GeneratedReplies []string
	Reply            *PersonaReply
	Err              error
	FailCount        int
	calls            int
}

// Generate returns the configured reply or error, failing FailCount times first
func (m *MockResponderService) Generate(_ context.Context, _ *models.Persona, _ *models.Fan, _ []*models.Message, _, userMessage string) (*PersonaReply, error) {
	m.calls++
	if m.FailCount > 0 && m.calls <= m.FailCount {
		return nil, fmt.Errorf("mock responder failure")
	}
	if m.Err != nil {
		return nil, m.Err
	}
	m.GeneratedReplies = append(m.GeneratedReplies, userMessage)
	if m.Reply != nil {
		return m.Reply, nil
	}
	return &PersonaReply{Text: "mock reply"}, nil
}

// Calls returns how many times Generate was invoked
func (m *MockResponderService) Calls() int {
	return m.calls
}
