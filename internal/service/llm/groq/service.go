package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/KNICEX/crypto-alert/internal/service/llm"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.1-8b-instant"
)

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature *float32  `json:"temperature,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// APIError 上游返回的非 2xx 或 error 字段
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("groq: status %d: %s", e.StatusCode, e.Message)
}

// Service OpenAI 兼容的 chat/completions 接口
type Service struct {
	apiKey       string
	baseURL      string
	model        string
	systemPrompt string
	temperature  *float32
	client       *http.Client
}

type Option func(s *Service)

func WithBaseURL(u string) Option {
	return func(s *Service) {
		if u != "" {
			s.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithModel(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.model = name
		}
	}
}

func WithSystemPrompt(prompt string) Option {
	return func(s *Service) {
		s.systemPrompt = prompt
	}
}

func WithTemperature(temp float32) Option {
	return func(s *Service) {
		s.temperature = &temp
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.client.Timeout = d
	}
}

func NewService(apiKey string, opts ...Option) llm.Service {
	svc := &Service{
		apiKey:       apiKey,
		baseURL:      DefaultBaseURL,
		model:        DefaultModel,
		systemPrompt: "You are a helpful AI assistant.",
		client:       &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *Service) AskOnce(ctx context.Context, q llm.Question) (llm.Answer, error) {
	if strings.TrimSpace(q.Content) == "" {
		return llm.Answer{}, llm.ErrEmptyPrompt
	}
	ans, _, err := s.complete(ctx, s.history(), q.Content)
	return ans, err
}

func (s *Service) BeginChat(ctx context.Context) (llm.Session, error) {
	if s.apiKey == "" {
		return nil, llm.ErrMissingKey
	}
	return &Session{svc: s, messages: s.history()}, nil
}

func (s *Service) history() []message {
	if s.systemPrompt == "" {
		return nil
	}
	return []message{{Role: "system", Content: s.systemPrompt}}
}

func (s *Service) complete(ctx context.Context, history []message, prompt string) (llm.Answer, message, error) {
	if s.apiKey == "" {
		return llm.Answer{}, message{}, llm.ErrMissingKey
	}

	messages := append(append([]message{}, history...), message{Role: "user", Content: prompt})
	payload, err := json.Marshal(completionRequest{
		Model:       s.model,
		Messages:    messages,
		Temperature: s.temperature,
	})
	if err != nil {
		return llm.Answer{}, message{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return llm.Answer{}, message{}, err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return llm.Answer{}, message{}, fmt.Errorf("groq: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.Answer{}, message{}, fmt.Errorf("groq: read body: %w", err)
	}

	var res completionResponse
	decodeErr := json.Unmarshal(body, &res)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if decodeErr == nil && res.Error != nil {
			msg = res.Error.Message
		}
		return llm.Answer{}, message{}, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return llm.Answer{}, message{}, fmt.Errorf("groq: decode response: %w", decodeErr)
	}
	if res.Error != nil {
		return llm.Answer{}, message{}, &APIError{StatusCode: resp.StatusCode, Message: res.Error.Message}
	}
	if len(res.Choices) == 0 {
		return llm.Answer{}, message{}, &APIError{StatusCode: resp.StatusCode, Message: "no choices in response"}
	}

	reply := res.Choices[0].Message
	slog.Debug("llm reply", "model", s.model, "prompt_tokens", res.Usage.PromptTokens,
		"completion_tokens", res.Usage.CompletionTokens)
	return llm.Answer{
		Content:     reply.Content,
		InputToken:  res.Usage.PromptTokens,
		OutputToken: res.Usage.CompletionTokens,
	}, reply, nil
}

// Session 多轮对话, 保留历史消息
type Session struct {
	svc      *Service
	mu       sync.Mutex
	messages []message
}

func (s *Session) Ask(ctx context.Context, q llm.Question) (llm.Answer, error) {
	if strings.TrimSpace(q.Content) == "" {
		return llm.Answer{}, llm.ErrEmptyPrompt
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ans, reply, err := s.svc.complete(ctx, s.messages, q.Content)
	if err != nil {
		return llm.Answer{}, err
	}
	s.messages = append(s.messages,
		message{Role: "user", Content: q.Content},
		message{Role: "assistant", Content: reply.Content},
	)
	return ans, nil
}
