package gemini

import (
	"context"
	"strings"

	"github.com/KNICEX/crypto-alert/internal/service/llm"
	"github.com/google/generative-ai-go/genai"
)

type Session struct {
	session *genai.ChatSession
}

func (s Session) Ask(ctx context.Context, q llm.Question) (llm.Answer, error) {
	if strings.TrimSpace(q.Content) == "" {
		return llm.Answer{}, llm.ErrEmptyPrompt
	}
	resp, err := s.session.SendMessage(ctx, genai.Text(q.Content))
	if err != nil {
		return llm.Answer{}, err
	}
	return toAnswer(resp), nil
}

type Service struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewService(client *genai.Client, opts ...Option) llm.Service {
	svc := &Service{
		client: client,
		model:  client.GenerativeModel("gemini-2.0-flash"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type Option func(service *Service)

func WithTemperature(temp float32) Option {
	return func(service *Service) {
		service.model.SetTemperature(temp)
	}
}

// WithModel 需要在 WithTemperature / WithSystemPrompt 之前传入
func WithModel(name string) Option {
	return func(service *Service) {
		if name != "" {
			service.model = service.client.GenerativeModel(name)
		}
	}
}

func WithSystemPrompt(prompt string) Option {
	return func(service *Service) {
		if prompt == "" {
			return
		}
		service.model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(prompt)},
		}
	}
}

func (s *Service) AskOnce(ctx context.Context, q llm.Question) (llm.Answer, error) {
	if strings.TrimSpace(q.Content) == "" {
		return llm.Answer{}, llm.ErrEmptyPrompt
	}
	resp, err := s.model.GenerateContent(ctx, genai.Text(q.Content))
	if err != nil {
		return llm.Answer{}, err
	}
	return toAnswer(resp), nil
}

func (s *Service) BeginChat(ctx context.Context) (llm.Session, error) {
	session := s.model.StartChat()
	return &Session{
		session: session,
	}, nil
}

func toAnswer(resp *genai.GenerateContentResponse) llm.Answer {
	ans := llm.Answer{Content: parseResponse(resp)}
	if resp != nil && resp.UsageMetadata != nil {
		ans.InputToken = int(resp.UsageMetadata.PromptTokenCount)
		ans.OutputToken = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return ans
}

func parseResponse(resp *genai.GenerateContentResponse) string {
	var resStr strings.Builder
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	for i, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if text, ok := part.(genai.Text); ok {
			if i > 0 {
				resStr.WriteString("\n")
			}
			resStr.WriteString(string(text))
		} else {
			return ""
		}
	}
	return resStr.String()
}
