package ioc

import (
	"context"
	"log/slog"

	"github.com/KNICEX/crypto-alert/internal/config"
	"github.com/KNICEX/crypto-alert/internal/service/llm"
	"github.com/KNICEX/crypto-alert/internal/service/llm/gemini"
	"github.com/KNICEX/crypto-alert/internal/service/llm/groq"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

func InitGeminiCli(ctx context.Context, apiKey string) (*genai.Client, error) {
	return genai.NewClient(ctx, option.WithAPIKey(apiKey))
}

// InitLLM 未配置 key 时返回 llm.Unavailable, 聊天降级为错误提示
func InitLLM(ctx context.Context, cfg config.LLM) (llm.Service, error) {
	if cfg.ApiKey == "" {
		slog.Warn("llm api key is missing, chat disabled", "provider", cfg.Provider)
		return llm.Unavailable{}, nil
	}

	switch cfg.Provider {
	case "gemini":
		cli, err := InitGeminiCli(ctx, cfg.ApiKey)
		if err != nil {
			return nil, err
		}
		return gemini.NewService(cli,
			gemini.WithModel(cfg.Model),
			gemini.WithSystemPrompt(cfg.SystemPrompt),
		), nil
	default:
		return groq.NewService(cfg.ApiKey,
			groq.WithBaseURL(cfg.BaseURL),
			groq.WithModel(cfg.Model),
			groq.WithSystemPrompt(cfg.SystemPrompt),
			groq.WithTimeout(cfg.Timeout),
		), nil
	}
}
