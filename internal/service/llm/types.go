package llm

import (
	"context"
	"errors"
	"io"
)

var (
	ErrEmptyPrompt = errors.New("llm: empty prompt")
	ErrMissingKey  = errors.New("llm: api key not configured")
)

type Question struct {
	Content string
	Files   []io.Reader
}

type Answer struct {
	Content     string
	InputToken  int
	OutputToken int
}

type Session interface {
	Ask(ctx context.Context, q Question) (Answer, error)
}

type Service interface {
	AskOnce(ctx context.Context, q Question) (Answer, error)
	BeginChat(ctx context.Context) (Session, error)
}

// Unavailable 没有配置 key 时使用, 聊天请求返回错误而不是让进程退出
type Unavailable struct{}

func (Unavailable) AskOnce(ctx context.Context, q Question) (Answer, error) {
	return Answer{}, ErrMissingKey
}

func (Unavailable) BeginChat(ctx context.Context) (Session, error) {
	return nil, ErrMissingKey
}
