package schedule

import "context"

// Task 由 Scheduler 串行执行, 返回的错误只记录日志
type Task interface {
	Run(ctx context.Context) error
	Name() string
}

type funcTask struct {
	name string
	fn   func(ctx context.Context) error
}

func (t funcTask) Run(ctx context.Context) error {
	return t.fn(ctx)
}

func (t funcTask) Name() string {
	return t.name
}

// TaskFunc 把函数包装成 Task
func TaskFunc(name string, fn func(ctx context.Context) error) Task {
	return funcTask{name: name, fn: fn}
}
