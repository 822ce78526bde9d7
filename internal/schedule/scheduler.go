package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

type kind int

const (
	kindInterval kind = iota
	kindDaily
)

// Schedule 固定间隔或每日 HH:MM (本地时区)
type Schedule struct {
	kind     kind
	interval time.Duration
	hour     int
	minute   int
	loc      *time.Location
}

func Every(d time.Duration) Schedule {
	return Schedule{kind: kindInterval, interval: d}
}

func DailyAt(hour, minute int, loc *time.Location) Schedule {
	if loc == nil {
		loc = time.Local
	}
	return Schedule{kind: kindDaily, hour: hour, minute: minute, loc: loc}
}

// ParseDailyAt 解析 "18:00" 形式的时间
func ParseDailyAt(s string, loc *time.Location) (Schedule, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Schedule{}, fmt.Errorf("schedule: invalid time of day %q, want HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return Schedule{}, fmt.Errorf("schedule: invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return Schedule{}, fmt.Errorf("schedule: invalid minute in %q", s)
	}
	return DailyAt(hour, minute, loc), nil
}

// Next 严格晚于 now 的下一次触发时间
func (s Schedule) Next(now time.Time) time.Time {
	switch s.kind {
	case kindDaily:
		local := now.In(s.loc)
		next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.loc)
		if !next.After(local) {
			// AddDate 而不是 +24h, 夏令时切换当天也落在同一时刻
			next = next.AddDate(0, 0, 1)
		}
		return next
	default:
		if s.interval <= 0 {
			return now.Add(time.Minute)
		}
		return now.Add(s.interval)
	}
}

func (s Schedule) String() string {
	if s.kind == kindDaily {
		return fmt.Sprintf("daily at %02d:%02d %s", s.hour, s.minute, s.loc)
	}
	return "every " + s.interval.String()
}

type job struct {
	task     Task
	schedule Schedule

	next    time.Time
	lastRun time.Time
	lastErr error
	runs    int
}

// JobStatus 任务状态快照
type JobStatus struct {
	Name     string
	Schedule string
	NextRun  time.Time
	LastRun  time.Time
	LastErr  error
	Runs     int
}

type RegisterOption func(j *job)

// RunAtStart 启动后立即执行一次, 之后按计划执行
func RunAtStart() RegisterOption {
	return func(j *job) {
		j.next = time.Time{}
	}
}

// Scheduler 单个 goroutine 依次执行到期任务, 任务之间不会重叠
type Scheduler struct {
	mu         sync.Mutex
	jobs       []*job
	now        func() time.Time
	jobTimeout time.Duration
}

type Option func(s *Scheduler)

func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.jobTimeout = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		now:        time.Now,
		jobTimeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Register(task Task, sched Schedule, opts ...RegisterOption) {
	j := &job{task: task, schedule: sched}
	j.next = sched.Next(s.now())
	for _, opt := range opts {
		opt(j)
	}

	s.mu.Lock()
	s.jobs = append(s.jobs, j)
	s.mu.Unlock()

	slog.Info("task registered", "task", task.Name(), "schedule", sched.String(), "next_run", j.next)
}

func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	statuses := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		statuses = append(statuses, JobStatus{
			Name:     j.task.Name(),
			Schedule: j.schedule.String(),
			NextRun:  j.next,
			LastRun:  j.lastRun,
			LastErr:  j.lastErr,
			Runs:     j.runs,
		})
	}
	return statuses
}

// Run 阻塞直到 ctx 结束. 正在执行的任务会收到取消信号, Run 等它返回后才退出
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler started", "tasks", len(s.Jobs()))
	defer slog.Info("scheduler stopped")

	for {
		j := s.earliest()
		if j == nil {
			<-ctx.Done()
			return ctx.Err()
		}

		if wait := j.next.Sub(s.now()); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}

		s.run(ctx, j)
	}
}

func (s *Scheduler) earliest() *job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first *job
	for _, j := range s.jobs {
		if first == nil || j.next.Before(first.next) {
			first = j
		}
	}
	return first
}

func (s *Scheduler) run(ctx context.Context, j *job) {
	name := j.task.Name()
	slog.Info("task started", "task", name)
	start := s.now()

	err := s.safeRun(ctx, j.task)
	elapsed := time.Since(start)

	s.mu.Lock()
	j.lastRun = start
	j.lastErr = err
	j.runs++
	// 下一次从任务结束时刻算起, 长任务不会造成堆积
	j.next = j.schedule.Next(s.now())
	next := j.next
	s.mu.Unlock()

	if err != nil {
		slog.Error("task failed", "task", name, "elapsed", elapsed, "error", err, "next_run", next)
		return
	}
	slog.Info("task finished", "task", name, "elapsed", elapsed, "next_run", next)
}

func (s *Scheduler) safeRun(ctx context.Context, task Task) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", task.Name(), r)
		}
	}()
	return task.Run(ctx)
}
