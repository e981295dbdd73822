// Package workerpool 提供 goroutine 生命周期管理的 Worker Pool 实现
// 用作备份/恢复作业的执行队列：入队不设上限，真正的并发执行受 worker 数量约束
package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// 错误定义
var (
	// ErrPoolClosed 当 Worker Pool 已关闭时返回
	ErrPoolClosed = errors.New("worker pool is closed")
)

// Config Worker Pool 配置
type Config struct {
	// MaxWorkers 最大并发 worker 数量，默认 4
	MaxWorkers int
	// WarningPending 待执行任务数告警阈值，默认 64
	WarningPending int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxWorkers:     4,
		WarningPending: 64,
	}
}

// job 入队的一项工作
type job struct {
	ctx  context.Context
	name string
	fn   func(context.Context) error
}

// Pool 有界并发的 FIFO 执行队列
// 入队永不阻塞；出队顺序与入队顺序一致；关闭时先排空再退出
type Pool struct {
	config Config
	logger *zap.Logger

	mu      sync.Mutex
	pending []job
	notify  chan struct{}
	closed  bool

	workerWg    sync.WaitGroup
	activeCount atomic.Int64
}

// New 创建新的 Worker Pool
// cfg: 配置，如果为 nil 则使用默认配置
// logger: zap 日志器，如果为 nil 则使用 nop logger
func New(cfg *Config, logger *zap.Logger) *Pool {
	if cfg == nil {
		defaultCfg := DefaultConfig()
		cfg = &defaultCfg
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.WarningPending <= 0 {
		cfg.WarningPending = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool{
		config: *cfg,
		logger: logger,
		notify: make(chan struct{}, 1),
	}

	for i := 0; i < cfg.MaxWorkers; i++ {
		p.workerWg.Add(1)
		go p.worker()
	}

	p.logger.Info("worker pool started", zap.Int("maxWorkers", cfg.MaxWorkers))

	return p
}

// Submit 入队一项工作，立即返回
// 只有池已关闭时才返回错误
func (p *Pool) Submit(ctx context.Context, name string, fn func(context.Context) error) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.pending = append(p.pending, job{ctx: ctx, name: name, fn: fn})
	depth := len(p.pending)
	p.mu.Unlock()

	if depth >= p.config.WarningPending {
		p.logger.Warn("worker pool backlog growing",
			zap.Int("pending", depth),
			zap.Int("maxWorkers", p.config.MaxWorkers))
	}

	select {
	case p.notify <- struct{}{}:
	default:
	}
	return nil
}

// worker 工作协程，按 FIFO 顺序取任务执行
func (p *Pool) worker() {
	defer p.workerWg.Done()

	for {
		j, ok, drained := p.next()
		if drained {
			return
		}
		if !ok {
			<-p.notify
			continue
		}
		p.run(j)
		// 唤醒下一个可能在等待的 worker
		select {
		case p.notify <- struct{}{}:
		default:
		}
	}
}

// next 弹出队首任务
// drained 表示池已关闭且队列已空，worker 可以退出
func (p *Pool) next() (j job, ok bool, drained bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		if p.closed {
			return job{}, false, true
		}
		return job{}, false, false
	}
	j = p.pending[0]
	p.pending = p.pending[1:]
	return j, true, false
}

// run 执行单个任务，任一任务的失败或 panic 不影响其他任务
func (p *Pool) run(j job) {
	p.activeCount.Add(1)
	defer p.activeCount.Add(-1)

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker job panic",
				zap.String("name", j.name),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()

	if err := j.ctx.Err(); err != nil {
		p.logger.Warn("worker job skipped, context cancelled", zap.String("name", j.name))
		return
	}
	if err := j.fn(j.ctx); err != nil {
		p.logger.Error("worker job failed", zap.String("name", j.name), zap.Error(err))
	}
}

// ActiveCount 返回当前活跃任务数
func (p *Pool) ActiveCount() int64 {
	return p.activeCount.Load()
}

// PendingCount 返回当前队列中等待的任务数
func (p *Pool) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Shutdown 关闭 Worker Pool：不再接受新任务，排空队列并等待在途任务完成
// ctx 用于控制关闭超时
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	pending := len(p.pending)
	p.mu.Unlock()

	p.logger.Info("worker pool shutting down",
		zap.Int64("activeCount", p.activeCount.Load()),
		zap.Int("pendingCount", pending))

	// 唤醒所有空转的 worker，让它们观察到 closed 状态
	wake := make(chan struct{})
	go func() {
		for {
			select {
			case p.notify <- struct{}{}:
			case <-wake:
				return
			}
		}
	}()

	finished := make(chan struct{})
	go func() {
		p.workerWg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		close(wake)
		p.logger.Info("worker pool shutdown completed")
		return nil
	case <-ctx.Done():
		close(wake)
		p.logger.Warn("worker pool shutdown timeout")
		return ctx.Err()
	}
}
