package service

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"linkgate-go/internal/config"
	"linkgate-go/internal/repository"
	"linkgate-go/pkg/logging"
)

// ClickAccountant 访问计数器。计数经有界队列交给后台 worker，
// 绝不阻塞重定向的响应路径；队列满时丢弃并记日志。
// 单次自增在罕见故障下丢失是明确接受的不一致，访问量是尽力而为的
// 分析信号，不是账本。
type ClickAccountant struct {
	store   repository.LinkStore
	counter repository.VisitCounter

	queue    chan string
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	dropped  atomic.Int64
}

func NewClickAccountant(store repository.LinkStore, counter repository.VisitCounter) *ClickAccountant {
	return &ClickAccountant{
		store:   store,
		counter: counter,
		queue:   make(chan string, config.Current().ClickQueueSize),
		quit:    make(chan struct{}),
	}
}

// Start 启动后台 worker
func (a *ClickAccountant) Start() {
	a.wg.Add(1)
	go a.worker()
}

// RecordVisit 非阻塞入队。队列饱和时丢弃而非等待。
func (a *ClickAccountant) RecordVisit(slug string) {
	select {
	case a.queue <- slug:
	default:
		dropped := a.dropped.Add(1)
		logging.Logger.Warn("Click queue saturated, dropping visit",
			zap.String("slug", slug),
			zap.Int64("total_dropped", dropped))
	}
}

// Dropped 被丢弃的计数事件总数
func (a *ClickAccountant) Dropped() int64 {
	return a.dropped.Load()
}

// Close 停止 worker，先排空队列中剩余的事件。可安全重复调用。
func (a *ClickAccountant) Close() {
	a.stopOnce.Do(func() { close(a.quit) })
	a.wg.Wait()
}

func (a *ClickAccountant) worker() {
	defer a.wg.Done()

	for {
		select {
		case slug := <-a.queue:
			a.flush(slug)
		case <-a.quit:
			// 排空剩余事件再退出
			for {
				select {
				case slug := <-a.queue:
					a.flush(slug)
				default:
					return
				}
			}
		}
	}
}

// flush 持久化一次访问。自增必须是存储层的原子加，
// 并发自增同一 slug 不允许丢更新。
func (a *ClickAccountant) flush(slug string) {
	ctx := context.Background()

	if err := a.store.IncrementVisits(ctx, slug, 1); err != nil {
		logging.Logger.Warn("Failed to persist visit count",
			zap.String("slug", slug),
			zap.Error(err))
	}

	if a.counter != nil {
		if err := a.counter.Incr(ctx, slug); err != nil {
			logging.Logger.Warn("Failed to update visit counter mirror",
				zap.String("slug", slug),
				zap.Error(err))
		}
	}
}
