package pipeline

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"intellidocs/pkg/kafka"
	"intellidocs/pkg/log"
	"intellidocs/pkg/tasks"
)

// Dispatcher 将文档处理任务派发到后台执行，调用方不等待处理完成。
type Dispatcher interface {
	Dispatch(ctx context.Context, documentID, organizationID uint, requestID string) error
}

// KafkaDispatcher 通过 Kafka 派发任务，由 worker 进程消费。
type KafkaDispatcher struct {
	producer *kafka.Producer
}

func NewKafkaDispatcher(producer *kafka.Producer) *KafkaDispatcher {
	return &KafkaDispatcher{producer: producer}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, documentID, organizationID uint, requestID string) error {
	return d.producer.Produce(ctx, tasks.DocumentTask{
		DocumentID:     documentID,
		OrganizationID: organizationID,
		RequestID:      requestID,
		EnqueuedAt:     time.Now(),
	})
}

// ErrQueueClosed 表示本地 worker 已停止。
var ErrQueueClosed = errors.New("local ingestion queue is closed")

// LocalDispatcher 在当前进程内用固定数量的 goroutine 处理任务。
type LocalDispatcher struct {
	processor kafka.TaskProcessor
	workers   int
	queue     chan uint
	done      chan struct{}
}

func NewLocalDispatcher(processor kafka.TaskProcessor, workers, queueSize int) *LocalDispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &LocalDispatcher{
		processor: processor,
		workers:   workers,
		queue:     make(chan uint, queueSize),
		done:      make(chan struct{}),
	}
}

// Dispatch 将任务放入队列；队列已满时阻塞直到有空位或 ctx 结束。
func (d *LocalDispatcher) Dispatch(ctx context.Context, documentID, _ uint, _ string) error {
	select {
	case <-d.done:
		return ErrQueueClosed
	default:
	}
	select {
	case d.queue <- documentID:
		return nil
	case <-d.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run 启动 worker 并阻塞到 ctx 结束。未处理的任务对应的文档保持 PENDING_PROCESSING，下次启动时由 DispatchPending 补派。
func (d *LocalDispatcher) Run(ctx context.Context) error {
	defer close(d.done)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		worker := i
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case id := <-d.queue:
					if err := d.processor.Process(ctx, id); err != nil {
						log.Errorw("[LocalDispatcher] 文档处理失败", "worker", worker, "documentId", id, "error", err)
					}
				}
			}
		})
	}
	log.Infof("[LocalDispatcher] 已启动 %d 个本地 worker", d.workers)
	return g.Wait()
}

// InlineDispatcher 在调用方 goroutine 中同步处理，供命令行导入使用。
type InlineDispatcher struct {
	processor kafka.TaskProcessor
}

func NewInlineDispatcher(processor kafka.TaskProcessor) *InlineDispatcher {
	return &InlineDispatcher{processor: processor}
}

// Dispatch 处理失败只记录日志，失败状态已经持久化。
func (d *InlineDispatcher) Dispatch(ctx context.Context, documentID, _ uint, _ string) error {
	if err := d.processor.Process(ctx, documentID); err != nil {
		log.Warnf("[InlineDispatcher] 文档处理失败, documentId: %d, error: %v", documentID, err)
	}
	return nil
}
