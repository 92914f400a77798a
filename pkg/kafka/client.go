// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/segmentio/kafka-go"

	"intellidocs/internal/config"
	"intellidocs/pkg/log"
	"intellidocs/pkg/tasks"
)

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, documentID uint) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer 发送文档处理任务。
type Producer struct {
	writer messageWriter
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(splitBrokers(cfg.Brokers)...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// Produce 发送一个文档处理任务到 Kafka，以文档 ID 作为 key 保证同一文档的消息有序。
func (p *Producer) Produce(ctx context.Context, task tasks.DocumentTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(task.DocumentID), 10)),
		Value: taskBytes,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// StartConsumer 启动一个 Kafka 消费者来处理文档任务，直到 ctx 被取消。
// 处理失败已经体现为文档的 FAILED 状态且不自动重试，因此每条消息处理后都会提交 offset。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor) error {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  splitBrokers(cfg.Brokers),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("从 Kafka 读取消息失败: %w", err)
		}

		handleMessage(ctx, m, processor)

		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}
}

func handleMessage(ctx context.Context, m kafka.Message, processor TaskProcessor) {
	task, err := decodeTask(m.Value)
	if err != nil {
		// 消息格式错误，直接提交，避免阻塞队列
		log.Errorf("无法解析 Kafka 消息: %v, offset: %d, value: %s", err, m.Offset, string(m.Value))
		return
	}

	log.Infow("开始处理文档任务", "documentId", task.DocumentID, "offset", m.Offset, "requestId", task.RequestID)
	if err := processor.Process(ctx, task.DocumentID); err != nil {
		log.Errorw("处理文档任务失败", "documentId", task.DocumentID, "error", err)
		return
	}
	log.Infow("文档任务处理结束", "documentId", task.DocumentID)
}

func decodeTask(value []byte) (tasks.DocumentTask, error) {
	var task tasks.DocumentTask
	if err := json.Unmarshal(value, &task); err != nil {
		return task, err
	}
	if task.DocumentID == 0 {
		return task, errors.New("task has no document_id")
	}
	return task, nil
}

func splitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
