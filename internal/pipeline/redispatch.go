package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"intellidocs/internal/model"
	"intellidocs/internal/repository"
	"intellidocs/pkg/log"
)

const redispatchBatchSize = 100

// DispatchPending 重新派发所有仍处于 PENDING_PROCESSING 的文档，返回派发数量。
// 派发失败、进程退出时仍在本地队列中、或 Kafka 消息已提交但未处理的文档都会停留在该状态。
// 重复派发是安全的：Processor 只有在 CAS 到 PROCESSING 成功后才会处理。
func DispatchPending(ctx context.Context, repo repository.DocumentRepository, d Dispatcher) (int, error) {
	requestID := "redispatch-" + uuid.NewString()
	var afterID uint
	dispatched := 0
	for {
		docs, err := repo.ListByStatus(ctx, model.StatusPendingProcessing, afterID, redispatchBatchSize)
		if err != nil {
			return dispatched, fmt.Errorf("list pending documents: %w", err)
		}
		for _, doc := range docs {
			if err := d.Dispatch(ctx, doc.ID, doc.OrganizationID, requestID); err != nil {
				return dispatched, fmt.Errorf("dispatch document %d: %w", doc.ID, err)
			}
			dispatched++
			afterID = doc.ID
		}
		if len(docs) < redispatchBatchSize {
			break
		}
	}
	if dispatched > 0 {
		log.Infow("[Redispatch] 已重新派发待处理文档", "count", dispatched, "requestId", requestID)
	}
	return dispatched, nil
}
