// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

import "time"

// DocumentTask asks a worker to run ingestion for one document.
// Only the id travels; the worker reloads the document so it never acts on stale state.
type DocumentTask struct {
	DocumentID     uint      `json:"document_id"`
	OrganizationID uint      `json:"organization_id"`
	RequestID      string    `json:"request_id,omitempty"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
}
