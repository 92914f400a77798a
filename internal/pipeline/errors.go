package pipeline

import (
	"errors"
	"fmt"
)

// Step 标识 ingestion 中失败的阶段。
type Step string

const (
	StepExtract Step = "extract"
	StepEmbed   Step = "embed"
	StepPersist Step = "persist"
)

var (
	ErrExtraction  = errors.New("extraction failed")
	ErrEmbedding   = errors.New("embedding failed")
	ErrPersistence = errors.New("persistence failed")
)

// StepError 记录失败阶段与原因，errors.Is 同时匹配阶段哨兵错误与底层错误。
type StepError struct {
	Step       Step
	DocumentID uint
	Page       int // 1 起始，0 表示与具体页无关
	Err        error
}

func (e *StepError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("document %d: %s step failed on page %d: %v", e.DocumentID, e.Step, e.Page, e.Err)
	}
	return fmt.Sprintf("document %d: %s step failed: %v", e.DocumentID, e.Step, e.Err)
}

func (e *StepError) Unwrap() []error {
	return []error{e.sentinel(), e.Err}
}

func (e *StepError) sentinel() error {
	switch e.Step {
	case StepExtract:
		return ErrExtraction
	case StepEmbed:
		return ErrEmbedding
	default:
		return ErrPersistence
	}
}
