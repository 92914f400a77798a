package model

import (
	"database/sql/driver"
	"fmt"
)

// DocumentStatus 是文档处理状态的封闭枚举。
// 合法的流转只有 PENDING_PROCESSING -> PROCESSING -> COMPLETED | FAILED。
type DocumentStatus string

const (
	StatusPendingProcessing DocumentStatus = "PENDING_PROCESSING"
	StatusProcessing        DocumentStatus = "PROCESSING"
	StatusCompleted         DocumentStatus = "COMPLETED"
	StatusFailed            DocumentStatus = "FAILED"
)

var transitions = map[DocumentStatus][]DocumentStatus{
	StatusPendingProcessing: {StatusProcessing},
	StatusProcessing:        {StatusCompleted, StatusFailed},
}

// ParseDocumentStatus 将字符串解析为 DocumentStatus，未知取值返回 ErrInvalidInput。
func ParseDocumentStatus(s string) (DocumentStatus, error) {
	st := DocumentStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown document status %q", ErrInvalidInput, s)
	}
	return st, nil
}

func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusPendingProcessing, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal 表示该状态之后不再有任何自动流转。
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo 判断 s -> next 是否为合法流转。
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidateTransition 与 CanTransitionTo 相同，但返回包装了 ErrInvalidTransition 的错误。
func ValidateTransition(from, to DocumentStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

func (s DocumentStatus) String() string {
	return string(s)
}

// Value 实现 driver.Valuer，拒绝写入未知状态。
func (s DocumentStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: unknown document status %q", ErrInvalidInput, string(s))
	}
	return string(s), nil
}

// Scan 实现 sql.Scanner。
func (s *DocumentStatus) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into DocumentStatus", value)
	}
	st, err := ParseDocumentStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}
