package model

import "errors"

// 领域层的哨兵错误，handler 根据它们映射 HTTP 状态码。
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrStatusConflict 表示文档当前状态与 compare-and-swap 期望的状态不一致。
	ErrStatusConflict    = errors.New("document status conflict")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrEmbeddingFailed   = errors.New("embedding failed")
	ErrNoOrganization    = errors.New("user is not associated with an organization")
)
