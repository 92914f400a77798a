// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// Organization 是租户边界，所有文档与分块的访问都按它过滤。
type Organization struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Organization) TableName() string {
	return "organizations"
}

// Document 记录了每个上传文件的元数据和处理状态。
// OrganizationID 创建后不可修改；Status 只能由 ingestion pipeline 推进。
type Document struct {
	ID             uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	FileName       string         `gorm:"type:varchar(255);not null" json:"fileName"`
	FilePath       string         `gorm:"type:varchar(1024);not null" json:"filePath"`
	FileSize       int64          `gorm:"not null" json:"fileSize"`
	MimeType       string         `gorm:"type:varchar(255)" json:"mimeType"`
	Status         DocumentStatus `gorm:"type:varchar(32);not null;index" json:"status"`
	Category       string         `gorm:"type:varchar(255)" json:"category,omitempty"`
	Tags           []string       `gorm:"type:text;serializer:json" json:"tags,omitempty"`
	OrganizationID uint           `gorm:"not null;index;<-:create" json:"organizationId"`
	UploadedByID   uint           `gorm:"not null" json:"uploadedById"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	Chunks         []Chunk        `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Document) TableName() string {
	return "documents"
}

// Chunk 是一页文本及其向量，是最小的检索单元。
// PageNumber 从 1 开始，且在同一文档内唯一；空白页不会产生 Chunk。
type Chunk struct {
	ID         uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	DocumentID uint            `gorm:"not null;uniqueIndex:idx_chunk_document_page" json:"documentId"`
	Content    string          `gorm:"type:text;not null" json:"content"`
	PageNumber int             `gorm:"not null;uniqueIndex:idx_chunk_document_page" json:"pageNumber"`
	Embedding  pgvector.Vector `gorm:"type:vector" json:"-"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Chunk) TableName() string {
	return "document_chunks"
}
