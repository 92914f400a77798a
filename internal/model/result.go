package model

// QueryResult 是一次检索命中的分块。Distance 为余弦距离，越小越相近。
type QueryResult struct {
	DocumentID uint    `json:"documentId"`
	PageNumber int     `json:"pageNumber"`
	Content    string  `json:"content"`
	Distance   float64 `json:"distance"`
}

// Answer 是生成的回答以及实际发送给模型的来源分块，顺序与上下文一致。
type Answer struct {
	Answer  string        `json:"answer"`
	Sources []QueryResult `json:"sources"`
}

// EsChunk 定义了存储在 Elasticsearch 中的分块镜像结构。
type EsChunk struct {
	ChunkKey       string    `json:"chunk_key"` // documentId-pageNumber
	DocumentID     uint      `json:"document_id"`
	PageNumber     int       `json:"page_number"`
	Content        string    `json:"content"`
	Vector         []float32 `json:"vector"`
	ModelVersion   string    `json:"model_version"`
	OrganizationID uint      `json:"organization_id"`
}
