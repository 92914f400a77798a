// Package es 提供了与 Elasticsearch 交互的客户端功能，用作分块向量的镜像索引与可选检索后端。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"intellidocs/internal/config"
	"intellidocs/internal/model"
	"intellidocs/pkg/log"
)

// InitES 初始化 Elasticsearch 客户端，并确保分块索引存在。
func InitES(ctx context.Context, esCfg config.ElasticsearchConfig, dims int) (*ChunkIndex, error) {
	client, err := elasticsearch.NewClient(clientConfig(esCfg))
	if err != nil {
		return nil, err
	}
	idx := NewChunkIndex(client, esCfg.IndexName)
	if err := idx.EnsureIndex(ctx, dims); err != nil {
		return nil, err
	}
	return idx, nil
}

func clientConfig(esCfg config.ElasticsearchConfig) elasticsearch.Config {
	cfg := elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
	}
	// 仅在显式配置时跳过证书校验 (自签名证书的开发集群)
	if esCfg.InsecureSkipVerify {
		log.Warnf("Elasticsearch 已关闭 TLS 证书校验")
		cfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return cfg
}

// ChunkIndex 封装了对单个分块索引的读写。
type ChunkIndex struct {
	client *elasticsearch.Client
	name   string
}

func NewChunkIndex(client *elasticsearch.Client, name string) *ChunkIndex {
	return &ChunkIndex{client: client, name: name}
}

// EnsureIndex 检查索引是否存在，如果不存在则以给定向量维度创建它；
// 已存在索引的维度与配置不一致时返回 model.ErrDimensionMismatch。
func (c *ChunkIndex) EnsureIndex(ctx context.Context, dims int) error {
	res, err := c.client.Indices.Exists([]string{c.name}, c.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("检查索引是否存在时出错: %w", err)
	}
	res.Body.Close()

	// 如果 res.StatusCode 是 200，说明索引已存在
	if res.StatusCode == http.StatusOK {
		return c.checkDims(ctx, dims)
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", c.name, res.StatusCode)
	}

	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"chunk_key": { "type": "keyword" },
				"document_id": { "type": "long" },
				"page_number": { "type": "integer" },
				"content": { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"model_version": { "type": "keyword" },
				"organization_id": { "type": "long" }
			}
		}
	}`, dims)

	res, err = c.client.Indices.Create(
		c.name,
		c.client.Indices.Create.WithContext(ctx),
		c.client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return fmt.Errorf("创建索引 '%s' 失败: %w", c.name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", c.name, res.String())
	}

	log.Infof("索引 '%s' 创建成功, 向量维度: %d", c.name, dims)
	return nil
}

func (c *ChunkIndex) checkDims(ctx context.Context, dims int) error {
	res, err := c.client.Indices.GetMapping(
		c.client.Indices.GetMapping.WithContext(ctx),
		c.client.Indices.GetMapping.WithIndex(c.name),
	)
	if err != nil {
		return fmt.Errorf("获取索引 mapping 失败: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("获取索引 mapping 失败: %s", res.String())
	}

	var body map[string]struct {
		Mappings struct {
			Properties struct {
				Vector struct {
					Dims int `json:"dims"`
				} `json:"vector"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return fmt.Errorf("解析索引 mapping 失败: %w", err)
	}
	for _, m := range body {
		if got := m.Mappings.Properties.Vector.Dims; got != 0 && got != dims {
			return fmt.Errorf("%w: index %s has dims %d, embedding model produces %d",
				model.ErrDimensionMismatch, c.name, got, dims)
		}
	}
	log.Infof("索引 '%s' 已存在", c.name)
	return nil
}

// IndexChunks 使用 bulk API 将一个文档的全部分块写入索引。
func (c *ChunkIndex) IndexChunks(ctx context.Context, doc *model.Document, modelVersion string, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, ch := range chunks {
		esDoc := model.EsChunk{
			ChunkKey:       fmt.Sprintf("%d-%d", ch.DocumentID, ch.PageNumber),
			DocumentID:     ch.DocumentID,
			PageNumber:     ch.PageNumber,
			Content:        ch.Content,
			Vector:         ch.Embedding.Slice(),
			ModelVersion:   modelVersion,
			OrganizationID: doc.OrganizationID,
		}
		meta := map[string]any{"index": map[string]any{"_index": c.name, "_id": esDoc.ChunkKey}}
		if err := enc.Encode(meta); err != nil {
			return err
		}
		if err := enc.Encode(esDoc); err != nil {
			return err
		}
	}

	req := esapi.BulkRequest{
		Index:   c.name,
		Body:    &buf,
		Refresh: "true",
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("bulk 索引分块失败: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk 索引分块时 Elasticsearch 返回错误: %s", res.String())
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("解析 bulk 响应失败: %w", err)
	}
	if bulkResp.Errors {
		return errors.New("bulk 响应中存在失败的条目")
	}
	return nil
}

// DeleteDocument 删除某个文档的全部分块。
func (c *ChunkIndex) DeleteDocument(ctx context.Context, documentID uint) error {
	query := fmt.Sprintf(`{"query":{"term":{"document_id":%d}}}`, documentID)
	res, err := c.client.DeleteByQuery(
		[]string{c.name},
		strings.NewReader(query),
		c.client.DeleteByQuery.WithContext(ctx),
		c.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return fmt.Errorf("删除文档分块失败: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("删除文档分块时 Elasticsearch 返回错误: %s", res.String())
	}
	return nil
}

// Search 在指定组织范围内执行 kNN 检索。ES 的 cosine 得分为 (1+cos)/2，
// 这里换算回余弦距离 1-cos，并按距离、文档、页码升序排列。
func (c *ChunkIndex) Search(ctx context.Context, organizationID uint, vector []float32, topK int) ([]model.QueryResult, error) {
	numCandidates := topK * 10
	if numCandidates < 100 {
		numCandidates = 100
	}
	esQuery := map[string]any{
		"knn": map[string]any{
			"field":          "vector",
			"query_vector":   vector,
			"k":              topK,
			"num_candidates": numCandidates,
			"filter": map[string]any{
				"term": map[string]any{"organization_id": organizationID},
			},
		},
		"size":    topK,
		"_source": []string{"document_id", "page_number", "content", "organization_id"},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := c.client.Search(
		c.client.Search.WithContext(ctx),
		c.client.Search.WithIndex(c.name),
		c.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch returned an error: %s, body: %s", res.Status(), string(body))
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.EsChunk `json:"_source"`
				Score  float64       `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	results := make([]model.QueryResult, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		// filter 已经限定组织，这里再校验一次
		if hit.Source.OrganizationID != organizationID {
			continue
		}
		results = append(results, model.QueryResult{
			DocumentID: hit.Source.DocumentID,
			PageNumber: hit.Source.PageNumber,
			Content:    hit.Source.Content,
			Distance:   2 - 2*hit.Score,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.DocumentID != b.DocumentID {
			return a.DocumentID < b.DocumentID
		}
		return a.PageNumber < b.PageNumber
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}
