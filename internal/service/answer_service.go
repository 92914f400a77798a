package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"intellidocs/internal/config"
	"intellidocs/internal/model"
	"intellidocs/pkg/llm"
	"intellidocs/pkg/log"
)

const (
	DefaultSystemPrompt = "You are an AI assistant specialised in document analysis.\n" +
		"Answer the user's question using *only* the context provided.\n" +
		"If the answer is not in the context, say 'I could not find information about this in the documents.'\n" +
		"Cite your sources where possible by mentioning the page."
	DefaultNoResultText = "I could not find relevant information about this topic in your documents."
	DefaultFallbackText = "An error occurred while generating the answer. Please try again."

	contextSeparator  = "\n\n---\n\n"
	defaultLLMTimeout = 30 * time.Second
)

// AnswerService 基于检索结果生成有依据的回答。
type AnswerService interface {
	Answer(ctx context.Context, query string, organizationID uint) (*model.Answer, error)
}

type answerService struct {
	search     SearchService
	llmClient  llm.Client
	topK       int
	timeout    time.Duration
	generation config.LLMGenerationConfig
	prompt     config.LLMPromptConfig
}

// NewAnswerService 创建一个新的 AnswerService 实例。
func NewAnswerService(search SearchService, llmClient llm.Client, retrieval config.RetrievalConfig, llmCfg config.LLMConfig) AnswerService {
	s := &answerService{
		search:     search,
		llmClient:  llmClient,
		topK:       retrieval.AnswerTopK,
		timeout:    time.Duration(llmCfg.TimeoutSeconds) * time.Second,
		generation: llmCfg.Generation,
		prompt:     llmCfg.Prompt,
	}
	if s.topK <= 0 {
		s.topK = 3
	}
	if s.timeout <= 0 {
		s.timeout = defaultLLMTimeout
	}
	if s.prompt.System == "" {
		s.prompt.System = DefaultSystemPrompt
	}
	if s.prompt.NoResultText == "" {
		s.prompt.NoResultText = DefaultNoResultText
	}
	if s.prompt.FallbackText == "" {
		s.prompt.FallbackText = DefaultFallbackText
	}
	return s
}

// Answer 执行 RAG 流程。检索失败会作为错误返回；生成失败只会降级为兜底文案。
func (s *answerService) Answer(ctx context.Context, query string, organizationID uint) (*model.Answer, error) {
	// 1. 检索上下文
	results, err := s.search.Search(ctx, query, organizationID, s.topK)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		log.Infof("[AnswerService] 组织 %d 内没有相关分块, 返回固定回答", organizationID)
		return &model.Answer{Answer: s.prompt.NoResultText, Sources: []model.QueryResult{}}, nil
	}

	// 2. 构建上下文与提示词
	userPrompt := "Context:\n" + buildContext(results) + contextSeparator + "User question: " + query

	// 3. 调用 LLM，超时独立于请求
	llmCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	answer, err := s.llmClient.Complete(llmCtx, llm.CompletionRequest{
		System: s.prompt.System,
		User:   userPrompt,
		Gen:    s.generationParams(),
	})
	if err != nil {
		log.Errorw("[AnswerService] 调用 LLM 失败, 返回兜底回答", "org", organizationID, "error", err)
		answer = s.prompt.FallbackText
	}

	return &model.Answer{Answer: answer, Sources: results}, nil
}

// buildContext 为每个分块标注页码与文档，便于模型引用。
func buildContext(results []model.QueryResult) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("Excerpt (Page %d, Document %d):\n%s", r.PageNumber, r.DocumentID, r.Content))
	}
	return strings.Join(blocks, contextSeparator)
}

func (s *answerService) generationParams() *llm.GenerationParams {
	temp := s.generation.Temperature
	gen := &llm.GenerationParams{Temperature: &temp}
	if s.generation.TopP != 0 {
		p := s.generation.TopP
		gen.TopP = &p
	}
	if s.generation.MaxTokens != 0 {
		m := s.generation.MaxTokens
		gen.MaxTokens = &m
	}
	return gen
}
