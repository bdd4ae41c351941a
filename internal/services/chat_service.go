package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/medassist/backend-go/internal/knowledge"
	"github.com/medassist/backend-go/internal/metrics"
	"go.uber.org/zap"
)

// ChatRequest 一次聊天请求。服务端无会话状态，历史由调用方每次完整携带。
type ChatRequest struct {
	Message       string
	History       []knowledge.ConversationTurn
	TreatmentMode string
}

// ChatResult 聊天结果与检索诊断信息
type ChatResult struct {
	Response string
	Debug    *knowledge.RetrievalDebug
}

// ChatService 聊天编排：校验 → 检索增强提示词 → 对话补全。
// 每一步串行执行，任一上游失败立即终止整个请求，不做重试。
type ChatService struct {
	builder   *knowledge.PromptBuilder
	completer knowledge.ChatCompleter
	opts      knowledge.CompletionOptions
	logger    *zap.Logger
}

// NewChatService 创建聊天服务
func NewChatService(builder *knowledge.PromptBuilder, completer knowledge.ChatCompleter, opts knowledge.CompletionOptions, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		builder:   builder,
		completer: completer,
		opts:      opts,
		logger:    logger,
	}
}

// Chat 处理一次聊天请求
func (s *ChatService) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		metrics.ChatRequests.WithLabelValues("validation_error").Inc()
		return nil, fmt.Errorf("%w: message content is required", knowledge.ErrValidation)
	}

	mode := knowledge.TreatmentMode(req.TreatmentMode)
	if mode == "" {
		mode = knowledge.ModeGeneral
	}

	messages, debug, err := s.builder.Build(ctx, req.Message, req.History, mode)
	if err != nil {
		s.recordFailure(err)
		s.logger.Error("检索增强提示词构建失败", zap.Error(err))
		return nil, err
	}

	metrics.RetrievalMatches.Add(float64(debug.TotalMatches))
	metrics.RelevantMatches.Add(float64(debug.RelevantMatches))
	if debug.TotalMatches > 0 {
		metrics.TopMatchScore.Observe(debug.TopScore)
	}

	response, err := s.completer.Complete(ctx, messages, s.opts)
	if err != nil {
		s.recordFailure(err)
		s.logger.Error("对话补全失败", zap.Error(err))
		return nil, err
	}

	metrics.ChatRequests.WithLabelValues("ok").Inc()
	s.logger.Info("聊天请求完成",
		zap.String("mode", string(mode)),
		zap.Int("history_turns", len(req.History)),
		zap.Int("total_matches", debug.TotalMatches),
		zap.Int("relevant_matches", debug.RelevantMatches),
		zap.Bool("has_context", debug.HasContext))

	return &ChatResult{
		Response: response,
		Debug:    debug,
	}, nil
}

func (s *ChatService) recordFailure(err error) {
	switch {
	case errors.Is(err, knowledge.ErrEmbedding):
		metrics.EmbeddingFailures.Inc()
		metrics.ChatRequests.WithLabelValues("embedding_error").Inc()
	case errors.Is(err, knowledge.ErrVectorIndex):
		metrics.ChatRequests.WithLabelValues("vector_index_error").Inc()
	case errors.Is(err, knowledge.ErrCompletion):
		metrics.ChatRequests.WithLabelValues("completion_error").Inc()
	default:
		metrics.ChatRequests.WithLabelValues("internal_error").Inc()
	}
}
