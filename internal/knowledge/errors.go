package knowledge

import "errors"

// 错误分类：控制器只根据这些哨兵错误映射HTTP状态码和用户可见文案，
// 上游服务的原始错误细节只进日志，绝不透传给调用方。
var (
	// ErrValidation 用户输入非法（空消息等），未发起任何上游调用
	ErrValidation = errors.New("validation failed")

	// ErrEmbedding 向量化服务调用失败或未配置
	ErrEmbedding = errors.New("embedding service failed")

	// ErrVectorIndex 向量库查询或写入失败
	ErrVectorIndex = errors.New("vector index failed")

	// ErrCompletion 对话补全服务调用失败
	ErrCompletion = errors.New("completion service failed")

	// ErrDocumentExtraction 文档解析失败或提取文本为空（仅摄取流程）
	ErrDocumentExtraction = errors.New("document extraction failed")

	// ErrConfiguration 缺少必需配置或文档目录不可用（仅摄取流程，致命）
	ErrConfiguration = errors.New("configuration error")
)
