package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 聊天与摄取两条链路的观测指标。只做记录，绝不影响请求结果。
var (
	// ChatRequests 聊天请求计数，outcome: ok / validation_error /
	// embedding_error / vector_index_error / completion_error / internal_error
	ChatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medassist_chat_requests_total",
		Help: "Chat requests by outcome",
	}, []string{"outcome"})

	// RetrievalMatches 每次检索返回的候选数
	RetrievalMatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medassist_retrieval_matches_total",
		Help: "Vector index matches returned across all queries",
	})

	// RelevantMatches 通过相似度阈值的命中数
	RelevantMatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medassist_retrieval_relevant_matches_total",
		Help: "Matches above the relevance threshold across all queries",
	})

	// TopMatchScore 每次检索的最高相似度分布
	TopMatchScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "medassist_retrieval_top_score",
		Help:    "Top similarity score per retrieval",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	// IngestedDocuments 摄取成功的文档数
	IngestedDocuments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medassist_ingested_documents_total",
		Help: "Documents ingested successfully",
	})

	// IngestedVectors 写入向量库的记录数
	IngestedVectors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medassist_ingested_vectors_total",
		Help: "Vector records upserted",
	})

	// EmbeddingFailures 向量化失败次数（摄取与查询合计）
	EmbeddingFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medassist_embedding_failures_total",
		Help: "Embedding requests that failed",
	})
)
