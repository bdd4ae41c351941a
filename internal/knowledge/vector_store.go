package knowledge

import (
	"context"
	"fmt"
)

// RecordMetadata 向量记录携带的元数据
type RecordMetadata struct {
	Text        string `json:"text"`
	Source      string `json:"source"`
	ChunkIndex  int    `json:"chunkIndex"`
	TotalChunks int    `json:"totalChunks"`
}

// VectorRecord 向量库的持久化单元。
// ID形如 `{documentName}::{chunkIndex}`，同一文档同一分块重复摄取时覆盖旧记录。
type VectorRecord struct {
	ID       string
	Values   []float32
	Metadata RecordMetadata
}

// VectorRecordID 生成记录的确定性主键
func VectorRecordID(documentName string, chunkIndex int) string {
	return fmt.Sprintf("%s::%d", documentName, chunkIndex)
}

// VectorQuery 近邻检索请求
type VectorQuery struct {
	Vector          []float32
	TopK            int
	IncludeMetadata bool
	IncludeValues   bool
}

// Match 检索命中结果，Score为归一化相似度（越大越相关）
type Match struct {
	ID       string
	Score    float64
	Metadata RecordMetadata
	Values   []float32
}

// VectorStore 向量存储抽象
type VectorStore interface {
	Upsert(ctx context.Context, records []VectorRecord) error
	Query(ctx context.Context, query VectorQuery) ([]Match, error)
	Ready() bool
}
