package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// MilvusOptions Milvus客户端配置
type MilvusOptions struct {
	Address    string
	Username   string
	Password   string
	Collection string
	VectorSize int
	Distance   string
	Database   string
	UseTLS     bool
	Timeout    time.Duration
}

type milvusVectorStore struct {
	milvusClient client.Client
	collection   string
	vectorSize   int
	distance     string
}

// NewMilvusVectorStore 创建Milvus向量存储
func NewMilvusVectorStore(opts MilvusOptions) (VectorStore, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.Collection == "" {
		opts.Collection = "medassist_passages"
	}
	if opts.VectorSize == 0 {
		opts.VectorSize = 1536
	}
	if opts.Distance == "" {
		opts.Distance = "COSINE"
	}
	if opts.Database == "" {
		opts.Database = "default"
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	milvusClient, err := client.NewClient(ctx, client.Config{
		Address:       opts.Address,
		DBName:        opts.Database,
		Username:      opts.Username,
		Password:      opts.Password,
		EnableTLSAuth: opts.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create milvus client: %v", ErrVectorIndex, err)
	}

	return &milvusVectorStore{
		milvusClient: milvusClient,
		collection:   opts.Collection,
		vectorSize:   opts.VectorSize,
		distance:     formatMilvusDistance(opts.Distance),
	}, nil
}

func formatMilvusDistance(value string) string {
	switch strings.ToUpper(value) {
	case "DOT", "IP", "INNER_PRODUCT":
		return "IP"
	case "L2", "EUCLIDEAN":
		return "L2"
	default:
		return "COSINE"
	}
}

func (s *milvusVectorStore) ensureCollection(ctx context.Context) error {
	hasCollection, err := s.milvusClient.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("%w: failed to check collection: %v", ErrVectorIndex, err)
	}

	if !hasCollection {
		schema := &entity.Schema{
			CollectionName: s.collection,
			Description:    "Ingested document passages with embeddings",
			Fields: []*entity.Field{
				{
					Name:       "id",
					DataType:   entity.FieldTypeVarChar,
					PrimaryKey: true,
					AutoID:     false,
					TypeParams: map[string]string{
						"max_length": "512",
					},
				},
				{
					Name:     "text",
					DataType: entity.FieldTypeVarChar,
					TypeParams: map[string]string{
						"max_length": "65535",
					},
				},
				{
					Name:     "source",
					DataType: entity.FieldTypeVarChar,
					TypeParams: map[string]string{
						"max_length": "1024",
					},
				},
				{
					Name:     "chunk_index",
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:     "total_chunks",
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:     "vector",
					DataType: entity.FieldTypeFloatVector,
					TypeParams: map[string]string{
						"dim": fmt.Sprintf("%d", s.vectorSize),
					},
				},
			},
		}

		if err := s.milvusClient.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("%w: failed to create collection: %v", ErrVectorIndex, err)
		}

		index, indexErr := s.buildIndex()
		if indexErr != nil {
			return fmt.Errorf("%w: failed to build index: %v", ErrVectorIndex, indexErr)
		}
		if err := s.milvusClient.CreateIndex(ctx, s.collection, "vector", index, false); err != nil {
			// 索引创建失败不阻塞写入，检索性能会退化
			fmt.Printf("warning: failed to create index for collection %s: %v\n", s.collection, err)
		}
	}

	// 检索前集合必须已加载
	if err := s.milvusClient.LoadCollection(ctx, s.collection, false); err != nil {
		fmt.Printf("warning: failed to load collection %s: %v\n", s.collection, err)
	}

	return nil
}

func (s *milvusVectorStore) buildIndex() (entity.Index, error) {
	metric := entity.MetricType(s.distance)
	index, err := entity.NewIndexHNSW(metric, 8, 64)
	if err == nil {
		return index, nil
	}
	// HNSW不可用时退回IVF_FLAT
	return entity.NewIndexIvfFlat(metric, 128)
}

func (s *milvusVectorStore) Upsert(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx); err != nil {
		return err
	}

	ids := make([]string, 0, len(records))
	texts := make([]string, 0, len(records))
	sources := make([]string, 0, len(records))
	chunkIndexes := make([]int64, 0, len(records))
	totalChunks := make([]int64, 0, len(records))
	vectors := make([][]float32, 0, len(records))

	for _, record := range records {
		if len(record.Values) == 0 {
			return fmt.Errorf("%w: record %s has empty embedding", ErrVectorIndex, record.ID)
		}
		ids = append(ids, record.ID)
		texts = append(texts, record.Metadata.Text)
		sources = append(sources, record.Metadata.Source)
		chunkIndexes = append(chunkIndexes, int64(record.Metadata.ChunkIndex))
		totalChunks = append(totalChunks, int64(record.Metadata.TotalChunks))
		vectors = append(vectors, padVector(record.Values, s.vectorSize))
	}

	// Upsert按主键覆盖，重复摄取同一chunk不会产生重复记录
	_, err := s.milvusClient.Upsert(ctx, s.collection, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("source", sources),
		entity.NewColumnInt64("chunk_index", chunkIndexes),
		entity.NewColumnInt64("total_chunks", totalChunks),
		entity.NewColumnFloatVector("vector", s.vectorSize, vectors),
	)
	if err != nil {
		return fmt.Errorf("%w: milvus upsert failed: %v", ErrVectorIndex, err)
	}

	if err := s.milvusClient.Flush(ctx, s.collection, false); err != nil {
		fmt.Printf("warning: failed to flush collection %s: %v\n", s.collection, err)
	}

	return nil
}

func (s *milvusVectorStore) Query(ctx context.Context, query VectorQuery) ([]Match, error) {
	if len(query.Vector) == 0 {
		return nil, nil
	}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	topK := query.TopK
	if topK <= 0 {
		topK = 5
	}

	outputFields := []string{}
	if query.IncludeMetadata {
		outputFields = []string{"text", "source", "chunk_index", "total_chunks"}
	}

	sp, err := entity.NewIndexHNSWSearchParam(64)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build search param: %v", ErrVectorIndex, err)
	}
	queryVector := entity.FloatVector(padVector(query.Vector, s.vectorSize))
	searchResults, err := s.milvusClient.Search(
		ctx,
		s.collection,
		[]string{},
		"",
		outputFields,
		[]entity.Vector{queryVector},
		"vector",
		entity.MetricType(s.distance),
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: milvus search failed: %v", ErrVectorIndex, err)
	}

	if len(searchResults) == 0 {
		return []Match{}, nil
	}
	result := searchResults[0]
	if result.Err != nil {
		return nil, fmt.Errorf("%w: milvus search error: %v", ErrVectorIndex, result.Err)
	}
	if result.ResultCount == 0 {
		return []Match{}, nil
	}

	var ids []string
	if idCol, ok := result.IDs.(*entity.ColumnVarChar); ok {
		ids = idCol.Data()
	}

	var texts, sources []string
	var chunkIndexes, totalChunks []int64
	for _, field := range result.Fields {
		switch field.Name() {
		case "text":
			if col, ok := field.(*entity.ColumnVarChar); ok {
				texts = col.Data()
			}
		case "source":
			if col, ok := field.(*entity.ColumnVarChar); ok {
				sources = col.Data()
			}
		case "chunk_index":
			if col, ok := field.(*entity.ColumnInt64); ok {
				chunkIndexes = col.Data()
			}
		case "total_chunks":
			if col, ok := field.(*entity.ColumnInt64); ok {
				totalChunks = col.Data()
			}
		}
	}

	matches := make([]Match, 0, result.ResultCount)
	for i := 0; i < result.ResultCount; i++ {
		match := Match{}
		if i < len(ids) {
			match.ID = ids[i]
		}
		if i < len(result.Scores) {
			match.Score = float64(result.Scores[i])
		}
		if query.IncludeMetadata {
			if i < len(texts) {
				match.Metadata.Text = texts[i]
			}
			if i < len(sources) {
				match.Metadata.Source = sources[i]
			}
			if i < len(chunkIndexes) {
				match.Metadata.ChunkIndex = int(chunkIndexes[i])
			}
			if i < len(totalChunks) {
				match.Metadata.TotalChunks = int(totalChunks[i])
			}
		}
		matches = append(matches, match)
	}

	return matches, nil
}

// Close 释放Milvus客户端连接
func (s *milvusVectorStore) Close() error {
	if s.milvusClient == nil {
		return nil
	}
	return s.milvusClient.Close()
}

func (s *milvusVectorStore) Ready() bool {
	if s.milvusClient == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.milvusClient.ListCollections(ctx)
	return err == nil
}

// padVector 维度不足时补零，超出时截断
func padVector(values []float32, size int) []float32 {
	if len(values) == size {
		return values
	}
	padded := make([]float32, size)
	copy(padded, values)
	return padded
}
