package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/medassist/backend-go/internal/metrics"
	"go.uber.org/zap"
)

// IngestorOptions 摄取流程参数。延迟只是为了迁就外部服务限流，
// 不是正确性约束，都可调。
type IngestorOptions struct {
	BatchSize  int
	EmbedDelay time.Duration
	BatchDelay time.Duration
}

// IngestReport 摄取运行汇总
type IngestReport struct {
	Documents       int
	DocumentsFailed int
	Chunks          int
	ChunksFailed    int
	Vectors         int
}

// Ingestor 文档摄取流水线：解析 → 分块 → 逐块向量化 → 批量写入向量库。
// 单块、单文档失败只跳过并记录，不中断整体运行。
type Ingestor struct {
	parser      *FileParserManager
	chunker     *Chunker
	embedder    Embedder
	vectorStore VectorStore
	logger      *zap.Logger
	opts        IngestorOptions
}

// NewIngestor 创建摄取流水线
func NewIngestor(parser *FileParserManager, chunker *Chunker, embedder Embedder, vectorStore VectorStore, logger *zap.Logger, opts IngestorOptions) *Ingestor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		parser:      parser,
		chunker:     chunker,
		embedder:    embedder,
		vectorStore: vectorStore,
		logger:      logger,
		opts:        opts,
	}
}

// IngestDirectory 摄取目录下的全部PDF文档。
// 目录缺失或没有PDF文件属于配置错误，在任何网络调用之前直接失败。
func (ing *Ingestor) IngestDirectory(ctx context.Context, dir string) (*IngestReport, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: documents folder not found at %s", ErrConfiguration, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read documents folder: %v", ErrConfiguration, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(filepath.Ext(entry.Name())) == ".pdf" {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no PDF files in %s", ErrConfiguration, dir)
	}

	ing.logger.Info("开始摄取文档", zap.Int("files", len(files)), zap.String("dir", dir))

	report := &IngestReport{}
	for _, file := range files {
		fileReport, err := ing.IngestFile(ctx, filepath.Join(dir, file))
		if err != nil {
			report.DocumentsFailed++
			ing.logger.Warn("文档摄取失败，跳过", zap.String("file", file), zap.Error(err))
			continue
		}
		report.Documents++
		report.Chunks += fileReport.Chunks
		report.ChunksFailed += fileReport.ChunksFailed
		report.Vectors += fileReport.Vectors
		metrics.IngestedDocuments.Inc()
		metrics.IngestedVectors.Add(float64(fileReport.Vectors))
		ing.logger.Info("文档摄取完成",
			zap.String("file", file),
			zap.Int("chunks", fileReport.Chunks),
			zap.Int("vectors", fileReport.Vectors))
	}

	return report, nil
}

// IngestFile 摄取单个文档
func (ing *Ingestor) IngestFile(ctx context.Context, path string) (*IngestReport, error) {
	filename := filepath.Base(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentExtraction, err)
	}
	defer f.Close()

	text, err := ing.parser.ParseFile(f, filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentExtraction, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no text extracted from %s", ErrDocumentExtraction, filename)
	}

	chunks := ing.chunker.Split(text)
	ing.logger.Info("文档分块完成", zap.String("file", filename), zap.Int("chunks", len(chunks)))

	report := &IngestReport{Chunks: len(chunks)}
	for batchStart := 0; batchStart < len(chunks); batchStart += ing.opts.BatchSize {
		batchEnd := batchStart + ing.opts.BatchSize
		if batchEnd > len(chunks) {
			batchEnd = len(chunks)
		}

		records := ing.embedBatch(ctx, filename, chunks[batchStart:batchEnd], report)
		if len(records) > 0 {
			report.Vectors += ing.upsertBatch(ctx, filename, records)
		}

		// 批次间限速，最后一批不等
		if batchEnd < len(chunks) && ing.opts.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(ing.opts.BatchDelay):
			}
		}
	}

	return report, nil
}

// embedBatch 逐块向量化。单块失败只跳过该块
func (ing *Ingestor) embedBatch(ctx context.Context, filename string, chunks []Chunk, report *IngestReport) []VectorRecord {
	records := make([]VectorRecord, 0, len(chunks))
	for _, chunk := range chunks {
		vector, err := ing.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			report.ChunksFailed++
			metrics.EmbeddingFailures.Inc()
			ing.logger.Warn("向量化失败，跳过该块",
				zap.String("file", filename),
				zap.Int("chunk", chunk.Index),
				zap.Error(err))
			continue
		}

		records = append(records, VectorRecord{
			ID:     VectorRecordID(filename, chunk.Index),
			Values: vector,
			Metadata: RecordMetadata{
				Text:        chunk.Text,
				Source:      filename,
				ChunkIndex:  chunk.Index,
				TotalChunks: chunk.Total,
			},
		})

		if ing.opts.EmbedDelay > 0 {
			select {
			case <-ctx.Done():
				return records
			case <-time.After(ing.opts.EmbedDelay):
			}
		}
	}
	return records
}

// upsertBatch 批量写入，批次失败时退回逐条写入，单条失败只记录。
// 返回成功写入的记录数。
func (ing *Ingestor) upsertBatch(ctx context.Context, filename string, records []VectorRecord) int {
	err := ing.vectorStore.Upsert(ctx, records)
	if err == nil {
		return len(records)
	}
	ing.logger.Warn("批量写入失败，退回逐条写入", zap.String("file", filename), zap.Error(err))

	stored := 0
	for _, record := range records {
		if err := ing.vectorStore.Upsert(ctx, []VectorRecord{record}); err != nil {
			ing.logger.Warn("单条写入失败", zap.String("id", record.ID), zap.Error(err))
			continue
		}
		stored++
	}
	return stored
}
