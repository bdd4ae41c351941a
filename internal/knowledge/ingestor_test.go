package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingEmbedder 确定性向量，可按内容注入失败
type countingEmbedder struct {
	calls    int
	failWhen string
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.failWhen != "" && strings.Contains(text, e.failWhen) {
		return nil, fmt.Errorf("%w: rate limited", ErrEmbedding)
	}
	return []float32{float32(len(text)), 1}, nil
}

func (e *countingEmbedder) Dimensions() int { return 2 }
func (e *countingEmbedder) Ready() bool     { return true }

// batchFailStore 批量写入失败，单条写入成功
type batchFailStore struct {
	memory  VectorStore
	upserts int
}

func (s *batchFailStore) Upsert(ctx context.Context, records []VectorRecord) error {
	s.upserts++
	if len(records) > 1 {
		return fmt.Errorf("%w: batch too large", ErrVectorIndex)
	}
	return s.memory.Upsert(ctx, records)
}

func (s *batchFailStore) Query(ctx context.Context, query VectorQuery) ([]Match, error) {
	return s.memory.Query(ctx, query)
}

func (s *batchFailStore) Ready() bool { return true }

func writeDocument(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestIngestor(embedder Embedder, store VectorStore, chunkSize, batchSize int) *Ingestor {
	return NewIngestor(NewFileParserManager(), NewChunker(chunkSize), embedder, store, zap.NewNop(), IngestorOptions{
		BatchSize: batchSize,
	})
}

func TestIngestFileStoresDeterministicIDs(t *testing.T) {
	dir := t.TempDir()
	path := writeDocument(t, dir, "guide.txt", strings.Repeat("a", 25))

	embedder := &countingEmbedder{}
	store := NewMemoryVectorStore()
	ingestor := newTestIngestor(embedder, store, 10, 10)

	report, err := ingestor.IngestFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Chunks)
	assert.Equal(t, 3, report.Vectors)
	assert.Equal(t, 0, report.ChunksFailed)
	assert.Equal(t, 3, embedder.calls)

	matches, err := store.Query(context.Background(), VectorQuery{
		Vector: []float32{10, 1}, TopK: 10, IncludeMetadata: true,
	})
	require.NoError(t, err)
	require.Len(t, matches, 3)

	ids := make(map[string]bool)
	for _, match := range matches {
		ids[match.ID] = true
		assert.Equal(t, "guide.txt", match.Metadata.Source)
		assert.Equal(t, 3, match.Metadata.TotalChunks)
	}
	assert.True(t, ids["guide.txt::0"])
	assert.True(t, ids["guide.txt::1"])
	assert.True(t, ids["guide.txt::2"])
}

func TestIngestFileReingestDoesNotDuplicate(t *testing.T) {
	dir := t.TempDir()
	path := writeDocument(t, dir, "guide.txt", strings.Repeat("b", 25))

	store := NewMemoryVectorStore()
	ingestor := newTestIngestor(&countingEmbedder{}, store, 10, 10)

	_, err := ingestor.IngestFile(context.Background(), path)
	require.NoError(t, err)
	_, err = ingestor.IngestFile(context.Background(), path)
	require.NoError(t, err)

	matches, err := store.Query(context.Background(), VectorQuery{Vector: []float32{10, 1}, TopK: 100})
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}

func TestIngestFileSkipsFailedChunks(t *testing.T) {
	dir := t.TempDir()
	// 第二个块包含触发失败的标记
	path := writeDocument(t, dir, "guide.txt", "aaaaaaaaaaFAILxxxxxxcccccccccc")

	embedder := &countingEmbedder{failWhen: "FAIL"}
	store := NewMemoryVectorStore()
	ingestor := newTestIngestor(embedder, store, 10, 10)

	report, err := ingestor.IngestFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Chunks)
	assert.Equal(t, 1, report.ChunksFailed)
	assert.Equal(t, 2, report.Vectors)
}

func TestIngestFileBatchFallback(t *testing.T) {
	dir := t.TempDir()
	path := writeDocument(t, dir, "guide.txt", strings.Repeat("c", 30))

	store := &batchFailStore{memory: NewMemoryVectorStore()}
	ingestor := newTestIngestor(&countingEmbedder{}, store, 10, 10)

	report, err := ingestor.IngestFile(context.Background(), path)
	require.NoError(t, err)

	// 批量失败后逐条重试：1次批量 + 3次单条
	assert.Equal(t, 3, report.Vectors)
	assert.Equal(t, 4, store.upserts)
}

func TestIngestFileEmptyDocument(t *testing.T) {
	dir := t.TempDir()
	path := writeDocument(t, dir, "empty.txt", "   \n  ")

	ingestor := newTestIngestor(&countingEmbedder{}, NewMemoryVectorStore(), 10, 10)

	_, err := ingestor.IngestFile(context.Background(), path)
	require.ErrorIs(t, err, ErrDocumentExtraction)
}

func TestIngestDirectoryMissingDir(t *testing.T) {
	ingestor := newTestIngestor(&countingEmbedder{}, NewMemoryVectorStore(), 10, 10)

	_, err := ingestor.IngestDirectory(context.Background(), "/nonexistent/documents")
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestIngestDirectoryNoPDFFiles(t *testing.T) {
	dir := t.TempDir()
	writeDocument(t, dir, "notes.txt", "plain text only")

	embedder := &countingEmbedder{}
	ingestor := newTestIngestor(embedder, NewMemoryVectorStore(), 10, 10)

	_, err := ingestor.IngestDirectory(context.Background(), dir)
	require.ErrorIs(t, err, ErrConfiguration)
	// 配置错误要在任何向量化调用之前返回
	assert.Equal(t, 0, embedder.calls)
}
