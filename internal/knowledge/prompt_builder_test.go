package knowledge

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder 固定返回同一向量
type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) Dimensions() int { return len(f.vector) }
func (f *fakeEmbedder) Ready() bool     { return true }

// fakeVectorStore 固定返回预设命中
type fakeVectorStore struct {
	matches   []Match
	err       error
	upserts   int
	lastQuery VectorQuery
}

func (f *fakeVectorStore) Upsert(ctx context.Context, records []VectorRecord) error {
	f.upserts++
	return f.err
}

func (f *fakeVectorStore) Query(ctx context.Context, query VectorQuery) ([]Match, error) {
	f.lastQuery = query
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

func (f *fakeVectorStore) Ready() bool { return true }

func matchWithScore(id string, score float64) Match {
	return Match{
		ID:    id,
		Score: score,
		Metadata: RecordMetadata{
			Text:   "chunk text for " + id,
			Source: "guide.pdf",
		},
	}
}

func TestFilterByScore(t *testing.T) {
	matches := []Match{
		matchWithScore("a", 0.9),
		matchWithScore("b", 0.75),
		matchWithScore("c", 0.6),
		matchWithScore("d", 0.71),
	}

	relevant := FilterByScore(matches, 0.7)
	require.Len(t, relevant, 3)
	assert.Equal(t, "a", relevant[0].ID)
	assert.Equal(t, "b", relevant[1].ID)
	assert.Equal(t, "d", relevant[2].ID)
}

func TestFilterByScoreThresholdIsExclusive(t *testing.T) {
	// 恰好等于阈值的不算相关
	relevant := FilterByScore([]Match{matchWithScore("a", 0.7)}, 0.7)
	assert.Empty(t, relevant)
}

func TestAssembleMessages(t *testing.T) {
	history := []ConversationTurn{
		{Sender: "user", Text: "我头疼"},
		{Sender: "bot", Text: "疼了多久了？"},
	}

	messages := AssembleMessages("system prompt", history, "两天了")
	require.Len(t, messages, 4)
	assert.Equal(t, RoleSystem, messages[0].Role)
	assert.Equal(t, "system prompt", messages[0].Content)
	assert.Equal(t, RoleUser, messages[1].Role)
	assert.Equal(t, "我头疼", messages[1].Content)
	assert.Equal(t, RoleAssistant, messages[2].Role)
	assert.Equal(t, RoleUser, messages[3].Role)
	assert.Equal(t, "两天了", messages[3].Content)
}

func TestBuildSystemPromptModeSection(t *testing.T) {
	allopathy := BuildSystemPrompt(ModeAllopathy, "")
	homeopathy := BuildSystemPrompt(ModeHomeopathy, "")

	assert.Contains(t, allopathy, "treatment preference mode (allopathy)")
	assert.Contains(t, allopathy, "FDA-approved OTC medications")
	assert.Contains(t, homeopathy, "treatment preference mode (homeopathy)")
	assert.Contains(t, homeopathy, "Oscillococcinum")

	// 除模式段落外，两个提示词应完全一致
	allopathyRest := strings.ReplaceAll(allopathy, ModeAllopathy.Guidance(), "")
	allopathyRest = strings.ReplaceAll(allopathyRest, "(allopathy)", "")
	homeopathyRest := strings.ReplaceAll(homeopathy, ModeHomeopathy.Guidance(), "")
	homeopathyRest = strings.ReplaceAll(homeopathyRest, "(homeopathy)", "")
	assert.Equal(t, allopathyRest, homeopathyRest)
}

func TestBuildSystemPromptUnknownModeFallsBack(t *testing.T) {
	prompt := BuildSystemPrompt(TreatmentMode("ayurveda"), "")

	// 模式名原样出现，指导片段回退到general
	assert.Contains(t, prompt, "treatment preference mode (ayurveda)")
	assert.Contains(t, prompt, ModeGeneral.Guidance())
}

func TestBuildSystemPromptWithContext(t *testing.T) {
	withContext := BuildSystemPrompt(ModeGeneral, "Context 1 (Source: guide.pdf, Relevance: 0.90):\nsome text...")
	without := BuildSystemPrompt(ModeGeneral, "")

	assert.Contains(t, withContext, "📚 RELEVANT MEDICAL KNOWLEDGE BASE CONTEXT:")
	assert.True(t, strings.HasPrefix(withContext, without))
	assert.NotContains(t, without, "📚")
}

func TestPromptBuilderBuildWithMatches(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2}}
	store := &fakeVectorStore{matches: []Match{
		matchWithScore("doc.pdf::0", 0.91),
		matchWithScore("doc.pdf::1", 0.72),
		matchWithScore("doc.pdf::2", 0.55),
	}}
	builder := NewPromptBuilder(embedder, store, PromptBuilderOptions{})

	messages, debug, err := builder.Build(context.Background(), "喉咙痛怎么办", nil, ModeGeneral)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	// 检索参数：topK默认5，带元数据不带向量
	assert.Equal(t, 5, store.lastQuery.TopK)
	assert.True(t, store.lastQuery.IncludeMetadata)
	assert.False(t, store.lastQuery.IncludeValues)

	// 0.55低于阈值，只有两个片段进入上下文
	assert.Contains(t, messages[0].Content, "Context 1 (Source: guide.pdf, Relevance: 0.91)")
	assert.Contains(t, messages[0].Content, "Context 2 (Source: guide.pdf, Relevance: 0.72)")
	assert.NotContains(t, messages[0].Content, "Context 3")

	assert.True(t, debug.ContextUsed)
	assert.Equal(t, 3, debug.TotalMatches)
	assert.Equal(t, 2, debug.RelevantMatches)
	assert.Equal(t, []string{"0.910", "0.720", "0.550"}, debug.TopScores)
	assert.Equal(t, "✅ RAG Active", debug.RagStatus)
	assert.True(t, debug.HasContext)
	assert.InDelta(t, 0.91, debug.TopScore, 1e-9)
	require.Len(t, debug.Sources, 3)
	assert.Equal(t, "guide.pdf", debug.Sources[0].Source)
	assert.True(t, strings.HasSuffix(debug.Sources[0].TextPreview, "..."))
}

func TestPromptBuilderBuildNoMatches(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2}}
	store := &fakeVectorStore{}
	builder := NewPromptBuilder(embedder, store, PromptBuilderOptions{})

	messages, debug, err := builder.Build(context.Background(), "hello", nil, ModeGeneral)
	require.NoError(t, err)

	// 无命中时系统提示词就是基础提示词
	assert.Equal(t, BuildSystemPrompt(ModeGeneral, ""), messages[0].Content)
	assert.False(t, debug.ContextUsed)
	assert.False(t, debug.HasContext)
	assert.Equal(t, 0, debug.ContextLength)
	assert.Equal(t, "❌ No Context Found", debug.RagStatus)
	assert.Empty(t, debug.TopScores)
}

func TestPromptBuilderBuildEmbedError(t *testing.T) {
	embedder := &fakeEmbedder{err: fmt.Errorf("%w: boom", ErrEmbedding)}
	store := &fakeVectorStore{}
	builder := NewPromptBuilder(embedder, store, PromptBuilderOptions{})

	_, _, err := builder.Build(context.Background(), "hello", nil, ModeGeneral)
	require.ErrorIs(t, err, ErrEmbedding)
}

func TestPromptBuilderSnippetTruncation(t *testing.T) {
	longText := strings.Repeat("x", 900)
	embedder := &fakeEmbedder{vector: []float32{0.1}}
	store := &fakeVectorStore{matches: []Match{{
		ID:       "doc.pdf::0",
		Score:    0.95,
		Metadata: RecordMetadata{Text: longText, Source: "doc.pdf"},
	}}}
	builder := NewPromptBuilder(embedder, store, PromptBuilderOptions{})

	messages, _, err := builder.Build(context.Background(), "hi", nil, ModeGeneral)
	require.NoError(t, err)

	assert.Contains(t, messages[0].Content, strings.Repeat("x", 800)+"...")
	assert.NotContains(t, messages[0].Content, strings.Repeat("x", 801))
}
