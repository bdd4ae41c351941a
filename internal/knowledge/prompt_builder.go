package knowledge

import (
	"context"
	"fmt"
	"strings"
)

// TreatmentMode 治疗偏好模式，决定系统提示词中的用药指导段落
type TreatmentMode string

const (
	ModeGeneral     TreatmentMode = "general"
	ModeAllopathy   TreatmentMode = "allopathy"
	ModeHomeopathy  TreatmentMode = "homeopathy"
	ModeNaturopathy TreatmentMode = "naturopathy"
)

// modeGuidance 各模式对应的指导片段。未识别的模式回退到general片段，
// 模式名原样出现在提示词里，只影响措辞，不算错误。
var modeGuidance = map[TreatmentMode]string{
	ModeGeneral:     "Provide options across allopathy, homeopathy, and naturopathy",
	ModeAllopathy:   "Focus on FDA-approved OTC medications (Tylenol, Benadryl, Pepto-Bismol, etc.)",
	ModeHomeopathy:  "Focus on homeopathic remedies (Oscillococcinum, Arnica montana, etc.)",
	ModeNaturopathy: "Focus on herbal remedies, essential oils, dietary adjustments, and lifestyle modifications",
}

// Guidance 返回该模式的指导片段
func (m TreatmentMode) Guidance() string {
	if guidance, ok := modeGuidance[m]; ok {
		return guidance
	}
	return modeGuidance[ModeGeneral]
}

const basePromptHeader = `You are an AI-powered medical assistant trained to diagnose common, non-emergency medical symptoms and recommend appropriate over-the-counter (OTC) treatments available in the United States. Your recommendations span across allopathy, homeopathy, and naturopathy, tailored to user preferences and symptom profiles.

Your task is to:
- Ask clarifying questions to understand the user's symptoms, duration, severity, age, and existing health conditions or medications
- Identify potential common illnesses or conditions, such as cold, allergies, indigestion, minor headaches, muscle pain, or skin irritation
- Provide personalized recommendations for over-the-counter treatment options
- Explain how each treatment works, possible side effects, and when to seek professional care
- Respect limitations — clearly state when the condition may require a licensed medical professional or emergency attention`

const basePromptFooter = `Present information in a friendly, informative, and easy to understand manner. Use bullet points or short paragraphs for clarity.

⚠️ IMPORTANT DISCLAIMERS:
- Always recommend consulting with a healthcare professional for serious symptoms
- This is for informational purposes only and not a substitute for professional medical advice
- If symptoms worsen or persist, seek immediate medical attention`

const contextHeader = "📚 RELEVANT MEDICAL KNOWLEDGE BASE CONTEXT:"

const contextFooter = "Use this context to inform your recommendations when relevant, but always prioritize user safety and appropriate medical disclaimers."

// ConversationTurn 调用方传入的历史对话轮次。服务端无会话状态，
// 每次请求都要携带完整历史。
type ConversationTurn struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// SourceInfo 调试信息里的命中来源摘要
type SourceInfo struct {
	Source      string `json:"source"`
	Score       string `json:"score"`
	TextPreview string `json:"textPreview"`
}

// RetrievalDebug 检索诊断信息。仅用于观测，绝不影响生成结果。
type RetrievalDebug struct {
	ContextUsed     bool         `json:"contextUsed"`
	TotalMatches    int          `json:"totalMatches"`
	RelevantMatches int          `json:"relevantMatches"`
	TopScores       []string     `json:"topScores"`
	Sources         []SourceInfo `json:"sources"`
	ContextLength   int          `json:"contextLength"`
	HasContext      bool         `json:"hasContext"`
	RagStatus       string       `json:"ragStatus"`

	// TopScore 供指标采集用，不进响应体
	TopScore float64 `json:"-"`
}

// PromptBuilderOptions 检索与提示词组装参数
type PromptBuilderOptions struct {
	TopK           int
	ScoreThreshold float64
	SnippetLimit   int
}

// PromptBuilder 检索增强提示词构建器：向量化用户消息，查询向量库，
// 按相似度阈值过滤，把命中片段组装进系统提示词，再拼出完整消息序列。
type PromptBuilder struct {
	embedder    Embedder
	vectorStore VectorStore
	opts        PromptBuilderOptions
}

// NewPromptBuilder 创建提示词构建器
func NewPromptBuilder(embedder Embedder, vectorStore VectorStore, opts PromptBuilderOptions) *PromptBuilder {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.ScoreThreshold <= 0 {
		opts.ScoreThreshold = 0.7
	}
	if opts.SnippetLimit <= 0 {
		opts.SnippetLimit = 800
	}
	return &PromptBuilder{
		embedder:    embedder,
		vectorStore: vectorStore,
		opts:        opts,
	}
}

// Build 构建发送给补全服务的消息序列和检索诊断信息
func (b *PromptBuilder) Build(ctx context.Context, message string, history []ConversationTurn, mode TreatmentMode) ([]ChatMessage, *RetrievalDebug, error) {
	vector, err := b.embedder.Embed(ctx, message)
	if err != nil {
		return nil, nil, err
	}

	matches, err := b.vectorStore.Query(ctx, VectorQuery{
		Vector:          vector,
		TopK:            b.opts.TopK,
		IncludeMetadata: true,
		IncludeValues:   false,
	})
	if err != nil {
		return nil, nil, err
	}

	relevant := FilterByScore(matches, b.opts.ScoreThreshold)
	contextText := b.renderContext(relevant)

	systemPrompt := BuildSystemPrompt(mode, contextText)
	messages := AssembleMessages(systemPrompt, history, message)
	debug := buildDebug(matches, relevant, contextText)

	return messages, debug, nil
}

// FilterByScore 保留相似度严格大于threshold的命中，保持原有顺序
func FilterByScore(matches []Match, threshold float64) []Match {
	var relevant []Match
	for _, match := range matches {
		if match.Score > threshold {
			relevant = append(relevant, match)
		}
	}
	return relevant
}

// renderContext 把命中片段渲染为带来源标注的上下文块
func (b *PromptBuilder) renderContext(relevant []Match) string {
	if len(relevant) == 0 {
		return ""
	}

	snippets := make([]string, 0, len(relevant))
	for i, match := range relevant {
		source := match.Metadata.Source
		if source == "" {
			source = "Unknown"
		}
		snippets = append(snippets, fmt.Sprintf("Context %d (Source: %s, Relevance: %.2f):\n%s...",
			i+1, source, match.Score, truncateRunes(match.Metadata.Text, b.opts.SnippetLimit)))
	}
	return strings.Join(snippets, "\n\n")
}

// BuildSystemPrompt 组装系统提示词：固定角色与任务说明 + 模式指导 +
// 安全声明，有检索上下文时追加知识库片段。除模式段落外各模式逐字节一致。
func BuildSystemPrompt(mode TreatmentMode, contextText string) string {
	modeSection := fmt.Sprintf("Based on the user's current treatment preference mode (%s), adjust your recommendations:\n- %s", mode, mode.Guidance())

	basePrompt := strings.Join([]string{basePromptHeader, modeSection, basePromptFooter}, "\n\n")
	if contextText == "" {
		return basePrompt
	}

	return strings.Join([]string{basePrompt, contextHeader + "\n" + contextText, contextFooter}, "\n\n")
}

// AssembleMessages 拼装最终消息序列：system + 历史轮次 + 新消息。
// 历史顺序保持不变，sender为user映射user角色，其余一律映射assistant。
func AssembleMessages(systemPrompt string, history []ConversationTurn, message string) []ChatMessage {
	messages := make([]ChatMessage, 0, len(history)+2)
	messages = append(messages, ChatMessage{Role: RoleSystem, Content: systemPrompt})
	for _, turn := range history {
		role := RoleAssistant
		if turn.Sender == "user" {
			role = RoleUser
		}
		messages = append(messages, ChatMessage{Role: role, Content: turn.Text})
	}
	messages = append(messages, ChatMessage{Role: RoleUser, Content: message})
	return messages
}

func buildDebug(matches, relevant []Match, contextText string) *RetrievalDebug {
	debug := &RetrievalDebug{
		ContextUsed:     len(matches) > 0,
		TotalMatches:    len(matches),
		RelevantMatches: len(relevant),
		TopScores:       []string{},
		Sources:         []SourceInfo{},
		ContextLength:   len(contextText),
		HasContext:      contextText != "",
		RagStatus:       "❌ No Context Found",
	}
	if len(matches) > 0 {
		debug.RagStatus = "✅ RAG Active"
		debug.TopScore = matches[0].Score
	}

	for i, match := range matches {
		if i >= 3 {
			break
		}
		debug.TopScores = append(debug.TopScores, fmt.Sprintf("%.3f", match.Score))
		debug.Sources = append(debug.Sources, SourceInfo{
			Source:      match.Metadata.Source,
			Score:       fmt.Sprintf("%.3f", match.Score),
			TextPreview: truncateRunes(match.Metadata.Text, 100) + "...",
		})
	}

	return debug
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
