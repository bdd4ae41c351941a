package knowledge

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ChatMessage 对话消息（system/user/assistant）
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompletionOptions 采样参数
type CompletionOptions struct {
	Temperature float32
	TopP        float32
	MaxTokens   int
}

// ChatCompleter 定义对话补全接口
type ChatCompleter interface {
	Complete(ctx context.Context, messages []ChatMessage, opts CompletionOptions) (string, error)
	Ready() bool
}

// NoopCompleter 默认占位实现
type NoopCompleter struct{}

func (n *NoopCompleter) Complete(ctx context.Context, messages []ChatMessage, opts CompletionOptions) (string, error) {
	return "", fmt.Errorf("%w: completion provider not configured", ErrCompletion)
}

func (n *NoopCompleter) Ready() bool {
	return false
}

const groqBaseURL = "https://api.groq.com/openai/v1"

// GroqCompleter 通过Groq的OpenAI兼容接口做对话补全
type GroqCompleter struct {
	client *openai.Client
	model  string
}

// NewGroqCompleter 创建Groq对话补全客户端。baseURL为空时使用官方地址，
// 便于指向其他OpenAI兼容服务。
func NewGroqCompleter(apiKey, model, baseURL string) ChatCompleter {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return &NoopCompleter{}
	}
	if model == "" {
		model = "mixtral-8x7b-32768"
	}
	if baseURL == "" {
		baseURL = groqBaseURL
	}

	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.BaseURL = baseURL

	return &GroqCompleter{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}
}

func (g *GroqCompleter) Complete(ctx context.Context, messages []ChatMessage, opts CompletionOptions) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("%w: groq client not initialized", ErrCompletion)
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("%w: no messages to send", ErrCompletion)
	}

	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    chatMessages,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		MaxTokens:   opts.MaxTokens,
		Stream:      false,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompletion, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrCompletion)
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		content = "No response generated."
	}
	return content, nil
}

func (g *GroqCompleter) Ready() bool {
	return g.client != nil
}
