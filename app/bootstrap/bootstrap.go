package bootstrap

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/medassist/backend-go/internal/config"
	"github.com/medassist/backend-go/internal/knowledge"
	"github.com/medassist/backend-go/internal/logger"
	"github.com/medassist/backend-go/internal/services"
	"go.uber.org/zap"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	cleanupTasks []func() error

	embedder    knowledge.Embedder
	vectorStore knowledge.VectorStore
	completer   knowledge.ChatCompleter
	chatService *services.ChatService
}

// ChatService returns the wired chat service.
func (a *App) ChatService() *services.ChatService {
	return a.chatService
}

// SetChatService replaces the wired chat service.
func (a *App) SetChatService(svc *services.ChatService) {
	a.chatService = svc
}

// VectorStore returns the active vector store.
func (a *App) VectorStore() knowledge.VectorStore {
	return a.vectorStore
}

// Global app instance for controllers to access
var globalApp *App

// GetApp returns the global app instance
func GetApp() *App {
	return globalApp
}

// SetGlobalApp sets the global app instance
func SetGlobalApp(app *App) {
	globalApp = app
}

// Init bootstraps configuration, logger and the retrieval/completion
// components required by the Beego application.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize structured logger.
	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	// Load dynamic configuration.
	if err := config.LoadConfig(); err != nil {
		return nil, err
	}

	app := &App{}
	cfg := config.AppConfig

	app.embedder = BuildEmbedder(cfg)
	if !app.embedder.Ready() {
		logger.Warn("OpenAI API key not configured, embedding requests will fail")
	}

	store, err := BuildVectorStore(cfg, app.embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	app.vectorStore = store
	if closer, ok := store.(interface{ Close() error }); ok {
		app.cleanupTasks = append(app.cleanupTasks, closer.Close)
	}

	app.completer = BuildCompleter(cfg)
	if !app.completer.Ready() {
		logger.Warn("Groq API key not configured, chat completion requests will fail")
	}

	builder := knowledge.NewPromptBuilder(app.embedder, app.vectorStore, knowledge.PromptBuilderOptions{
		TopK:           cfg.Knowledge.Retrieval.TopK,
		ScoreThreshold: cfg.Knowledge.Retrieval.ScoreThreshold,
		SnippetLimit:   cfg.Knowledge.Retrieval.SnippetLimit,
	})
	app.chatService = services.NewChatService(builder, app.completer, knowledge.CompletionOptions{
		Temperature: float32(cfg.AI.Temperature),
		TopP:        float32(cfg.AI.TopP),
		MaxTokens:   cfg.AI.MaxTokens,
	}, logger.GetLogger())

	logger.Info("MedAssist backend initialized",
		zap.String("vector_store", cfg.Knowledge.VectorStore.Provider),
		zap.String("chat_model", cfg.AI.ChatModel),
		zap.String("embedding_model", cfg.AI.EmbeddingModel))

	return app, nil
}

// BuildEmbedder 按配置构建向量化器。
func BuildEmbedder(cfg *config.Config) knowledge.Embedder {
	return knowledge.NewOpenAIEmbedder(cfg.AI.OpenAIAPIKey, cfg.AI.EmbeddingModel)
}

// BuildCompleter 按配置构建聊天补全客户端。
func BuildCompleter(cfg *config.Config) knowledge.ChatCompleter {
	return knowledge.NewGroqCompleter(cfg.AI.GroqAPIKey, cfg.AI.ChatModel, cfg.AI.GroqBaseURL)
}

// BuildVectorStore 按配置构建向量存储，provider 不认识时回退到内存实现。
func BuildVectorStore(cfg *config.Config, vectorSize int) (knowledge.VectorStore, error) {
	switch cfg.Knowledge.VectorStore.Provider {
	case "milvus":
		mc := cfg.Knowledge.VectorStore.Milvus
		if mc.VectorSize > 0 {
			vectorSize = mc.VectorSize
		}
		return knowledge.NewMilvusVectorStore(knowledge.MilvusOptions{
			Address:    mc.Address,
			Username:   mc.Username,
			Password:   mc.Password,
			Collection: mc.Collection,
			Database:   mc.Database,
			UseTLS:     mc.TLS,
			VectorSize: vectorSize,
			Distance:   mc.Distance,
		})
	case "memory", "":
		return knowledge.NewMemoryVectorStore(), nil
	default:
		logger.Warn("Unknown vector store provider, falling back to memory",
			zap.String("provider", cfg.Knowledge.VectorStore.Provider))
		return knowledge.NewMemoryVectorStore(), nil
	}
}

// Shutdown flushes/logs and closes resources gracefully.
func (a *App) Shutdown() {
	// Execute cleanup tasks in reverse order (best effort).
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			log.Printf("Cleanup error: %v\n", err)
		}
	}

	// Flush logger buffers.
	logger.Sync()
}
