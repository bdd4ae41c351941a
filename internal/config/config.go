package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	AI        AIConfig
	Knowledge KnowledgeConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type AIConfig struct {
	OpenAIAPIKey   string
	EmbeddingModel string
	GroqAPIKey     string
	GroqBaseURL    string
	ChatModel      string
	Temperature    float64
	TopP           float64
	MaxTokens      int
	RequestTimeout int // 秒，整条请求链路的超时
}

type KnowledgeConfig struct {
	ChunkSize    int
	DocumentsDir string
	Retrieval    RetrievalConfig
	Ingest       IngestConfig
	VectorStore  VectorStoreConfig
}

type RetrievalConfig struct {
	TopK           int
	ScoreThreshold float64
	SnippetLimit   int
}

type IngestConfig struct {
	BatchSize    int
	EmbedDelayMs int
	BatchDelayMs int
}

type VectorStoreConfig struct {
	Provider string
	Milvus   MilvusConfig
}

type MilvusConfig struct {
	Address    string
	Username   string
	Password   string
	Collection string
	Database   string
	TLS        bool
	VectorSize int
	Distance   string
}

var AppConfig *Config

func LoadConfig() error {
	// 设置默认值
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")

	// AI配置默认值
	viper.SetDefault("ai.embedding_model", "text-embedding-3-small")
	viper.SetDefault("ai.groq_base_url", "")
	viper.SetDefault("ai.chat_model", "mixtral-8x7b-32768")
	viper.SetDefault("ai.temperature", 0.7)
	viper.SetDefault("ai.top_p", 1.0)
	viper.SetDefault("ai.max_tokens", 1024)
	viper.SetDefault("ai.request_timeout", 60)

	// 知识库配置默认值
	viper.SetDefault("knowledge.chunk_size", 3000)
	viper.SetDefault("knowledge.documents_dir", "./documents")
	viper.SetDefault("knowledge.retrieval.top_k", 5)
	viper.SetDefault("knowledge.retrieval.score_threshold", 0.7)
	viper.SetDefault("knowledge.retrieval.snippet_limit", 800)
	viper.SetDefault("knowledge.ingest.batch_size", 10)
	viper.SetDefault("knowledge.ingest.embed_delay_ms", 100)
	viper.SetDefault("knowledge.ingest.batch_delay_ms", 1000)
	viper.SetDefault("knowledge.vector_store.provider", "memory")
	viper.SetDefault("knowledge.vector_store.milvus.address", "localhost:19530")
	viper.SetDefault("knowledge.vector_store.milvus.collection", "medassist_passages")
	viper.SetDefault("knowledge.vector_store.milvus.database", "default")
	viper.SetDefault("knowledge.vector_store.milvus.tls", false)
	viper.SetDefault("knowledge.vector_store.milvus.vector_size", 1536)
	viper.SetDefault("knowledge.vector_store.milvus.distance", "cosine")

	// 读取环境变量
	viper.SetEnvPrefix("MEDASSIST")
	viper.AutomaticEnv()

	// 运维侧常用变量显式覆盖
	if port := os.Getenv("PORT"); port != "" {
		viper.Set("server.port", port)
	}
	if env := os.Getenv("ENV"); env != "" {
		viper.Set("server.env", env)
	}
	if openaiKey := os.Getenv("OPENAI_API_KEY"); openaiKey != "" {
		viper.Set("ai.openai_api_key", openaiKey)
	}
	if embeddingModel := os.Getenv("OPENAI_EMBEDDING_MODEL"); embeddingModel != "" {
		viper.Set("ai.embedding_model", embeddingModel)
	}
	if groqKey := os.Getenv("GROQ_API_KEY"); groqKey != "" {
		viper.Set("ai.groq_api_key", groqKey)
	}
	if groqBaseURL := os.Getenv("GROQ_BASE_URL"); groqBaseURL != "" {
		viper.Set("ai.groq_base_url", groqBaseURL)
	}
	if chatModel := os.Getenv("GROQ_CHAT_MODEL"); chatModel != "" {
		viper.Set("ai.chat_model", chatModel)
	}
	if timeout := os.Getenv("REQUEST_TIMEOUT"); timeout != "" {
		viper.Set("ai.request_timeout", timeout)
	}
	if docsDir := os.Getenv("DOCUMENTS_DIR"); docsDir != "" {
		viper.Set("knowledge.documents_dir", docsDir)
	}
	if provider := os.Getenv("VECTOR_STORE_PROVIDER"); provider != "" {
		viper.Set("knowledge.vector_store.provider", provider)
	}
	if milvusAddress := os.Getenv("MILVUS_ADDRESS"); milvusAddress != "" {
		viper.Set("knowledge.vector_store.milvus.address", milvusAddress)
		viper.Set("knowledge.vector_store.provider", "milvus")
	} else if milvusHost := os.Getenv("MILVUS_HOST"); milvusHost != "" {
		// 兼容MILVUS_HOST环境变量
		port := os.Getenv("MILVUS_PORT")
		if port == "" {
			port = "19530"
		}
		viper.Set("knowledge.vector_store.milvus.address", fmt.Sprintf("%s:%s", milvusHost, port))
		viper.Set("knowledge.vector_store.provider", "milvus")
	}
	if milvusUsername := os.Getenv("MILVUS_USERNAME"); milvusUsername != "" {
		viper.Set("knowledge.vector_store.milvus.username", milvusUsername)
	}
	if milvusPassword := os.Getenv("MILVUS_PASSWORD"); milvusPassword != "" {
		viper.Set("knowledge.vector_store.milvus.password", milvusPassword)
	}
	if milvusCollection := os.Getenv("MILVUS_COLLECTION"); milvusCollection != "" {
		viper.Set("knowledge.vector_store.milvus.collection", milvusCollection)
	}
	if milvusDatabase := os.Getenv("MILVUS_DATABASE"); milvusDatabase != "" {
		viper.Set("knowledge.vector_store.milvus.database", milvusDatabase)
	}
	if milvusTLS := os.Getenv("MILVUS_TLS"); milvusTLS == "true" {
		viper.Set("knowledge.vector_store.milvus.tls", true)
	}

	AppConfig = &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		AI: AIConfig{
			OpenAIAPIKey:   viper.GetString("ai.openai_api_key"),
			EmbeddingModel: viper.GetString("ai.embedding_model"),
			GroqAPIKey:     viper.GetString("ai.groq_api_key"),
			GroqBaseURL:    viper.GetString("ai.groq_base_url"),
			ChatModel:      viper.GetString("ai.chat_model"),
			Temperature:    viper.GetFloat64("ai.temperature"),
			TopP:           viper.GetFloat64("ai.top_p"),
			MaxTokens:      viper.GetInt("ai.max_tokens"),
			RequestTimeout: viper.GetInt("ai.request_timeout"),
		},
		Knowledge: KnowledgeConfig{
			ChunkSize:    viper.GetInt("knowledge.chunk_size"),
			DocumentsDir: viper.GetString("knowledge.documents_dir"),
			Retrieval: RetrievalConfig{
				TopK:           viper.GetInt("knowledge.retrieval.top_k"),
				ScoreThreshold: viper.GetFloat64("knowledge.retrieval.score_threshold"),
				SnippetLimit:   viper.GetInt("knowledge.retrieval.snippet_limit"),
			},
			Ingest: IngestConfig{
				BatchSize:    viper.GetInt("knowledge.ingest.batch_size"),
				EmbedDelayMs: viper.GetInt("knowledge.ingest.embed_delay_ms"),
				BatchDelayMs: viper.GetInt("knowledge.ingest.batch_delay_ms"),
			},
			VectorStore: VectorStoreConfig{
				Provider: viper.GetString("knowledge.vector_store.provider"),
				Milvus: MilvusConfig{
					Address:    viper.GetString("knowledge.vector_store.milvus.address"),
					Username:   viper.GetString("knowledge.vector_store.milvus.username"),
					Password:   viper.GetString("knowledge.vector_store.milvus.password"),
					Collection: viper.GetString("knowledge.vector_store.milvus.collection"),
					Database:   viper.GetString("knowledge.vector_store.milvus.database"),
					TLS:        viper.GetBool("knowledge.vector_store.milvus.tls"),
					VectorSize: viper.GetInt("knowledge.vector_store.milvus.vector_size"),
					Distance:   viper.GetString("knowledge.vector_store.milvus.distance"),
				},
			},
		},
	}

	return nil
}
