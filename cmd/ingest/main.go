package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/medassist/backend-go/app/bootstrap"
	"github.com/medassist/backend-go/internal/config"
	"github.com/medassist/backend-go/internal/knowledge"
	"github.com/medassist/backend-go/internal/logger"
	"go.uber.org/zap"
)

func main() {
	dir := flag.String("dir", "", "目录路径，默认使用 DOCUMENTS_DIR 配置")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	if err := logger.InitLogger(); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	if err := config.LoadConfig(); err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	cfg := config.AppConfig

	documentsDir := cfg.Knowledge.DocumentsDir
	if *dir != "" {
		documentsDir = *dir
	}

	if err := checkRequiredConfig(cfg); err != nil {
		logger.Error("configuration check failed", zap.Error(err))
		os.Exit(1)
	}

	embedder := bootstrap.BuildEmbedder(cfg)
	store, err := bootstrap.BuildVectorStore(cfg, embedder.Dimensions())
	if err != nil {
		logger.Error("failed to connect to vector store", zap.Error(err))
		os.Exit(1)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	ingestor := knowledge.NewIngestor(
		knowledge.NewFileParserManager(),
		knowledge.NewChunker(cfg.Knowledge.ChunkSize),
		embedder,
		store,
		logger.GetLogger(),
		knowledge.IngestorOptions{
			BatchSize:  cfg.Knowledge.Ingest.BatchSize,
			EmbedDelay: time.Duration(cfg.Knowledge.Ingest.EmbedDelayMs) * time.Millisecond,
			BatchDelay: time.Duration(cfg.Knowledge.Ingest.BatchDelayMs) * time.Millisecond,
		},
	)

	report, err := ingestor.IngestDirectory(context.Background(), documentsDir)
	if err != nil {
		logger.Error("ingestion failed", zap.String("dir", documentsDir), zap.Error(err))
		os.Exit(1)
	}

	logger.Info("ingestion complete",
		zap.Int("documents", report.Documents),
		zap.Int("documents_failed", report.DocumentsFailed),
		zap.Int("chunks", report.Chunks),
		zap.Int("chunks_failed", report.ChunksFailed),
		zap.Int("vectors", report.Vectors))
}

// checkRequiredConfig 校验摄取运行必需的配置项。
// 摄取结果必须落到持久化向量库，内存实现进程退出即丢失，
// 所以向量库未配置时直接拒绝运行，而不是静默写进内存。
func checkRequiredConfig(cfg *config.Config) error {
	if cfg.AI.OpenAIAPIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY is not set", knowledge.ErrConfiguration)
	}
	if cfg.Knowledge.VectorStore.Provider != "milvus" {
		return fmt.Errorf("%w: MILVUS_ADDRESS is not set, ingestion requires a persistent vector store", knowledge.ErrConfiguration)
	}
	mc := cfg.Knowledge.VectorStore.Milvus
	if mc.Address == "" {
		return fmt.Errorf("%w: MILVUS_ADDRESS is not set", knowledge.ErrConfiguration)
	}
	if mc.Collection == "" {
		return fmt.Errorf("%w: MILVUS_COLLECTION is not set", knowledge.ErrConfiguration)
	}
	return nil
}
