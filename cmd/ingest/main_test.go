package main

import (
	"testing"

	"github.com/medassist/backend-go/internal/config"
	"github.com/medassist/backend-go/internal/knowledge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ingestConfig() *config.Config {
	return &config.Config{
		AI: config.AIConfig{OpenAIAPIKey: "sk-test"},
		Knowledge: config.KnowledgeConfig{
			VectorStore: config.VectorStoreConfig{
				Provider: "milvus",
				Milvus: config.MilvusConfig{
					Address:    "localhost:19530",
					Collection: "medassist_passages",
				},
			},
		},
	}
}

func TestCheckRequiredConfigComplete(t *testing.T) {
	assert.NoError(t, checkRequiredConfig(ingestConfig()))
}

func TestCheckRequiredConfigMissingOpenAIKey(t *testing.T) {
	cfg := ingestConfig()
	cfg.AI.OpenAIAPIKey = ""

	err := checkRequiredConfig(cfg)
	require.ErrorIs(t, err, knowledge.ErrConfiguration)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestCheckRequiredConfigRejectsMemoryProvider(t *testing.T) {
	// MILVUS_ADDRESS未设置时LoadConfig会把provider留在memory，
	// 摄取必须在做任何工作之前拒绝这种配置
	cfg := ingestConfig()
	cfg.Knowledge.VectorStore.Provider = "memory"

	err := checkRequiredConfig(cfg)
	require.ErrorIs(t, err, knowledge.ErrConfiguration)
	assert.Contains(t, err.Error(), "MILVUS_ADDRESS")
}

func TestCheckRequiredConfigMissingMilvusAddress(t *testing.T) {
	cfg := ingestConfig()
	cfg.Knowledge.VectorStore.Milvus.Address = ""

	err := checkRequiredConfig(cfg)
	require.ErrorIs(t, err, knowledge.ErrConfiguration)
	assert.Contains(t, err.Error(), "MILVUS_ADDRESS")
}

func TestCheckRequiredConfigMissingCollection(t *testing.T) {
	cfg := ingestConfig()
	cfg.Knowledge.VectorStore.Milvus.Collection = ""

	err := checkRequiredConfig(cfg)
	require.ErrorIs(t, err, knowledge.ErrConfiguration)
	assert.Contains(t, err.Error(), "MILVUS_COLLECTION")
}
