package knowledge

import "strings"

// Chunk 表示分块后的文本结构
type Chunk struct {
	Index int
	Total int
	Text  string
}

// Chunker 文本分块器。按固定rune窗口切分，不做语义断句：
// 窗口按顺序无缝覆盖原文，仅对每块做首尾空白裁剪，保证摄取可重复。
type Chunker struct {
	chunkSize int
}

// NewChunker 创建分块器
func NewChunker(chunkSize int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 3000
	}
	return &Chunker{chunkSize: chunkSize}
}

// Split 将文本切分为多个chunk，丢弃裁剪后为空的块
func (c *Chunker) Split(text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []Chunk
	for start := 0; start < len(runes); start += c.chunkSize {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunkText := strings.TrimSpace(string(runes[start:end]))
		if chunkText == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  chunkText,
		})
	}

	// 总块数要等全部窗口切完才确定
	for i := range chunks {
		chunks[i].Total = len(chunks)
	}

	return chunks
}

// ChunkSize 返回配置的窗口大小
func (c *Chunker) ChunkSize() int {
	return c.chunkSize
}
