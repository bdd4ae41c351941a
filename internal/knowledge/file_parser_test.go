package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileParserManagerSupports(t *testing.T) {
	manager := NewFileParserManager()

	assert.True(t, manager.Supports("guide.pdf"))
	assert.True(t, manager.Supports("GUIDE.PDF"))
	assert.True(t, manager.Supports("notes.txt"))
	assert.True(t, manager.Supports("readme.md"))
	assert.False(t, manager.Supports("image.png"))
	assert.False(t, manager.Supports("data.docx"))
}

func TestFileParserManagerParseText(t *testing.T) {
	manager := NewFileParserManager()

	text, err := manager.ParseFile(strings.NewReader("hello world"), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestFileParserManagerUnsupportedType(t *testing.T) {
	manager := NewFileParserManager()

	_, err := manager.ParseFile(strings.NewReader("data"), "image.png")
	require.Error(t, err)
}
