package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupported(t *testing.T) {
	assert.True(t, Supported("notes.pdf"))
	assert.True(t, Supported("notes.txt"))
	assert.True(t, Supported("notes.md"))
	assert.True(t, Supported("NOTES.PDF"))
	assert.False(t, Supported("notes.docx"))
	assert.False(t, Supported("notes"))
}

func TestText(t *testing.T) {
	write := func(t *testing.T, name, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("plain text passes through", func(t *testing.T) {
		content := "First paragraph.\n\nSecond paragraph."
		got, err := Text(write(t, "a.txt", content))
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})

	t.Run("markdown passes through", func(t *testing.T) {
		got, err := Text(write(t, "a.md", "# Title\n\nBody text."))
		require.NoError(t, err)
		assert.Equal(t, "# Title\n\nBody text.", got)
	})

	t.Run("whitespace only is ErrNoText", func(t *testing.T) {
		_, err := Text(write(t, "a.txt", "  \n\t\n"))
		require.ErrorIs(t, err, ErrNoText)
	})

	t.Run("missing file is an extraction error", func(t *testing.T) {
		_, err := Text(filepath.Join(t.TempDir(), "gone.txt"))
		var xerr *ExtractionError
		require.ErrorAs(t, err, &xerr)
	})

	t.Run("unsupported extension is an extraction error", func(t *testing.T) {
		_, err := Text(write(t, "a.docx", "content"))
		var xerr *ExtractionError
		require.ErrorAs(t, err, &xerr)
		assert.Contains(t, xerr.Error(), "unsupported")
	})

	t.Run("malformed pdf is an extraction error not a panic", func(t *testing.T) {
		_, err := Text(write(t, "a.pdf", "%PDF-1.4 garbage"))
		var xerr *ExtractionError
		require.ErrorAs(t, err, &xerr)
	})
}
