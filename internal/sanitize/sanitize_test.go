package sanitize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	assert.Equal(t, "a_b_c_d", Sanitize(`a/b\c:d`))
	assert.Equal(t, "plain", Sanitize("plain"))
}

func TestUniqueOutputPath(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "Inbox.mbox")

	p, err := UniqueOutputPath(base, false)
	require.NoError(t, err)
	assert.Equal(t, base, p)

	require.NoError(t, os.WriteFile(base, []byte("x"), 0o644))
	p, err = UniqueOutputPath(base, false)
	require.NoError(t, err)
	assert.Equal(t, base+"00000001", p)

	p, err = UniqueOutputPath(base, true)
	require.NoError(t, err)
	assert.Equal(t, base, p, "overwrite bypasses bumping entirely")
}

func TestBackslashQuote(t *testing.T) {
	assert.Equal(t, `foo \"bar\" \\baz`, BackslashQuote(`foo "bar" \baz`))
}

func TestRFC2231Encode(t *testing.T) {
	// In-set bytes pass through unescaped.
	assert.Equal(t, "utf-8''report-2024.pdf", RFC2231Encode("report-2024.pdf"))

	// Space and non-ASCII bytes get lowercase %HH escapes.
	got := RFC2231Encode("résumé final.pdf")
	assert.Contains(t, got, "utf-8''")
	assert.NotContains(t, got, "%C3", "hex digits must be lowercase")
	assert.Contains(t, got, "%20", "space must be percent-escaped")
}
