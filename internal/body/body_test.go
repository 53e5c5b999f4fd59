package body

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindHTMLCharset(t *testing.T) {
	html := `<html><head><meta http-equiv="Content-Type" content="text/html; charset=ISO-8859-1"></head></html>`
	cs, ok := FindHTMLCharset(html)
	assert.True(t, ok)
	assert.Equal(t, "ISO-8859-1", cs)

	_, ok = FindHTMLCharset("<html><body>no meta here</body></html>")
	assert.False(t, ok)
}

func TestNormalizeCRLF(t *testing.T) {
	assert.Equal(t, "a\nb\nc", NormalizeCRLF("a\r\nb\r\nc"))
}

func TestResolveUTF8PreferredOverridesCharset(t *testing.T) {
	cs, b := Resolve("hello", true, "iso-8859-1", true)
	assert.Equal(t, "utf-8", cs)
	assert.Equal(t, "hello", string(b))
}

func TestResolveTranscodesWhenNotPreferringUTF8(t *testing.T) {
	cs, b := Resolve("cafe", true, "iso-8859-1", false)
	assert.Equal(t, "iso-8859-1", cs)
	assert.Equal(t, "cafe", string(b))
}

func TestResolveFallsBackToUTF8OnUnknownCharset(t *testing.T) {
	cs, b := Resolve("hello", true, "not-a-real-charset", false)
	assert.Equal(t, "utf-8", cs)
	assert.Equal(t, "hello", string(b))
}

func TestResolveNonUTF8BodyPassesThrough(t *testing.T) {
	cs, b := Resolve("legacy body", false, "cp1252", false)
	assert.Equal(t, "cp1252", cs)
	assert.Equal(t, "legacy body", string(b))
}

func TestNeedsBase64(t *testing.T) {
	assert.False(t, NeedsBase64([]byte("plain text\twith\ntabs and newlines")))
	assert.True(t, NeedsBase64([]byte("binary\x00here")))
	assert.True(t, NeedsBase64([]byte{0x01, 0x02, 0x03}))
}

func TestQuoteMboxFrom(t *testing.T) {
	in := "Hi there\nFrom the start of a line\n>From already quoted once\nnothing special"
	out := QuoteMboxFrom(in)
	assert.Equal(t, "Hi there\n>From the start of a line\n>>From already quoted once\nnothing special", out)
}

func TestValidUTF8(t *testing.T) {
	assert.True(t, ValidUTF8([]byte("hello")))
	assert.False(t, ValidUTF8([]byte{0xff, 0xfe, 0xfd}))
}

func TestTrimTrailingNUL(t *testing.T) {
	assert.Equal(t, []byte("abc"), TrimTrailingNUL([]byte("abc\x00")))
	assert.Equal(t, []byte("abc"), TrimTrailingNUL([]byte("abc")))
}
