// Package body implements component C, the MIME body renderer: charset
// normalization and transcoding, the base64-vs-verbatim decision, the
// <meta charset=…> sniff for re-charsetting an HTML body, and mboxrd
// "From " quoting for bodies embedded in an mbox-family file.
package body

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
)

// metaCharsetRE matches an HTML <meta charset="..."> or
// <meta http-equiv="Content-Type" content="...; charset=..."> declaration,
// case-insensitively. Precompiled once per Design Notes §9.
var metaCharsetRE = regexp.MustCompile(`(?is)<meta[^>]+charset\s*=\s*["']?([a-zA-Z0-9_\-]+)`)

// FindHTMLCharset scans html for a <meta charset=…> declaration and returns
// the charset name it declares, if any.
func FindHTMLCharset(html string) (string, bool) {
	m := metaCharsetRE.FindStringSubmatch(html)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// NormalizeCRLF converts CRLF line endings to bare LF.
func NormalizeCRLF(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// Resolve implements step 2 of the body renderer algorithm: given a body
// marked is_utf8 or not, the requested charset (empty means "utf-8"), and
// whether the caller prefers UTF-8 output, decide the final charset and
// bytes to emit.
//
// If the body is UTF-8 and the requested charset differs: prefer UTF-8
// overrides the charset to "utf-8"; otherwise a transcode to the requested
// charset is attempted, falling back to UTF-8 unchanged if it fails.
func Resolve(text string, isUTF8 bool, requestedCharset string, preferUTF8 bool) (outCharset string, outBytes []byte) {
	text = NormalizeCRLF(text)
	requestedCharset = strings.TrimSpace(requestedCharset)
	if requestedCharset == "" {
		requestedCharset = "utf-8"
	}

	if !isUTF8 || strings.EqualFold(requestedCharset, "utf-8") {
		return requestedCharset, []byte(text)
	}

	if preferUTF8 {
		return "utf-8", []byte(text)
	}

	enc, err := htmlindex.Get(requestedCharset)
	if err != nil {
		return "utf-8", []byte(text)
	}
	converted, err := enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return "utf-8", []byte(text)
	}
	return requestedCharset, converted
}

// NeedsBase64 reports whether b contains any byte below 32 other than TAB
// (0x09) or LF (0x0A), in which case the part must be base64-encoded
// rather than emitted verbatim.
func NeedsBase64(b []byte) bool {
	for _, c := range b {
		if c < 32 && c != '\t' && c != '\n' {
			return true
		}
	}
	return false
}

// QuoteMboxFrom applies mboxrd "From " quoting: any body line matching
// "^>*From " gets one additional leading ">". Used only when the part is
// embedded directly in an mbox-family file outside one-message-per-file
// mode.
func QuoteMboxFrom(plainBody string) string {
	lines := strings.Split(plainBody, "\n")
	for i, line := range lines {
		if isFromLine(line) {
			lines[i] = ">" + line
		}
	}
	return strings.Join(lines, "\n")
}

func isFromLine(line string) bool {
	i := 0
	for i < len(line) && line[i] == '>' {
		i++
	}
	return strings.HasPrefix(line[i:], "From ")
}

// ValidUTF8 reports whether b is well-formed UTF-8, used to decide whether
// a body claimed to be UTF-8 actually is before trusting is_utf8.
func ValidUTF8(b []byte) bool {
	return utf8.Valid(b)
}

// TrimTrailingNUL drops a single trailing NUL byte some PST string fields
// carry over from their original fixed-width encoding.
func TrimTrailingNUL(b []byte) []byte {
	return bytes.TrimSuffix(b, []byte{0})
}
