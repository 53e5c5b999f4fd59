// Package sanitize turns arbitrary PST item names into safe filesystem
// names and implements the filename-encoding schemes (RFC 2231, backslash
// quoting) used when attaching a long or non-ASCII filename to a MIME part.
package sanitize

import (
	"fmt"
	"os"
	"strings"
)

// maxUniqueAttempts bounds the 8-digit bump counter in UniqueOutputPath.
const maxUniqueAttempts = 99999999

// Sanitize replaces path separators and drive-letter colons with "_" so the
// result is always safe to use as a single filesystem path component.
func Sanitize(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_")
	return r.Replace(name)
}

// UniqueOutputPath returns base unchanged if it doesn't exist or overwrite
// is requested. Otherwise it appends a zero-padded 8-digit counter and
// retries until a name that doesn't exist is found, or returns an error
// after maxUniqueAttempts.
func UniqueOutputPath(base string, overwrite bool) (string, error) {
	if overwrite {
		return base, nil
	}
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return base, nil
	}
	for n := 1; n <= maxUniqueAttempts; n++ {
		candidate := fmt.Sprintf("%s%08d", base, n)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("sanitize: could not find a unique name for %q after %d attempts", base, maxUniqueAttempts)
}

// BackslashQuote escapes '"' and '\' with a leading backslash, for use in a
// quoted Content-Disposition filename parameter.
func BackslashQuote(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isAttrChar reports whether b is in the RFC 5987 attr-char set:
// ALPHA / DIGIT / "!" / "#" / "$" / "&" / "+" / "-" / "." / "^" / "_" / "`" / "|" / "~"
func isAttrChar(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	}
	switch b {
	case '!', '#', '$', '&', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

// RFC2231Encode produces the utf-8''-prefixed percent-encoded form used for
// a filename* parameter. Bytes outside the RFC 5987 attr-char set are
// %HH-escaped (lowercase hex) using their raw byte value.
func RFC2231Encode(s string) string {
	var b strings.Builder
	b.WriteString("utf-8''")
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02x", c)
		}
	}
	return b.String()
}

// UniqueSiblingPath returns a path of the form "<basePath>-<name>", matching
// write_separate_attachment's own-file naming for MODE_SEPARATE with MH off.
// On collision it bumps with a plain "-N" suffix (N starting at 1), the same
// scheme as write_separate_attachment's "x" counter. An empty name (no
// attachment filename available) falls back to "<basePath>-attach<attachNum>".
func UniqueSiblingPath(basePath, name string, attachNum int) (string, error) {
	if name == "" {
		return fmt.Sprintf("%s-attach%d", basePath, attachNum), nil
	}
	candidate := fmt.Sprintf("%s-%s", basePath, name)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate, nil
	}
	for n := 1; n <= maxUniqueAttempts; n++ {
		candidate = fmt.Sprintf("%s-%s-%d", basePath, name, n)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("sanitize: could not find a unique sibling name for %q after %d attempts", basePath, maxUniqueAttempts)
}

// CheckFilename is a defensive re-assertion that the name contains none of
// the forbidden filesystem characters; it panics on violation since it is
// only ever called on the output of Sanitize and a bare panic here would
// signal a programming error in a caller, not bad input data.
func CheckFilename(name string) {
	if strings.ContainsAny(name, "/\\:") {
		panic(fmt.Sprintf("sanitize: unsanitized filename reached the filesystem boundary: %q", name))
	}
}
