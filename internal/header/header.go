// Package header inspects a raw, possibly-malformed text blob and decides
// whether it looks like genuine RFC 5322 headers, before any MIME library
// is trusted to parse it. It also implements the narrow field lookup,
// subfield parsing, and managed-field stripping that component D.1 needs
// while selecting and cleaning a header source.
package header

import (
	"strings"
)

// allowList is the fixed set of common field names (and the Microsoft
// marker line) that, if present, are enough on their own to call a block
// "real" headers.
var allowList = []string{
	"Content-Type:",
	"Date:",
	"From:",
	"MIME-Version:",
	"Received:",
	"Return-Path:",
	"Subject:",
	"To:",
	"User-Agent:",
	"DKIM-Signature:",
	"Delivered-To:",
	"Content-Language:",
	"Microsoft Mail Internet Headers",
	"X-Mailer:",
	"X-Originating-IP:",
	"X-MimeOLE:",
}

// managedFields are the MIME-management headers write_normal_email strips
// before re-emitting a header block, because the renderer synthesizes its
// own versions of them.
var managedFields = []string{
	"Microsoft Mail Internet Headers",
	"MIME-Version:",
	"Content-Type:",
	"Content-Transfer-Encoding:",
	"Content-class:",
	"X-MimeOLE:",
	"X-From_:",
}

// IsValid reports whether block plausibly contains RFC 5322 headers: either
// it matches an allow-listed field name, or it parses as a reasonable
// generic header block.
func IsValid(block string) bool {
	if block == "" {
		return false
	}
	for _, name := range allowList {
		if HasField(block, name) {
			return true
		}
	}
	return looksGeneric(block)
}

// HasField reports whether block contains name (e.g. "Subject:") either at
// the very start of the block or as a new line ("\nSubject:"), matched
// case-insensitively.
func HasField(block, name string) bool {
	_, ok := GetField(block, name)
	return ok
}

// GetField returns the substring of block starting at the named field
// (including the field name) through the end of the block, and whether a
// match was found. Matching is case-insensitive and anchored either at the
// start of block or immediately after a newline; a leading "\n" on name
// ("\nSubject:") is accepted and means the same as "Subject:".
func GetField(block, name string) (string, bool) {
	lowerBlock := strings.ToLower(block)
	lowerName := strings.ToLower(strings.TrimPrefix(name, "\n"))

	if strings.HasPrefix(lowerBlock, lowerName) {
		return block, true
	}
	idx := strings.Index(lowerBlock, "\n"+lowerName)
	if idx < 0 {
		return "", false
	}
	return block[idx+1:], true
}

// EndOfField returns the index in field just past the field's own content:
// the terminating LF, honoring folded continuation lines (a CRLF or LF
// followed by a space or tab belongs to the same field).
func EndOfField(field string) int {
	i := 0
	for {
		nl := strings.IndexByte(field[i:], '\n')
		if nl < 0 {
			return len(field)
		}
		abs := i + nl
		// Continuation line: the character after the newline is SP/HT.
		if abs+1 < len(field) {
			c := field[abs+1]
			if c == ' ' || c == '\t' {
				i = abs + 1
				continue
			}
		}
		return abs
	}
}

// GetSubfield parses a "; key=value" or "; key=\"quoted value\"" subfield
// out of field (e.g. the "charset" or "report-type" subfield of a
// Content-Type: line), bounded by field's own EndOfField. Returns the value
// and whether it was found.
func GetSubfield(field, key string) (string, bool) {
	end := EndOfField(field)
	scope := field[:end]

	lowerScope := strings.ToLower(scope)
	lowerKey := strings.ToLower(key)
	idx := strings.Index(lowerScope, lowerKey+"=")
	for idx >= 0 {
		// Ensure this is a subfield boundary: preceded by ';' or whitespace.
		if precededBySeparator(scope, idx) {
			break
		}
		next := strings.Index(lowerScope[idx+1:], lowerKey+"=")
		if next < 0 {
			idx = -1
			break
		}
		idx = idx + 1 + next
	}
	if idx < 0 {
		return "", false
	}

	valStart := idx + len(key) + 1
	if valStart >= len(scope) {
		return "", false
	}
	if scope[valStart] == '"' {
		closeIdx := strings.IndexByte(scope[valStart+1:], '"')
		if closeIdx < 0 {
			return strings.TrimSpace(scope[valStart+1:]), true
		}
		return scope[valStart+1 : valStart+1+closeIdx], true
	}

	rest := scope[valStart:]
	semi := strings.IndexByte(rest, ';')
	if semi >= 0 {
		rest = rest[:semi]
	}
	return strings.TrimSpace(rest), true
}

func precededBySeparator(s string, idx int) bool {
	for i := idx - 1; i >= 0; i-- {
		switch s[i] {
		case ' ', '\t':
			continue
		case ';', ':':
			return true
		default:
			return false
		}
	}
	return true
}

// StripField removes the named field (and its folded continuations) from
// block and returns the result. It is a pure function: block is never
// mutated in place (see Design Notes on functional header handling).
func StripField(block, name string) string {
	field, ok := GetField(block, name)
	if !ok {
		return block
	}
	start := strings.Index(block, field)
	if start < 0 {
		return block
	}
	end := EndOfField(field)
	if end < len(field) {
		end++ // consume the terminating newline itself
	}
	return block[:start] + field[end:]
}

// StripManaged removes every field in managedFields from block.
func StripManaged(block string) string {
	for _, name := range managedFields {
		block = StripField(block, "\n"+strings.TrimPrefix(name, "\n"))
	}
	return block
}

// Field is a single (possibly folded) header field as an ordered pair.
type Field struct {
	Name  string
	Value string
}

// ParseFields parses block into an ordered list of (name, value) pairs,
// honoring folded continuation lines. Parsing stops at the first blank
// line (the header/body separator) or end of input.
func ParseFields(block string) []Field {
	var fields []Field
	lines := strings.Split(strings.ReplaceAll(block, "\r\n", "\n"), "\n")
	var cur *Field
	for _, line := range lines {
		if line == "" {
			break
		}
		if (line[0] == ' ' || line[0] == '\t') && cur != nil {
			cur.Value += "\n" + line
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		fields = append(fields, Field{Name: strings.TrimSpace(line[:colon]), Value: strings.TrimSpace(line[colon+1:])})
		cur = &fields[len(fields)-1]
	}
	return fields
}

// looksGeneric implements the generic-header grammar: an uppercase letter,
// then [A-Za-z0-9-]*, a colon, then printable US-ASCII plus HT/SP on the
// same logical (possibly folded) line, terminated by a naked CRLF/LF.
func looksGeneric(block string) bool {
	s := strings.ReplaceAll(block, "\r\n", "\n")
	if s == "" {
		return false
	}
	if !isFieldNameStart(s) {
		// Also accept a block that looks generic starting right after a
		// leading blank/garbage prefix line, matching the allow-list's
		// "also matching at start-of-block" leniency for the first field.
		idx := strings.IndexByte(s, '\n')
		if idx < 0 {
			return false
		}
		s = s[idx+1:]
	}
	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return false
	}
	name := s[:colon]
	if name == "" || !(name[0] >= 'A' && name[0] <= 'Z') {
		return false
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		ok := (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-'
		if !ok {
			return false
		}
	}
	for i := colon + 1; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\n' && i+1 < len(s) && (s[i+1] == ' ' || s[i+1] == '\t'):
			// folded continuation line
		case c == '\n':
			return true
		case c != '\t' && (c < ' ' || c > '~'):
			return false
		}
	}
	return false
}

func isFieldNameStart(s string) bool {
	return len(s) > 0 && s[0] >= 'A' && s[0] <= 'Z'
}
