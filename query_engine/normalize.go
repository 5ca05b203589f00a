package query_engine

import "strings"

// BodyBuilder accumulates text chunks into a normalized body: lowercase
// ASCII alphanumeric runs separated by exactly one space, with a sentinel
// space at both ends.
type BodyBuilder struct {
	sb        strings.Builder
	lastSpace bool
}

// NewBodyBuilder creates a builder holding only the leading sentinel
func NewBodyBuilder() *BodyBuilder {
	b := &BodyBuilder{lastSpace: true}
	b.sb.WriteByte(' ')
	return b
}

// WriteText appends a chunk of raw text. Chunks may split words; a word only
// ends at a non-alphanumeric character.
func (b *BodyBuilder) WriteText(text string) {
	for i := 0; i < len(text); i++ {
		c := text[i]
		if isAlnum(c) {
			b.sb.WriteByte(toLower(c))
			b.lastSpace = false
		} else {
			b.separate()
		}
	}
}

// Separate ends the current word, as if a non-alphanumeric character was seen
func (b *BodyBuilder) Separate() {
	b.separate()
}

func (b *BodyBuilder) separate() {
	if !b.lastSpace {
		b.sb.WriteByte(' ')
		b.lastSpace = true
	}
}

// String returns the body with its trailing sentinel
func (b *BodyBuilder) String() string {
	b.separate()
	return b.sb.String()
}

// NormalizeText lowercases text and collapses every non-alphanumeric run into
// a single space. Leading and trailing separators are dropped.
func NormalizeText(text string) string {
	b := NewBodyBuilder()
	b.WriteText(text)
	return strings.TrimSpace(b.String())
}

// CollapseText lowercases text and collapses every non-alphanumeric run into
// a single space. A separator at either edge is kept.
func CollapseText(text string) string {
	var b BodyBuilder
	b.WriteText(text)
	return b.sb.String()
}

// NormalizeBody returns text as a normalized body with sentinels
func NormalizeBody(text string) string {
	b := NewBodyBuilder()
	b.WriteText(text)
	return b.String()
}

// IsAlnum reports whether s is a non-empty run of ASCII letters and digits
func IsAlnum(s string) bool {
	return s != "" && allAlnum(s)
}

// allAlnum is IsAlnum without the length check; it holds for "".
func allAlnum(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isAlnum(s[i]) {
			return false
		}
	}
	return true
}

func isAlnum(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func toLower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

// pad wraps a normalized term or phrase in boundary spaces
func pad(s string) string {
	return " " + s + " "
}
