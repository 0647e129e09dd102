// Package jsonx contains lenient JSON helpers for parsing model output.
//
// Chat models are asked to reply with "ONLY the JSON object" but routinely
// wrap it in prose or emit LaTeX-style backslashes inside string values.
// ExtractObject recovers the object in both cases. It cannot repair
// structural damage (unbalanced braces, truncated replies); those still
// fail at Unmarshal time.
package jsonx

import (
	"encoding/json"
	"strings"
)

// ExtractObject locates the first '{' and last '}' in raw, escapes lone
// backslashes and unmarshals the result into v.
func ExtractObject(raw string, v interface{}) error {
	return json.Unmarshal([]byte(ObjectString(raw)), v)
}

// ObjectString returns the candidate JSON object substring of raw with
// backslashes escaped. If no object delimiters are found, raw is returned
// unchanged so the caller gets a regular unmarshal error.
func ObjectString(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end <= start {
		return raw
	}
	return EscapeBackslashes(raw[start : end+1])
}

// EscapeBackslashes doubles every backslash that does not begin an escape
// sequence worth keeping. Model output mixes proper escapes ("\n", "\"")
// with raw LaTeX ("\alpha"), so a blanket replace would corrupt the valid
// ones while a plain parse chokes on the LaTeX.
func EscapeBackslashes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(s) && isEscapable(s, i+1) {
			b.WriteByte(c)
			b.WriteByte(s[i+1])
			i++
			continue
		}
		b.WriteString(`\\`)
	}
	return b.String()
}

// isEscapable reports whether the character at i begins a JSON escape worth
// preserving. 'b' and 'f' are deliberately absent: in model output a
// backslash before them is \beta or \frac, not backspace or formfeed. 'u'
// only counts with four hex digits behind it; \usepackage has none.
func isEscapable(s string, i int) bool {
	switch s[i] {
	case '"', '\\', '/', 'n', 'r', 't':
		return true
	case 'u':
		if i+5 > len(s) {
			return false
		}
		for _, c := range []byte(s[i+1 : i+5]) {
			if !isHexDigit(c) {
				return false
			}
		}
		return true
	}
	return false
}

func isHexDigit(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}
