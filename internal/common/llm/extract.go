package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ExtractJSONObject returns the first well-formed JSON object embedded in
// text, skipping prose and code fences around it.
func ExtractJSONObject(text string) (string, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end := matchBrace(text, start); end > start {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// DecodeJSONObject extracts the first JSON object from text into out.
func DecodeJSONObject(text string, out interface{}) bool {
	raw, ok := ExtractJSONObject(text)
	if !ok {
		return false
	}
	return json.Unmarshal([]byte(raw), out) == nil
}

// matchBrace returns the index of the brace closing the one at start, or -1.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

const reasoningTags = `thinking|think|reasoning|plan|planning|scratchpad|reflection|analysis`

var (
	reasoningBlock      = regexp.MustCompile(`(?is)<\s*(?:` + reasoningTags + `)\b[^>]*>.*?<\s*/\s*(?:` + reasoningTags + `)\s*>`)
	reasoningSelfClosed = regexp.MustCompile(`(?is)<\s*(?:` + reasoningTags + `)\b[^>]*/\s*>`)
	reasoningUnclosed   = regexp.MustCompile(`(?is)<\s*(?:` + reasoningTags + `)\b[^>]*>.*$`)
	reasoningStrayClose = regexp.MustCompile(`(?i)<\s*/\s*(?:` + reasoningTags + `)\s*>`)
	blankRuns           = regexp.MustCompile(`\n{3,}`)
)

// StripReasoning removes internal reasoning or planning markup, including
// self-closing and unterminated tags, from completion output.
func StripReasoning(text string) string {
	out := reasoningSelfClosed.ReplaceAllString(text, "")
	out = reasoningBlock.ReplaceAllString(out, "")
	out = reasoningUnclosed.ReplaceAllString(out, "")
	out = reasoningStrayClose.ReplaceAllString(out, "")
	out = blankRuns.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
