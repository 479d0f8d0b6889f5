package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls a single JSON object out of a model reply. Models that
// were asked for bare JSON still wrap it in code fences or prose often
// enough that parsing proceeds in stages: the raw text, then the first
// fenced block, then the first balanced brace span.
func ExtractJSON(content string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, fmt.Errorf("model returned empty content")
	}

	if raw, ok := tryObject(trimmed); ok {
		return raw, nil
	}
	if fenced, ok := fencedBlock(trimmed); ok {
		if raw, ok := tryObject(fenced); ok {
			return raw, nil
		}
	}
	if span, ok := bracedSpan(trimmed); ok {
		if raw, ok := tryObject(span); ok {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("no JSON object in model reply")
}

// tryObject accepts only a top-level object, not arrays or scalars.
func tryObject(candidate string) (json.RawMessage, bool) {
	candidate = strings.TrimSpace(candidate)
	if !strings.HasPrefix(candidate, "{") {
		return nil, false
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &probe); err != nil {
		return nil, false
	}
	return json.RawMessage(candidate), true
}

func fencedBlock(content string) (string, bool) {
	start := strings.Index(content, "```")
	if start < 0 {
		return "", false
	}
	rest := content[start+3:]
	if newline := strings.IndexByte(rest, '\n'); newline >= 0 {
		// Drop a language tag like "json" on the fence line.
		if !strings.ContainsAny(rest[:newline], "{}") {
			rest = rest[newline+1:]
		}
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

// bracedSpan finds the first balanced top-level {...} span, tracking string
// literals so braces inside values do not miscount.
func bracedSpan(content string) (string, bool) {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		ch := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1], true
			}
		}
	}
	return "", false
}
