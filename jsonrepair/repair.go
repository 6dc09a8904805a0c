// Package jsonrepair recovers malformed tool-call argument JSON produced by
// an LLM. Three strategies are tried in order: strip invalid escape
// sequences, balance unclosed quotes and brackets, and finally extract known
// fields with regular expressions. A total failure returns nil and the
// caller degrades to a synthetic parse-error tool result — the round never
// aborts over bad arguments.
package jsonrepair

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Repair attempts to turn raw into a parseable JSON object. toolName selects
// the field set for the regex fallback. Returns nil if nothing worked.
func Repair(raw, toolName string) json.RawMessage {
	if fixed := fixEscapes(raw); json.Valid([]byte(fixed)) {
		return json.RawMessage(fixed)
	}
	if balanced := balance(fixEscapes(raw)); json.Valid([]byte(balanced)) {
		return json.RawMessage(balanced)
	}
	if extracted := extractFields(raw, toolName); extracted != nil {
		return extracted
	}
	return nil
}

// fixEscapes replaces invalid escape sequences: `\X` becomes `X` for any X
// outside the JSON escape set.
func fixEscapes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			next := s[i+1]
			if !strings.ContainsRune(`"\/bfnrtu`, rune(next)) {
				b.WriteByte(next)
				i++
				continue
			}
			b.WriteByte(s[i])
			b.WriteByte(next)
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// balance appends the closers a truncated JSON document is missing: first a
// quote if a string is open, then brackets in reverse nesting order.
func balance(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch ch {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == ch {
				stack = stack[:len(stack)-1]
			}
		}
	}
	var b strings.Builder
	b.WriteString(s)
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}

var (
	pathRe    = regexp.MustCompile(`"path"\s*:\s*"((?:[^"\\]|\\.)*)"?`)
	contentRe = regexp.MustCompile(`"content"\s*:\s*"((?:[^"\\]|\\.)*)"?`)
	appendRe  = regexp.MustCompile(`"append"\s*:\s*(true|false)`)
	commandRe = regexp.MustCompile(`"command"\s*:\s*"((?:[^"\\]|\\.)*)"?`)
)

// extractFields is the last-resort recovery: pull known fields out with
// regexes and rebuild a minimal object. File tools get path+content+append,
// shell gets command, everything else gets content alone.
func extractFields(raw, toolName string) json.RawMessage {
	obj := map[string]any{}
	switch toolName {
	case "read_file", "write_file", "edit_file":
		m := pathRe.FindStringSubmatch(raw)
		if m == nil {
			return nil
		}
		obj["path"] = unescape(m[1])
		if cm := contentRe.FindStringSubmatch(raw); cm != nil {
			obj["content"] = unescape(cm[1])
		}
		if am := appendRe.FindStringSubmatch(raw); am != nil {
			obj["append"] = am[1] == "true"
		}
	case "shell_execute":
		m := commandRe.FindStringSubmatch(raw)
		if m == nil {
			return nil
		}
		obj["command"] = unescape(m[1])
	default:
		m := contentRe.FindStringSubmatch(raw)
		if m == nil {
			return nil
		}
		obj["content"] = unescape(m[1])
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return nil
	}
	return out
}

// unescape interprets the captured string body as JSON string content.
func unescape(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return s
	}
	return out
}
