package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// parseSnippetLen caps the diagnostic snippet kept from unparseable model
// output so log records stay bounded.
const parseSnippetLen = 120

// extractStructured recovers a JSON value from free-form model text and
// validates it into out. The response_format contract makes well-formed JSON
// the overwhelmingly common case, but models still occasionally wrap JSON in
// prose or code fences, so a direct parse is followed by a balanced-bracket
// fallback before giving up.
func extractStructured(validate *validator.Validate, text string, out any) *Error {
	trimmed := strings.TrimSpace(text)

	candidate := trimmed
	if err := json.Unmarshal([]byte(candidate), out); err != nil {
		block, ok := firstJSONBlock(trimmed)
		if !ok {
			return parseError(trimmed, "no JSON value found in model output")
		}
		if err := json.Unmarshal([]byte(block), out); err != nil {
			return parseError(trimmed, "embedded JSON block does not parse")
		}
	}

	if err := validate.Struct(out); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			// Non-struct payloads (plain arrays, scalars) have nothing to
			// validate beyond parsing.
			return nil
		}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			issues := make([]Issue, 0, len(verrs))
			for _, fe := range verrs {
				path := fe.Namespace()
				if i := strings.IndexByte(path, '.'); i >= 0 {
					path = path[i+1:]
				}
				issues = append(issues, Issue{
					Path:    path,
					Message: fmt.Sprintf("failed %q constraint", fe.Tag()),
				})
			}
			return &Error{
				Kind:    KindSchemaMismatch,
				Message: fmt.Sprintf("model output violates schema in %d field(s)", len(issues)),
				Issues:  issues,
			}
		}
		return &Error{Kind: KindSchemaMismatch, Message: "model output violates schema", cause: err}
	}
	return nil
}

func parseError(text, reason string) *Error {
	return &Error{
		Kind:    KindParse,
		Message: fmt.Sprintf("%s (output length %d)", reason, len(text)),
		Snippet: truncate(text, parseSnippetLen),
	}
}

// firstJSONBlock returns the first balanced {...} or [...] substring, walking
// the text with string- and escape-awareness so braces inside JSON strings do
// not unbalance the scan.
func firstJSONBlock(text string) (string, bool) {
	start := -1
	var open, close byte
	for i := 0; i < len(text); i++ {
		if text[i] == '{' {
			start, open, close = i, '{', '}'
			break
		}
		if text[i] == '[' {
			start, open, close = i, '[', ']'
			break
		}
	}
	if start < 0 {
		return "", false
	}

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
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
