package llm

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExtractValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func TestExtractStructuredDirectParse(t *testing.T) {
	var out answerFixture
	cerr := extractStructured(newExtractValidator(), `{"text":"the answer","low_confidence":true}`, &out)
	require.Nil(t, cerr)
	assert.Equal(t, "the answer", out.Text)
	assert.True(t, out.LowConfidence)
}

func TestExtractStructuredRecoversFencedJSON(t *testing.T) {
	text := "Here is the answer:\n```json\n{\"text\":\"embedded\",\"low_confidence\":false}\n```"

	var out answerFixture
	cerr := extractStructured(newExtractValidator(), text, &out)
	require.Nil(t, cerr)
	assert.Equal(t, "embedded", out.Text)
}

func TestExtractStructuredRecoversJSONInProse(t *testing.T) {
	text := `Sure! Based on your notes, {"text":"a {nested} answer with \"quotes\"","low_confidence":true} — hope that helps.`

	var out answerFixture
	cerr := extractStructured(newExtractValidator(), text, &out)
	require.Nil(t, cerr)
	assert.Equal(t, `a {nested} answer with "quotes"`, out.Text)
}

func TestExtractStructuredParseFailure(t *testing.T) {
	var out answerFixture
	cerr := extractStructured(newExtractValidator(), "not json at all", &out)
	require.NotNil(t, cerr)
	assert.Equal(t, KindParse, cerr.Kind)
	assert.Equal(t, "not json at all", cerr.Snippet)
}

func TestExtractStructuredParseSnippetIsCapped(t *testing.T) {
	long := strings.Repeat("definitely not json ", 100)

	var out answerFixture
	cerr := extractStructured(newExtractValidator(), long, &out)
	require.NotNil(t, cerr)
	assert.Equal(t, KindParse, cerr.Kind)
	assert.Len(t, cerr.Snippet, parseSnippetLen)
	assert.NotEqual(t, long, cerr.Snippet)
}

func TestExtractStructuredUnbalancedBlock(t *testing.T) {
	var out answerFixture
	cerr := extractStructured(newExtractValidator(), `prefix {"text":"never closed`, &out)
	require.NotNil(t, cerr)
	assert.Equal(t, KindParse, cerr.Kind)
}

func TestExtractStructuredSchemaMismatch(t *testing.T) {
	// Valid JSON, but the required text field is missing.
	var out answerFixture
	cerr := extractStructured(newExtractValidator(), `{"low_confidence":false}`, &out)
	require.NotNil(t, cerr)
	assert.Equal(t, KindSchemaMismatch, cerr.Kind)
	require.NotEmpty(t, cerr.Issues)
	assert.Equal(t, "Text", cerr.Issues[0].Path)
	assert.Contains(t, cerr.Issues[0].Message, "required")
}

func TestExtractStructuredNonStructTarget(t *testing.T) {
	var out []string
	cerr := extractStructured(newExtractValidator(), `["a","b"]`, &out)
	require.Nil(t, cerr)
	assert.Equal(t, []string{"a", "b"}, out)
}

func TestFirstJSONBlock(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"object in prose", `answer: {"a":1} done`, `{"a":1}`, true},
		{"array in prose", `list: [1,2,3] end`, `[1,2,3]`, true},
		{"nested braces", `{"a":{"b":2}}`, `{"a":{"b":2}}`, true},
		{"brace inside string", `{"a":"}"}`, `{"a":"}"}`, true},
		{"escaped quote inside string", `{"a":"\"}"}`, `{"a":"\"}"}`, true},
		{"no json", "plain text", "", false},
		{"unbalanced", `{"a":1`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := firstJSONBlock(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTruncateBacksUpToRuneBoundary(t *testing.T) {
	assert.Equal(t, "héllo", truncate("héllo", 10))

	// Cutting at byte 120 would land inside the two-byte rune.
	out := truncate(strings.Repeat("a", 119)+"é", 120)
	assert.Equal(t, strings.Repeat("a", 119), out)
	assert.True(t, utf8.ValidString(out))

	out = truncate("日本語のテキスト", 7)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, "日本", out)
}
