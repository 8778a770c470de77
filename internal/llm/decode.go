package llm

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// Usage reports upstream token accounting when the server included it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// parsedChatResponse is the decoded completion envelope: the assistant text
// plus its metadata, before any structured-output extraction.
type parsedChatResponse struct {
	text      string
	model     string
	usage     *Usage
	requestID string
}

// decodeResponse validates the envelope shape of a nominally successful
// response. A body that fails to parse, has no choices, or carries only
// whitespace content is an upstream fault: the server said 2xx but returned
// nothing usable. The extracted text itself is never logged.
func decodeResponse(raw *rawResponse, requestedModel string) (*parsedChatResponse, *Error) {
	var envelope openai.ChatCompletionResponse
	if err := json.Unmarshal(raw.body, &envelope); err != nil {
		return nil, &Error{
			Kind:      KindUpstream,
			Message:   "malformed completion envelope",
			Snippet:   truncate(string(raw.body), bodySnippetLen),
			RequestID: raw.requestID,
			cause:     err,
		}
	}
	if len(envelope.Choices) == 0 {
		return nil, &Error{
			Kind:      KindUpstream,
			Message:   "completion envelope has no choices",
			RequestID: raw.requestID,
		}
	}
	text := envelope.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return nil, &Error{
			Kind:      KindUpstream,
			Message:   "completion content is empty",
			RequestID: raw.requestID,
		}
	}

	parsed := &parsedChatResponse{
		text:      text,
		model:     envelope.Model,
		requestID: raw.requestID,
	}
	if parsed.model == "" {
		parsed.model = requestedModel
	}
	if parsed.requestID == "" {
		parsed.requestID = envelope.ID
	}
	if envelope.Usage.TotalTokens > 0 {
		parsed.usage = &Usage{
			PromptTokens:     envelope.Usage.PromptTokens,
			CompletionTokens: envelope.Usage.CompletionTokens,
			TotalTokens:      envelope.Usage.TotalTokens,
		}
		log.Debug().
			Str("model", parsed.model).
			Int("prompt_tokens", parsed.usage.PromptTokens).
			Int("completion_tokens", parsed.usage.CompletionTokens).
			Int("total_tokens", parsed.usage.TotalTokens).
			Msg("Completion token usage")
	}
	return parsed, nil
}
