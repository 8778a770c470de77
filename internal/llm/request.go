package llm

import (
	"math"
	"strings"

	"github.com/invopop/jsonschema"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// maxHistoryMessages bounds how much caller-supplied conversation history
	// is forwarded upstream. Older entries are discarded first.
	maxHistoryMessages = 10
	maxSystemPromptLen = 4000

	// MaxUserPromptLen bounds the assembled user prompt. Callers composing
	// prompts from stored data budget against it before building a request.
	MaxUserPromptLen = 8000
)

// Default sampling parameters applied when the caller leaves a field unset.
const (
	DefaultTemperature float32 = 0.2
	DefaultTopP        float32 = 0.9
	DefaultMaxTokens   int     = 600
)

// Message is one caller-supplied history entry. Messages are never mutated
// after they are assembled into a request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params are optional sampling parameters. Nil fields fall back to the
// client-level defaults, which in turn fall back to the package defaults.
type Params struct {
	Temperature      *float32
	TopP             *float32
	MaxTokens        *int
	FrequencyPenalty *float32
	PresencePenalty  *float32
	Seed             *int
}

// overlay returns p with any nil fields filled from base.
func (p Params) overlay(base Params) Params {
	if p.Temperature == nil {
		p.Temperature = base.Temperature
	}
	if p.TopP == nil {
		p.TopP = base.TopP
	}
	if p.MaxTokens == nil {
		p.MaxTokens = base.MaxTokens
	}
	if p.FrequencyPenalty == nil {
		p.FrequencyPenalty = base.FrequencyPenalty
	}
	if p.PresencePenalty == nil {
		p.PresencePenalty = base.PresencePenalty
	}
	if p.Seed == nil {
		p.Seed = base.Seed
	}
	return p
}

type mergedParams struct {
	temperature      float32
	topP             float32
	maxTokens        int
	frequencyPenalty float32
	presencePenalty  float32
	seed             *int
}

// mergeParams resolves defaults field by field and checks that the merged
// result satisfies the numeric range invariants before any request is built.
func mergeParams(p Params) (mergedParams, *Error) {
	m := mergedParams{
		temperature: DefaultTemperature,
		topP:        DefaultTopP,
		maxTokens:   DefaultMaxTokens,
	}
	if p.Temperature != nil {
		m.temperature = *p.Temperature
	}
	if p.TopP != nil {
		m.topP = *p.TopP
	}
	if p.MaxTokens != nil {
		m.maxTokens = *p.MaxTokens
	}
	if p.FrequencyPenalty != nil {
		m.frequencyPenalty = *p.FrequencyPenalty
	}
	if p.PresencePenalty != nil {
		m.presencePenalty = *p.PresencePenalty
	}
	m.seed = p.Seed

	switch {
	case m.temperature < 0 || m.temperature > 2:
		return m, validationErrorf("temperature %.2f outside [0, 2]", m.temperature)
	case m.topP <= 0 || m.topP > 1:
		return m, validationErrorf("top_p %.2f outside (0, 1]", m.topP)
	case m.maxTokens < 1:
		return m, validationErrorf("max_tokens %d must be positive", m.maxTokens)
	case m.frequencyPenalty < -2 || m.frequencyPenalty > 2:
		return m, validationErrorf("frequency_penalty %.2f outside [-2, 2]", m.frequencyPenalty)
	case m.presencePenalty < -2 || m.presencePenalty > 2:
		return m, validationErrorf("presence_penalty %.2f outside [-2, 2]", m.presencePenalty)
	}
	return m, nil
}

func validRole(role string) bool {
	switch role {
	case openai.ChatMessageRoleSystem, openai.ChatMessageRoleUser, openai.ChatMessageRoleAssistant:
		return true
	default:
		return false
	}
}

// buildRequest assembles the complete chat-completion payload: system message
// first (when non-empty), then the capped history, then the user message
// last. The request constrains the model to a named, strict JSON schema so
// output extraction is nearly deterministic. Pure construction, no side
// effects; the returned value is resubmitted verbatim on retries.
func buildRequest(model, system string, history []Message, user string, params Params, schemaName string, schema *jsonschema.Schema) (openai.ChatCompletionRequest, *Error) {
	var req openai.ChatCompletionRequest

	user = strings.TrimSpace(user)
	if user == "" {
		return req, validationErrorf("user prompt is empty")
	}
	if len(user) > MaxUserPromptLen {
		return req, validationErrorf("user prompt length %d exceeds %d", len(user), MaxUserPromptLen)
	}
	system = strings.TrimSpace(system)
	if len(system) > maxSystemPromptLen {
		return req, validationErrorf("system prompt length %d exceeds %d", len(system), maxSystemPromptLen)
	}
	if strings.TrimSpace(schemaName) == "" {
		return req, validationErrorf("schema name is empty")
	}
	if schema == nil {
		return req, validationErrorf("schema is nil")
	}

	merged, cerr := mergeParams(params)
	if cerr != nil {
		return req, cerr
	}

	// Unrecognised roles are caller bugs and fail loudly; blank entries are
	// tolerated from noisy callers and dropped silently.
	kept := make([]Message, 0, len(history))
	for i, msg := range history {
		if !validRole(msg.Role) {
			return req, validationErrorf("history entry %d has unrecognised role %q", i, msg.Role)
		}
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		kept = append(kept, msg)
	}
	if len(kept) > maxHistoryMessages {
		kept = kept[len(kept)-maxHistoryMessages:]
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(kept)+2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, msg := range kept {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	// go-openai's omitempty drops a zero temperature from the payload and the
	// upstream then applies its own 1.0 default. Substitute the smallest
	// nonzero float, the same workaround go-openai's client applies.
	temperature := merged.temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	req = openai.ChatCompletionRequest{
		Model:            model,
		Messages:         messages,
		Temperature:      temperature,
		TopP:             merged.topP,
		MaxTokens:        merged.maxTokens,
		FrequencyPenalty: merged.frequencyPenalty,
		PresencePenalty:  merged.presencePenalty,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: schema,
				Strict: true,
			},
		},
	}
	if merged.seed != nil {
		seed := *merged.seed
		req.Seed = &seed
	}
	return req, nil
}

// SchemaFor reflects a strict JSON schema for T, inlined with additional
// properties disallowed, suitable for the request's response_format block.
func SchemaFor[T any]() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
	}
	var v T
	return reflector.Reflect(&v)
}
