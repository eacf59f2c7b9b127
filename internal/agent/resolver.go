package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/shlex"
)

// ParamResolver turns a model-supplied parameter payload into a validated
// one, falling back to per-tool inference from the user's message text when
// the payload is empty or malformed. Model transports deliver tool-call
// arguments as incrementally assembled fragment streams, and fragments can be
// lost or misattributed under connection pressure, so resolution is
// defensive: nothing reaches a handler without satisfying the tool's schema.
type ParamResolver struct{}

// NewParamResolver creates a resolver.
func NewParamResolver() *ParamResolver {
	return &ParamResolver{}
}

// Resolve validates raw against def's schema, attempting inference from
// userText when raw is empty or invalid. It returns the payload to execute
// with, or ErrParametersUnresolved when neither path produces a payload that
// satisfies the schema.
func (r *ParamResolver) Resolve(def *ToolDefinition, raw json.RawMessage, userText string) (json.RawMessage, error) {
	if len(raw) > 0 && string(raw) != "null" {
		if err := def.ValidatePayload(raw); err == nil {
			return raw, nil
		}
	}

	if def.Infer != nil {
		if inferred, ok := def.Infer(userText); ok {
			if err := def.ValidatePayload(inferred); err == nil {
				return inferred, nil
			}
		}
	}

	return nil, fmt.Errorf("%w: tool %s", ErrParametersUnresolved, def.Name)
}

var (
	// A token that looks like a file path: contains a slash, or a basename
	// with an extension. Trailing punctuation is stripped before matching.
	pathTokenRe = regexp.MustCompile(`(?:^|\s)((?:[\w.-]+/)*[\w-]+\.[\w]+|(?:[\w.-]+/)+[\w.-]+)`)

	// "file notes.md", "called notes.md", "named notes.md"
	pathAfterKeywordRe = regexp.MustCompile(`(?i)(?:file|called|named)\s+([^\s"'` + "`" + `]+)`)

	quotedSpanRe   = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
	backtickSpanRe = regexp.MustCompile("`([^`]+)`")

	// "search for X", "look for X", "about X" up to end of clause.
	phraseAfterForRe = regexp.MustCompile(`(?i)(?:search(?:ing)?\s+(?:\S+\s+)?for|look(?:ing)?\s+for|find|about)\s+(.+?)(?:[.?!]|$)`)
)

// PathInference extracts a file path from free text into the named field.
// Preference order: backticked span, quoted span, token after "file"/"named",
// any path-shaped token.
func PathInference(field string) InferenceStrategy {
	return func(userText string) (json.RawMessage, bool) {
		if m := backtickSpanRe.FindStringSubmatch(userText); m != nil {
			return fieldPayload(field, strings.TrimSpace(m[1]))
		}
		if m := quotedSpanRe.FindStringSubmatch(userText); m != nil {
			return fieldPayload(field, firstNonEmpty(m[1:]))
		}
		if m := pathAfterKeywordRe.FindStringSubmatch(userText); m != nil {
			return fieldPayload(field, strings.Trim(m[1], ".,;:"))
		}
		if m := pathTokenRe.FindStringSubmatch(userText); m != nil {
			return fieldPayload(field, strings.Trim(m[1], ".,;:"))
		}
		return nil, false
	}
}

// CommandInference extracts a shell command from free text into the named
// field. Only spans that shlex can split are accepted, so a prose sentence
// with an unbalanced quote never becomes a command.
func CommandInference(field string) InferenceStrategy {
	return func(userText string) (json.RawMessage, bool) {
		var candidate string
		if m := backtickSpanRe.FindStringSubmatch(userText); m != nil {
			candidate = strings.TrimSpace(m[1])
		} else if m := quotedSpanRe.FindStringSubmatch(userText); m != nil {
			candidate = firstNonEmpty(m[1:])
		}
		if candidate == "" {
			return nil, false
		}
		if parts, err := shlex.Split(candidate); err != nil || len(parts) == 0 {
			return nil, false
		}
		return fieldPayload(field, candidate)
	}
}

// PhraseInference extracts a search phrase from free text into the named
// field: a quoted span if present, otherwise the clause after "for"/"about".
func PhraseInference(field string) InferenceStrategy {
	return func(userText string) (json.RawMessage, bool) {
		if m := quotedSpanRe.FindStringSubmatch(userText); m != nil {
			return fieldPayload(field, firstNonEmpty(m[1:]))
		}
		if m := phraseAfterForRe.FindStringSubmatch(userText); m != nil {
			phrase := strings.TrimSpace(m[1])
			if phrase != "" {
				return fieldPayload(field, phrase)
			}
		}
		return nil, false
	}
}

func fieldPayload(field, value string) (json.RawMessage, bool) {
	if value == "" {
		return nil, false
	}
	payload, err := json.Marshal(map[string]string{field: value})
	if err != nil {
		return nil, false
	}
	return payload, true
}

func firstNonEmpty(groups []string) string {
	for _, g := range groups {
		if g != "" {
			return g
		}
	}
	return ""
}
