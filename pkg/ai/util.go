package ai

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
	"github.com/pkoukk/tiktoken-go"
)

// GenerateSchema reflects a JSON Schema from a Go type for use with model
// structured output. References are inlined and additional properties
// forbidden, which is what strict schema modes expect.
func GenerateSchema(value any) any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	t := reflect.TypeOf(value)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	v := reflect.New(t).Interface()
	return reflector.Reflect(v)
}

func stripDuplicateLeadingBrace(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		rest := strings.TrimSpace(s[1:])
		if strings.HasPrefix(rest, "{") {
			return rest
		}
	}
	return s
}

// UnmarshalFlexible parses model-generated JSON with fallbacks: standard
// unmarshal first, then double-encoded strings, then jsonrepair for
// malformed output.
func UnmarshalFlexible(input string, out any) error {
	input = strings.TrimSpace(input)

	if err := json.Unmarshal([]byte(input), out); err == nil {
		return nil
	}

	var asString string
	if err := json.Unmarshal([]byte(input), &asString); err == nil {
		asString = strings.TrimSpace(asString)
		if err := json.Unmarshal([]byte(asString), out); err == nil {
			return nil
		}
		input = asString
	}

	input = stripDuplicateLeadingBrace(input)
	repaired, err := jsonrepair.JSONRepair(input)
	if err != nil {
		return fmt.Errorf("json repair failed: %w (input: %s)", err, input)
	}

	if err := json.Unmarshal([]byte(repaired), out); err == nil {
		return nil
	}

	return fmt.Errorf(
		"unmarshal failed after repair: input=%s repaired=%s",
		input, repaired,
	)
}

const tokenEncoding = "cl100k_base"

// TruncateTokens clips text to at most maxTokens tokens. Evidence notes can
// be arbitrarily long; extraction and embedding inputs are clipped rather
// than rejected.
func TruncateTokens(text string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		return text, nil
	}
	enc, err := tiktoken.GetEncoding(tokenEncoding)
	if err != nil {
		return "", fmt.Errorf("get encoding: %w", err)
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text, nil
	}
	return enc.Decode(tokens[:maxTokens]), nil
}

// CountTokens returns the token count of text under the shared encoding.
func CountTokens(text string) (int, error) {
	enc, err := tiktoken.GetEncoding(tokenEncoding)
	if err != nil {
		return 0, fmt.Errorf("get encoding: %w", err)
	}
	return len(enc.Encode(text, nil, nil)), nil
}
