// Package validation decodes generator output strictly against JSON schemas.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"assistant-workers/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON schema with a name used in error details.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// MustCompile panics on an invalid schema; schemas are package-level literals.
func MustCompile(name string, schema map[string]interface{}) *Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		panic(fmt.Sprintf("validation: compile schema %s: %v", name, err))
	}
	return &Schema{name: name, schema: compiled}
}

// Result is either a decoded value (Err == nil) or a uniform validation failure.
type Result[T any] struct {
	Value T
	Err   error
}

func (r Result[T]) Ok() bool {
	return r.Err == nil
}

// Decode extracts the JSON object from raw generator text, validates it and unmarshals it into T.
func Decode[T any](s *Schema, raw string) Result[T] {
	var zero T

	body, ok := ExtractJSONObject(raw)
	if !ok {
		return Result[T]{Value: zero, Err: errors.NewInvalidGeneratorOutputError(s.name + ": no JSON object found")}
	}

	res, err := s.schema.Validate(gojsonschema.NewStringLoader(body))
	if err != nil {
		return Result[T]{Value: zero, Err: errors.NewInvalidGeneratorOutputError(s.name + ": " + err.Error())}
	}
	if !res.Valid() {
		msgs := make([]string, len(res.Errors()))
		for i, desc := range res.Errors() {
			msgs[i] = desc.String()
		}
		return Result[T]{Value: zero, Err: errors.NewInvalidGeneratorOutputError(s.name + ": " + strings.Join(msgs, "; "))}
	}

	var out T
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return Result[T]{Value: zero, Err: errors.NewInvalidGeneratorOutputError(s.name + ": " + err.Error())}
	}
	return Result[T]{Value: out}
}

// ExtractJSONObject strips markdown fences and returns the outermost {...} span.
func ExtractJSONObject(raw string) (string, bool) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
