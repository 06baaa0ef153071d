package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Field is one key of a flat structured reply.
type Field struct {
	Name        string
	Description string
	Required    bool
	// Validate, when set, checks the trimmed value.
	Validate func(value string) error
}

// Schema describes the flat key/value object a reply must contain.
type Schema struct {
	Name   string
	Fields []Field
}

// Describe renders the schema as JSON Schema text for prompt templates.
func (s Schema) Describe() string {
	type property struct {
		Type        string `json:"type"`
		Description string `json:"description,omitempty"`
	}
	props := make(map[string]property, len(s.Fields))
	required := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		props[f.Name] = property{Type: "string", Description: f.Description}
		if f.Required {
			required = append(required, f.Name)
		}
	}
	doc := struct {
		Type       string              `json:"type"`
		Properties map[string]property `json:"properties"`
		Required   []string            `json:"required"`
	}{"object", props, required}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	_ = enc.Encode(doc)
	return strings.TrimSpace(buf.String())
}

// Parse extracts the reply object from raw model output and validates it.
// Every failure wraps ErrSchemaViolation.
func (s Schema) Parse(raw string) (map[string]string, error) {
	body, ok := extractJSONObject(raw)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrSchemaViolation)
	}

	var obj map[string]interface{}
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}

	fields := make(map[string]string, len(s.Fields))
	for _, f := range s.Fields {
		v, present := obj[f.Name]
		if !present || v == nil {
			if f.Required {
				return nil, fmt.Errorf("%w: missing key %q", ErrSchemaViolation, f.Name)
			}
			continue
		}
		var value string
		switch tv := v.(type) {
		case string:
			value = strings.TrimSpace(tv)
		case json.Number:
			value = tv.String()
		default:
			return nil, fmt.Errorf("%w: key %q is not a string", ErrSchemaViolation, f.Name)
		}
		if f.Validate != nil {
			if err := f.Validate(value); err != nil {
				return nil, fmt.Errorf("%w: key %q: %v", ErrSchemaViolation, f.Name, err)
			}
		}
		fields[f.Name] = value
	}
	return fields, nil
}

// extractJSONObject strips markdown fences and reasoning blocks, then
// returns the first balanced {...} in content.
func extractJSONObject(content string) (string, bool) {
	if end := strings.Index(content, "</think>"); end != -1 {
		content = content[end+len("</think>"):]
	}
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	start := strings.Index(content, "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
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
				return content[start : i+1], true
			}
		}
	}
	return "", false
}
