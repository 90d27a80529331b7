package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripFences removes a surrounding markdown code fence (``` or ```json)
// from model output.
func StripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if newline := strings.IndexByte(text, '\n'); newline >= 0 {
		lang := strings.TrimSpace(text[:newline])
		if lang == "" || !strings.ContainsAny(lang, "{[\"") {
			text = text[newline+1:]
		}
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// DecodeJSON decodes fence-tolerant model output into v.
func DecodeJSON(raw string, v any) error {
	text := StripFences(raw)
	if text == "" {
		return fmt.Errorf("decode model json: empty output")
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("decode model json: %w", err)
	}
	return nil
}
