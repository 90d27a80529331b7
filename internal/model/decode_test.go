package model

import "testing"

func TestDecodeJSONToleratesFences(t *testing.T) {
	type payload struct {
		Intent string `json:"intent"`
	}
	inputs := []string{
		`{"intent":"GREETING"}`,
		"```json\n{\"intent\":\"GREETING\"}\n```",
		"```\n{\"intent\":\"GREETING\"}\n```",
		"  ```JSON\n{\"intent\":\"GREETING\"}```  ",
	}
	for _, in := range inputs {
		var got payload
		if err := DecodeJSON(in, &got); err != nil {
			t.Fatalf("DecodeJSON(%q): %v", in, err)
		}
		if got.Intent != "GREETING" {
			t.Fatalf("DecodeJSON(%q) intent = %q", in, got.Intent)
		}
	}
}

func TestDecodeJSONRejectsProse(t *testing.T) {
	var v map[string]any
	if err := DecodeJSON("Sure! Here is the JSON you asked for.", &v); err == nil {
		t.Fatalf("expected error for prose")
	}
	if err := DecodeJSON("   ", &v); err == nil {
		t.Fatalf("expected error for empty output")
	}
}
