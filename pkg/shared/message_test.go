package shared

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeInput(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		expected string
	}{
		{"json input", `{"type":7,"content":"1+2;"}`, "1+2;"},
		{"plain text", "let a = 5;", "let a = 5;"},
		{"json of another type", `{"type":0,"content":"x"}`, `{"type":0,"content":"x"}`},
		{"broken json", `{"type":7,`, `{"type":7,`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeInput([]byte(tt.frame)); got != tt.expected {
				t.Errorf("DecodeInput(%q) = %q, expected %q", tt.frame, got, tt.expected)
			}
		})
	}
}

func TestMessageOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(Message{Type: MessageTypePrompt, Content: ">", NoNewline: true})
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, field := range []string{"sessionId", "value", "code"} {
		if strings.Contains(s, field) {
			t.Errorf("unexpected field %s in %s", field, s)
		}
	}

	zero := 0.0
	data, _ = json.Marshal(Message{Type: MessageTypeResult, Content: "=0", Value: &zero})
	if !strings.Contains(string(data), `"value":0`) {
		t.Errorf("zero result must keep its value field: %s", data)
	}
}
