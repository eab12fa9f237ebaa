package terminal

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/antibyte/retrocalc/pkg/configuration"
)

// InputValidator checks what clients send before it reaches a session
type InputValidator struct {
	maxLength int
}

// NewInputValidator reads [Network] max_input_length
func NewInputValidator() *InputValidator {
	return &InputValidator{
		maxLength: configuration.GetInt("Network", "max_input_length", 1024),
	}
}

// SanitizeInput limits the length of a line and drops control characters
// other than newline, carriage return and tab
func (v *InputValidator) SanitizeInput(content string) (string, error) {
	if v.maxLength > 0 && len(content) > v.maxLength {
		return "", fmt.Errorf("input too long: maximum %d characters allowed", v.maxLength)
	}

	var result strings.Builder
	result.Grow(len(content))
	for _, r := range content {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		result.WriteRune(r)
	}
	return result.String(), nil
}

// ValidateSessionID checks an id taken from a token
func (v *InputValidator) ValidateSessionID(sessionID string) error {
	if len(sessionID) == 0 {
		return fmt.Errorf("session ID is empty")
	}
	if len(sessionID) > 128 {
		return fmt.Errorf("session ID too long")
	}
	for _, r := range sessionID {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return fmt.Errorf("session ID contains invalid characters")
		}
	}
	return nil
}
