package shared

import "encoding/json"

// MessageType identifies a websocket frame
type MessageType int

const (
	MessageTypeText    MessageType = 0 // free text
	MessageTypePrompt  MessageType = 1 // prompt marker, no newline
	MessageTypeResult  MessageType = 2 // evaluated value
	MessageTypeError   MessageType = 3 // statement diagnostic
	MessageTypeSession MessageType = 4 // session id handed to the client
	MessageTypeHelp    MessageType = 5 // help screen
	MessageTypeBye     MessageType = 6 // session ended, connection closes
	MessageTypeInput   MessageType = 7 // client to server: a line of input
)

// Message is the JSON frame exchanged with websocket clients
type Message struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
	// Suppresses the automatic line break in the frontend
	NoNewline bool `json:"noNewline,omitempty"`

	// For SESSION
	SessionID string `json:"sessionId,omitempty"`
	// For RESULT
	Value *float64 `json:"value,omitempty"`
	// For ERROR, e.g. DIVIDE_BY_ZERO
	Code string `json:"code,omitempty"`
}

// DecodeInput extracts the input text of a client frame.
// Frames that are not a JSON input message are taken verbatim.
func DecodeInput(frame []byte) string {
	var msg Message
	if err := json.Unmarshal(frame, &msg); err == nil && msg.Type == MessageTypeInput {
		return msg.Content
	}
	return string(frame)
}
