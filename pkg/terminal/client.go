package terminal

import (
	"encoding/json"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/antibyte/retrocalc/pkg/calc"
	"github.com/antibyte/retrocalc/pkg/configuration"
	"github.com/antibyte/retrocalc/pkg/console"
	"github.com/antibyte/retrocalc/pkg/logger"
	"github.com/antibyte/retrocalc/pkg/shared"

	"github.com/gorilla/websocket"
)

func getWriteWait() time.Duration {
	return configuration.GetDuration("Network", "write_wait_timeout", 10*time.Second)
}

func getPongWait() time.Duration {
	return configuration.GetDuration("Network", "pong_timeout", 90*time.Second)
}

func getPingPeriod() time.Duration {
	return (getPongWait() * 9) / 10
}

func getMaxMessageSize() int64 {
	return int64(configuration.GetInt("Network", "max_message_size_kb", 4) * 1024)
}

const sendBufferSize = 64

// Client is one websocket connection running one calculator session.
// It implements console.Output by turning output into JSON frames.
type Client struct {
	conn        *websocket.Conn
	sessionID   string
	send        chan shared.Message
	dead        chan struct{} // closed when the write pump stops
	deadOnce    sync.Once
	closing     chan struct{} // closed to flush the queue and disconnect
	closeOnce   sync.Once
	input       *io.PipeWriter
	validator   *InputValidator
	errorPrefix string
}

func newClient(conn *websocket.Conn, sessionID string, input *io.PipeWriter, validator *InputValidator) *Client {
	return &Client{
		conn:        conn,
		sessionID:   sessionID,
		send:        make(chan shared.Message, sendBufferSize),
		dead:        make(chan struct{}),
		closing:     make(chan struct{}),
		input:       input,
		validator:   validator,
		errorPrefix: configuration.GetString("Calculator", "error_prefix", console.DefaultErrorPrefix),
	}
}

// SessionID returns the session the client is bound to
func (c *Client) SessionID() string { return c.sessionID }

// enqueue hands msg to the write pump. Messages for a dead connection are dropped.
func (c *Client) enqueue(msg shared.Message) {
	select {
	case c.send <- msg:
	case <-c.dead:
	}
}

func (c *Client) Prompt(marker string) {
	c.enqueue(shared.Message{Type: shared.MessageTypePrompt, Content: marker, NoNewline: true})
}

func (c *Client) Result(marker string, value float64) {
	msg := shared.Message{
		Type:    shared.MessageTypeResult,
		Content: marker + console.FormatValue(value),
	}
	// JSON has no encoding for NaN or infinities; Content still carries them
	if !math.IsNaN(value) && !math.IsInf(value, 0) {
		msg.Value = &value
	}
	c.enqueue(msg)
}

func (c *Client) Error(err error) {
	c.enqueue(shared.Message{
		Type:    shared.MessageTypeError,
		Content: c.errorPrefix + err.Error(),
		Code:    calc.ErrorCode(err),
	})
}

func (c *Client) Help(text string) {
	c.enqueue(shared.Message{Type: shared.MessageTypeHelp, Content: text})
}

// Done is a no-op; the handler sends a Bye frame once the session returns
func (c *Client) Done() {}

// Close flushes queued messages and then closes the connection
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.closing) })
}

// readPump feeds text frames into the session input until the connection fails
func (c *Client) readPump() {
	defer c.input.Close()

	c.conn.SetReadLimit(getMaxMessageSize())
	c.conn.SetReadDeadline(time.Now().Add(getPongWait()))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(getPongWait()))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.TerminalWarn("Unexpected close for session %s: %v", c.sessionID, err)
			} else {
				logger.TerminalDebug("Connection closed for session %s: %v", c.sessionID, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		line, err := c.validator.SanitizeInput(shared.DecodeInput(message))
		if err != nil {
			logger.TerminalWarn("Rejected input for session %s: %v", c.sessionID, err)
			c.enqueue(shared.Message{Type: shared.MessageTypeText, Content: err.Error()})
			continue
		}
		if !strings.HasSuffix(line, "\n") {
			line += "\n"
		}
		if _, err := io.WriteString(c.input, line); err != nil {
			// session already finished
			return
		}
	}
}

// writePump sends queued messages and keepalive pings. It exits after Close
// or when a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(getPingPeriod())
	defer func() {
		ticker.Stop()
		c.deadOnce.Do(func() { close(c.dead) })
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.writeMessage(msg); err != nil {
				return
			}
		case <-c.closing:
			for len(c.send) > 0 {
				if err := c.writeMessage(<-c.send); err != nil {
					return
				}
			}
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.TerminalDebug("Ping failed for session %s: %v", c.sessionID, err)
				return
			}
		}
	}
}

func (c *Client) writeMessage(msg shared.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.TerminalError("Failed to encode message for session %s: %v", c.sessionID, err)
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		logger.TerminalDebug("Write failed for session %s: %v", c.sessionID, err)
		return err
	}
	return nil
}
