// Package terminal serves calculator sessions over websockets.
package terminal

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/antibyte/retrocalc/pkg/auth"
	"github.com/antibyte/retrocalc/pkg/configuration"
	"github.com/antibyte/retrocalc/pkg/console"
	"github.com/antibyte/retrocalc/pkg/history"
	"github.com/antibyte/retrocalc/pkg/logger"
	"github.com/antibyte/retrocalc/pkg/shared"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Transcript reads recorded statements back
type Transcript interface {
	ListSession(ctx context.Context, sessionID string, limit int) ([]history.Entry, error)
}

// Option configures a Handler
type Option func(*Handler)

// WithRecorder records every statement of every session
func WithRecorder(r console.Recorder) Option {
	return func(h *Handler) { h.recorder = r }
}

// WithTranscript enables the history endpoint
func WithTranscript(t Transcript) Option {
	return func(h *Handler) { h.transcript = t }
}

// Handler accepts websocket clients and runs one session per connection
type Handler struct {
	upgrader      websocket.Upgrader
	clientManager *ClientManager
	validator     *InputValidator
	recorder      console.Recorder
	transcript    Transcript
}

// NewHandler creates a handler configured from [Network] and [Auth]
func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		clientManager: NewClientManager(configuration.GetInt("Network", "max_sessions", MaxClientsDefault)),
		validator:     NewInputValidator(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// checkOrigin accepts same-host browsers and non-browser clients
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	logger.TerminalWarn("Rejected websocket origin %s for host %s", origin, r.Host)
	return false
}

// ActiveSessions returns the number of connected sessions
func (h *Handler) ActiveSessions() int {
	return h.clientManager.Count()
}

// Shutdown disconnects every client
func (h *Handler) Shutdown() {
	h.clientManager.CloseAll()
}

// resolveSessionID picks the session for a connecting client. With
// [Auth] require_token set a valid token is mandatory; otherwise a valid token
// is honoured and anonymous clients get a fresh id.
func (h *Handler) resolveSessionID(r *http.Request) (string, int, error) {
	requireToken := configuration.GetBool("Auth", "require_token", false)

	tokenString, err := auth.ExtractTokenFromRequest(r)
	if err != nil {
		if requireToken || !errors.Is(err, auth.ErrNoToken) {
			return "", http.StatusUnauthorized, err
		}
		return uuid.NewString(), 0, nil
	}

	claims, err := auth.ValidateToken(tokenString)
	if err != nil {
		return "", http.StatusUnauthorized, err
	}
	if err := h.validator.ValidateSessionID(claims.SessionID); err != nil {
		return "", http.StatusBadRequest, err
	}
	return claims.SessionID, 0, nil
}

// HandleWebSocket upgrades the request and runs a calculator session until
// the client quits or disconnects
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID, status, err := h.resolveSessionID(r)
	if err != nil {
		logger.TerminalWarn("Websocket refused for %s: %v", r.RemoteAddr, err)
		http.Error(w, http.StatusText(status), status)
		return
	}
	if _, active := h.clientManager.GetClient(sessionID); active {
		http.Error(w, ErrSessionActive.Error(), http.StatusConflict)
		return
	}
	if h.clientManager.Count() >= h.clientManager.maxClients {
		http.Error(w, ErrTooManySessions.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.TerminalError("WebSocket upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	pr, pw := io.Pipe()
	client := newClient(conn, sessionID, pw, h.validator)
	if err := h.clientManager.AddClient(sessionID, client); err != nil {
		// lost a race against another connection for the same slot
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
		conn.Close()
		return
	}
	defer h.clientManager.RemoveClient(sessionID)

	logger.TerminalInfo("Session %s connected from %s", sessionID, r.RemoteAddr)
	go client.writePump()
	client.enqueue(shared.Message{Type: shared.MessageTypeSession, SessionID: sessionID})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessionDone := make(chan struct{})
	go func() {
		defer close(sessionDone)
		defer pr.Close()
		h.runSession(ctx, client, pr)
	}()

	client.readPump()
	cancel()
	<-sessionDone
	client.Close()
	<-client.dead
	logger.TerminalInfo("Session %s disconnected", sessionID)
}

// runSession evaluates the client's input and says goodbye when it ends
func (h *Handler) runSession(ctx context.Context, client *Client, in io.Reader) {
	opts := []console.Option{
		console.WithPrompt(configuration.GetString("Calculator", "prompt", console.DefaultPrompt)),
		console.WithResultMarker(configuration.GetString("Calculator", "result_marker", console.DefaultResultMarker)),
	}
	if h.recorder != nil {
		opts = append(opts, console.WithRecorder(h.recorder))
	}

	session := console.NewSession(client.sessionID, in, client, opts...)
	err := session.Run(ctx)

	bye := shared.Message{Type: shared.MessageTypeBye, Content: "bye"}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.TerminalError("Session %s failed: %v", client.sessionID, err)
		bye.Content = err.Error()
	}
	client.enqueue(bye)
	client.Close()
}
