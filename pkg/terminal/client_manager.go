package terminal

import (
	"errors"
	"sync"

	"github.com/antibyte/retrocalc/pkg/logger"
)

// MaxClientsDefault bounds concurrent sessions when [Network] max_sessions is unset
const MaxClientsDefault = 100

var (
	// ErrTooManySessions is returned when the registry is full
	ErrTooManySessions = errors.New("too many active sessions")
	// ErrSessionActive is returned when a session id is already connected
	ErrSessionActive = errors.New("session already connected")
)

// ClientManager maps session ids to connected clients
type ClientManager struct {
	clients    map[string]*Client
	maxClients int
	mu         sync.RWMutex
}

// NewClientManager creates a registry holding at most maxClients
func NewClientManager(maxClients int) *ClientManager {
	if maxClients <= 0 {
		maxClients = MaxClientsDefault
	}
	return &ClientManager{
		clients:    make(map[string]*Client),
		maxClients: maxClients,
	}
}

// AddClient registers client under sessionID
func (cm *ClientManager) AddClient(sessionID string, client *Client) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.clients[sessionID]; exists {
		return ErrSessionActive
	}
	if len(cm.clients) >= cm.maxClients {
		return ErrTooManySessions
	}
	cm.clients[sessionID] = client
	logger.TerminalDebug("Client added for session %s (%d active)", sessionID, len(cm.clients))
	return nil
}

// RemoveClient drops the client of sessionID
func (cm *ClientManager) RemoveClient(sessionID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if _, exists := cm.clients[sessionID]; exists {
		delete(cm.clients, sessionID)
		logger.TerminalDebug("Client removed for session %s (%d active)", sessionID, len(cm.clients))
	}
}

// GetClient returns the client of sessionID
func (cm *ClientManager) GetClient(sessionID string) (*Client, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	client, exists := cm.clients[sessionID]
	return client, exists
}

// Count returns the number of connected clients
func (cm *ClientManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.clients)
}

// CloseAll asks every client to disconnect
func (cm *ClientManager) CloseAll() {
	cm.mu.RLock()
	clients := make([]*Client, 0, len(cm.clients))
	for _, c := range cm.clients {
		clients = append(clients, c)
	}
	cm.mu.RUnlock()

	for _, c := range clients {
		c.conn.Close()
	}
}
