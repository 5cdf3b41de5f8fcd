package realtime

import (
	"sync"

	"prompt-mastare/internal/metrics"
)

// Client is the identity a live connection is registered under. PromptID 0
// means the client is viewing the team overview, not a specific prompt.
type Client struct {
	Conn     Conn
	UserID   uint64
	UserName string
	TeamID   uint64
	PromptID uint64
}

// Registry maps live connections to their identity. Process-local only:
// connections die with the process, so there is nothing to persist. Owned by
// the composition root and shared by the dispatcher and router.
type Registry struct {
	mu      sync.RWMutex
	clients map[Conn]*Client
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[Conn]*Client),
	}
}

// Register stores the mapping, replacing any prior entry for the same
// connection.
func (r *Registry) Register(conn Conn, userID uint64, userName string, teamID, promptID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[conn]; !exists {
		metrics.ConnectionsActive.Inc()
	}
	r.clients[conn] = &Client{
		Conn:     conn,
		UserID:   userID,
		UserName: userName,
		TeamID:   teamID,
		PromptID: promptID,
	}
}

// Update changes the prompt scope of an existing entry. No-op if the
// connection is unregistered.
func (r *Registry) Update(conn Conn, promptID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if client, ok := r.clients[conn]; ok {
		client.PromptID = promptID
	}
}

// Unregister removes the entry. Safe to call multiple times.
func (r *Registry) Unregister(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[conn]; exists {
		delete(r.clients, conn)
		metrics.ConnectionsActive.Dec()
	}
}

// Get returns the client for a connection, or nil if it never authenticated.
func (r *Registry) Get(conn Conn) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clients[conn]
}

func (r *Registry) ListByTeam(teamID uint64) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*Client
	for _, client := range r.clients {
		if client.TeamID == teamID {
			result = append(result, client)
		}
	}
	return result
}

func (r *Registry) ListByPrompt(promptID uint64) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*Client
	for _, client := range r.clients {
		if client.PromptID == promptID {
			result = append(result, client)
		}
	}
	return result
}
