package sse

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/gin-gonic/gin"
)

// Event is one server-sent event destined for a user's open connections.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type client struct {
	userID string
	ch     chan Event
}

// Manager fans events out to the SSE connections of each user. Sync progress
// (started/completed/failed) flows through here.
type Manager struct {
	register   chan *client
	unregister chan *client
	broadcast  chan userEvent

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

type userEvent struct {
	userID string
	event  Event
}

func NewManager() *Manager {
	return &Manager{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan userEvent, 256),
		clients:    make(map[string]map[*client]struct{}),
	}
}

// Run processes registrations and deliveries. Start once from main.
func (m *Manager) Run() {
	for {
		select {
		case c := <-m.register:
			m.mu.Lock()
			if m.clients[c.userID] == nil {
				m.clients[c.userID] = make(map[*client]struct{})
			}
			m.clients[c.userID][c] = struct{}{}
			m.mu.Unlock()

		case c := <-m.unregister:
			m.mu.Lock()
			if peers, ok := m.clients[c.userID]; ok {
				if _, ok := peers[c]; ok {
					delete(peers, c)
					close(c.ch)
					if len(peers) == 0 {
						delete(m.clients, c.userID)
					}
				}
			}
			m.mu.Unlock()

		case ue := <-m.broadcast:
			m.mu.RLock()
			for c := range m.clients[ue.userID] {
				select {
				case c.ch <- ue.event:
				default:
					// Slow consumer: drop rather than block the hub.
				}
			}
			m.mu.RUnlock()
		}
	}
}

// SendToUser queues an event for every connection the user has open.
func (m *Manager) SendToUser(userID string, eventType string, payload interface{}) {
	select {
	case m.broadcast <- userEvent{userID: userID, event: Event{Type: eventType, Payload: payload}}:
	default:
		log.Printf("[SSE] Broadcast queue full, dropping %s event for user %s", eventType, userID)
	}
}

// ServeHTTP holds the connection open and writes events as they arrive.
func (m *Manager) ServeHTTP(c *gin.Context, userID string) {
	conn := &client{userID: userID, ch: make(chan Event, 16)}
	m.register <- conn
	defer func() { m.unregister <- conn }()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case event, ok := <-conn.ch:
			if !ok {
				return
			}
			data, err := json.Marshal(event.Payload)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event.Type, data)
			c.Writer.Flush()
		}
	}
}
