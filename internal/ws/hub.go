package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/comanda-app/api/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// companyEvent is an internal struct for routing events to one company
type companyEvent struct {
	CompanyID uuid.UUID
	Event     Event
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by company ID
	rooms map[uuid.UUID]map[*Client]bool

	// Inbound messages from clients (register/unregister)
	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *companyEvent

	// Closed when Run returns
	done chan struct{}

	// Mutex for thread-safe room access
	mu sync.RWMutex

	logger *zap.Logger
}

// NewHub creates a new Hub instance
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *companyEvent, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main loop until ctx is cancelled.
// This should be called as a goroutine: go hub.Run(ctx)
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.companyID] == nil {
				h.rooms[client.companyID] = make(map[*Client]bool)
			}
			h.rooms[client.companyID][client] = true
			h.mu.Unlock()
			metrics.IncRealtimeClients()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			// Marshal event to JSON once
			message, err := json.Marshal(event.Event)
			if err != nil {
				h.logger.Error("marshal realtime event", zap.String("type", event.Event.Type), zap.Error(err))
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[event.CompanyID] {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, drop it
					h.logger.Warn("realtime client too slow, disconnecting",
						zap.String("company_id", event.CompanyID.String()))
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove closes and forgets client. Callers hold h.mu.
func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.companyID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	metrics.DecRealtimeClients()
	// Clean up empty rooms
	if len(clients) == 0 {
		delete(h.rooms, client.companyID)
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	for _, clients := range h.rooms {
		for client := range clients {
			h.remove(client)
		}
	}
	h.mu.Unlock()
	close(h.done)
}

// BroadcastToCompany sends an event to all clients subscribed to a company.
// Events are dropped once the hub has stopped.
func (h *Hub) BroadcastToCompany(companyID uuid.UUID, event Event) {
	select {
	case h.broadcast <- &companyEvent{CompanyID: companyID, Event: event}:
	case <-h.done:
	}
}

// Publish marshals payload and broadcasts it as an event of eventType.
func (h *Hub) Publish(companyID uuid.UUID, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshal realtime payload", zap.String("type", eventType), zap.Error(err))
		return
	}
	h.BroadcastToCompany(companyID, Event{Type: eventType, Payload: data})
}

// ClientCount returns the number of clients subscribed to a company.
func (h *Hub) ClientCount(companyID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[companyID])
}
