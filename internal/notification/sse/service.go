// Package sse provides Server-Sent Events support for real-time
// notifications.
package sse

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"civildocs_backend/platform/logger"
)

// EventType represents different types of SSE events
type EventType string

const (
	EventInAppNotification EventType = "in_app_notification"
	EventRequestCreated    EventType = "request_created"
	EventRequestAssigned   EventType = "request_assigned"
	EventRequestReassigned EventType = "request_reassigned"
	EventStatusChanged     EventType = "request_status_changed"
	EventPaymentUpdated    EventType = "payment_updated"
	EventDocumentReady     EventType = "document_ready"
)

// Event represents an SSE event payload
type Event struct {
	Type      EventType   `json:"type"`
	RequestID uuid.UUID   `json:"requestId,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// client represents a connected SSE client
type client struct {
	userID    uuid.UUID
	communeID uuid.UUID
	events    chan Event
}

// Service manages SSE connections and event broadcasting
type Service struct {
	mu         sync.RWMutex
	clients    map[uuid.UUID][]*client   // userID -> clients
	communeMap map[uuid.UUID][]uuid.UUID // communeID -> userIDs

	log *logger.Logger
}

// New creates a new SSE service
func New(log *logger.Logger) *Service {
	return &Service{
		clients:    make(map[uuid.UUID][]*client),
		communeMap: make(map[uuid.UUID][]uuid.UUID),
		log:        log,
	}
}

// addClient registers a new client connection
func (s *Service) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients[c.userID] = append(s.clients[c.userID], c)

	// Track commune membership for agent dashboard broadcasts
	if c.communeID != uuid.Nil {
		s.communeMap[c.communeID] = append(s.communeMap[c.communeID], c.userID)
	}
}

// removeClient unregisters a client connection
func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := s.clients[c.userID]
	for i, cl := range clients {
		if cl == c {
			s.clients[c.userID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(s.clients[c.userID]) == 0 {
		delete(s.clients, c.userID)
	}

	close(c.events)
}

// Publish sends an event to a specific user. Fire-and-forget: a client
// with a full buffer misses the event rather than blocking the publisher.
func (s *Service) Publish(userID uuid.UUID, event Event) {
	s.mu.RLock()
	clients := s.clients[userID]
	s.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.events <- event:
		default:
			s.log.Warn("sse event buffer full", "userId", userID, "type", event.Type)
		}
	}
}

// PublishToCommune broadcasts an event to every connected user of a commune.
func (s *Service) PublishToCommune(communeID uuid.UUID, event Event) {
	s.mu.RLock()
	userIDs := make([]uuid.UUID, len(s.communeMap[communeID]))
	copy(userIDs, s.communeMap[communeID])
	s.mu.RUnlock()

	seen := make(map[uuid.UUID]bool)
	for _, userID := range userIDs {
		if seen[userID] {
			continue
		}
		seen[userID] = true
		s.Publish(userID, event)
	}
}

// ConnectedUsers reports how many distinct users hold open streams.
func (s *Service) ConnectedUsers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Handler returns a Gin handler for SSE connections. Identity extraction
// is injected so the package stays free of auth internals.
func (s *Service) Handler(getUserID func(*gin.Context) (uuid.UUID, bool), getCommuneID func(*gin.Context) (uuid.UUID, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		communeID, _ := getCommuneID(c)

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		cl := &client{
			userID:    userID,
			communeID: communeID,
			events:    make(chan Event, 32),
		}
		s.addClient(cl)
		defer s.removeClient(cl)

		c.SSEvent("connected", gin.H{"userId": userID})
		c.Writer.Flush()

		s.log.Debug("sse client connected", "userId", userID, "communeId", communeID)

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				s.log.Debug("sse client disconnected", "userId", userID)
				return
			case event, ok := <-cl.events:
				if !ok {
					return
				}
				data, _ := json.Marshal(event)
				c.SSEvent(string(event.Type), string(data))
				c.Writer.Flush()
			}
		}
	}
}

// Close shuts down the SSE service
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, clients := range s.clients {
		for _, c := range clients {
			close(c.events)
		}
	}
	s.clients = make(map[uuid.UUID][]*client)
	s.communeMap = make(map[uuid.UUID][]uuid.UUID)
}
