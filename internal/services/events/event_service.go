package events

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/handoff/internal/common"
	"github.com/ternarybob/handoff/internal/interfaces"
)

// Service implements EventService interface with pub/sub pattern
type Service struct {
	subscribers map[int]interfaces.EventHandler
	nextID      int
	closed      bool
	mu          sync.RWMutex
	logger      arbor.ILogger
}

// NewService creates a new event service
func NewService(logger arbor.ILogger) interfaces.EventService {
	return &Service{
		subscribers: make(map[int]interfaces.EventHandler),
		logger:      logger,
	}
}

// Subscribe registers a handler for all event types
func (s *Service) Subscribe(handler interfaces.EventHandler) (func(), error) {
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("event service is closed")
	}

	id := s.nextID
	s.nextID++
	s.subscribers[id] = handler

	s.logger.Debug().
		Int("subscriber_count", len(s.subscribers)).
		Msg("Event handler subscribed")

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			s.logger.Debug().Msg("Event handler unsubscribed")
		}
	}, nil
}

// Publish sends an event to all subscribers synchronously. A panicking
// handler is logged and does not stop delivery to the others.
func (s *Service) Publish(event interfaces.Event) {
	s.mu.RLock()
	ids := make([]int, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]interfaces.EventHandler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, s.subscribers[id])
	}
	s.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	for _, handler := range handlers {
		s.deliver(handler, event)
	}
}

func (s *Service) deliver(handler interfaces.EventHandler, event interfaces.Event) {
	defer common.Recover(s.logger, "event:"+string(event.Type))
	handler(event)
}

// SubscriberCount returns the number of live subscribers
func (s *Service) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

// Close shuts down the event service
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers = make(map[int]interfaces.EventHandler)
	s.closed = true
	s.logger.Debug().Msg("Event service closed")

	return nil
}
