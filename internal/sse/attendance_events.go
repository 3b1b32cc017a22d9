package sse

import (
	"context"
	"sync"

	"ms-admission/internal/models"
)

// AttendanceEmitter fans check-in notifications out to the stream clients
// watching each event. It holds no state needed for correctness.
type AttendanceEmitter struct {
	mu      sync.RWMutex
	clients map[string][]chan models.CheckinEvent
}

func NewAttendanceEmitter() *AttendanceEmitter {
	return &AttendanceEmitter{clients: make(map[string][]chan models.CheckinEvent)}
}

// Subscribe registers a client for eventID. The channel is closed once ctx
// is done.
func (e *AttendanceEmitter) Subscribe(ctx context.Context, eventID string) <-chan models.CheckinEvent {
	clientChan := make(chan models.CheckinEvent, 16)

	e.mu.Lock()
	e.clients[eventID] = append(e.clients[eventID], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(eventID, clientChan)
	}()

	return clientChan
}

// Emit delivers event to every subscriber of its event. Slow clients whose
// buffer is full miss the notification.
func (e *AttendanceEmitter) Emit(event models.CheckinEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, clientChan := range e.clients[event.EventID] {
		select {
		case clientChan <- event:
		default:
		}
	}
}

func (e *AttendanceEmitter) remove(eventID string, clientChan chan models.CheckinEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[eventID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[eventID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}
	if len(e.clients[eventID]) == 0 {
		delete(e.clients, eventID)
	}
}

// ClientCount returns the number of clients currently watching eventID.
func (e *AttendanceEmitter) ClientCount(eventID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[eventID])
}

// LocalPublisher feeds check-ins straight into an emitter when no broker is
// configured. Lifecycle events have no local consumer.
type LocalPublisher struct {
	Emitter *AttendanceEmitter
}

func (p LocalPublisher) PublishCheckin(_ context.Context, event models.CheckinEvent) error {
	p.Emitter.Emit(event)
	return nil
}

func (p LocalPublisher) PublishLifecycle(context.Context, models.TicketLifecycleEvent) error {
	return nil
}
