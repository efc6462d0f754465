package broadcaster

import (
	"log/slog"
	"sync"
)

// queueSize bounds the per-room outbound queue. Delivery is fire-and-forget:
// when a queue is full the event is dropped and logged, never blocking the
// operation that produced it.
const queueSize = 64

// Sender delivers one event to a single connection. Implementations must be
// safe for concurrent use.
type Sender interface {
	Send(event string, payload any) error
}

type envelope struct {
	event   string
	payload any
	targets []Sender
}

// Hub tracks live connections and their room subscriptions, and fans events
// out to a room's subscriber set. Each room gets a single serialized
// outbound queue, so subscribers observe events for one room in the order
// they were enqueued.
type Hub struct {
	logger *slog.Logger

	mu     sync.RWMutex
	conns  map[string]Sender
	rooms  map[string]map[string]Sender
	queues map[string]chan envelope

	wg sync.WaitGroup
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger.With("component", "hub"),

		conns:  make(map[string]Sender),
		rooms:  make(map[string]map[string]Sender),
		queues: make(map[string]chan envelope),
	}
}

// Register - makes a connection addressable for unicasts.
func (that *Hub) Register(connID string, sender Sender) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.conns[connID] = sender
}

// Deregister - removes the connection and all of its room subscriptions.
func (that *Hub) Deregister(connID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.conns, connID)

	for code, subs := range that.rooms {
		delete(subs, connID)
		if len(subs) == 0 {
			that.closeRoomLocked(code)
		}
	}
}

func (that *Hub) Subscribe(roomCode, connID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	sender, ok := that.conns[connID]
	if !ok {
		that.logger.Warn("subscribe for unknown connection", "connID", connID, "roomCode", roomCode)
		return
	}

	subs, ok := that.rooms[roomCode]
	if !ok {
		subs = make(map[string]Sender)
		that.rooms[roomCode] = subs
	}

	subs[connID] = sender
}

func (that *Hub) Unsubscribe(roomCode, connID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	subs, ok := that.rooms[roomCode]
	if !ok {
		return
	}

	delete(subs, connID)

	if len(subs) == 0 {
		that.closeRoomLocked(roomCode)
	}
}

// SendTo - unicast to a single connection, outside any room queue.
func (that *Hub) SendTo(connID, event string, payload any) {
	that.mu.RLock()
	sender, ok := that.conns[connID]
	that.mu.RUnlock()

	if !ok {
		that.logger.Warn("send to unknown connection", "connID", connID, "event", event)
		return
	}

	if err := sender.Send(event, payload); err != nil {
		that.logger.Error("failed to send event", "connID", connID, "event", event, "error", err)
	}
}

// Broadcast - enqueues an event for every current subscriber of the room.
func (that *Hub) Broadcast(roomCode, event string, payload any) {
	that.enqueue(roomCode, "", event, payload)
}

// BroadcastExcept - like Broadcast, skipping one connection.
func (that *Hub) BroadcastExcept(roomCode, exceptConnID, event string, payload any) {
	that.enqueue(roomCode, exceptConnID, event, payload)
}

// Close - drains and stops all room queues. New events are dropped after
// this returns.
func (that *Hub) Close() {
	that.mu.Lock()
	for code := range that.queues {
		that.closeRoomLocked(code)
	}
	that.rooms = make(map[string]map[string]Sender)
	that.mu.Unlock()

	that.wg.Wait()
}

// enqueue resolves the recipient set and hands the event to the room's
// queue goroutine, all under the lock: the roster attached to an event
// matches the subscriptions at the moment it was produced, and the queue
// channel is only ever closed under the same lock, so the send cannot race
// a room teardown. The send is non-blocking, so holding the lock here
// never stalls on a slow room.
func (that *Hub) enqueue(roomCode, exceptConnID, event string, payload any) {
	that.mu.Lock()
	defer that.mu.Unlock()

	subs, ok := that.rooms[roomCode]
	if !ok || len(subs) == 0 {
		return
	}

	targets := make([]Sender, 0, len(subs))
	for connID, sender := range subs {
		if connID == exceptConnID {
			continue
		}
		targets = append(targets, sender)
	}

	if len(targets) == 0 {
		return
	}

	select {
	case that.queueLocked(roomCode) <- envelope{event: event, payload: payload, targets: targets}:
	default:
		that.logger.Error("room queue is full, dropping event", "roomCode", roomCode, "event", event)
	}
}

func (that *Hub) queueLocked(roomCode string) chan envelope {
	queue, ok := that.queues[roomCode]
	if !ok {
		queue = make(chan envelope, queueSize)
		that.queues[roomCode] = queue

		that.wg.Add(1)
		go that.deliver(roomCode, queue)
	}

	return queue
}

func (that *Hub) closeRoomLocked(roomCode string) {
	queue, ok := that.queues[roomCode]
	if !ok {
		return
	}

	delete(that.queues, roomCode)
	delete(that.rooms, roomCode)
	close(queue)
}

func (that *Hub) deliver(roomCode string, queue chan envelope) {
	defer that.wg.Done()

	for env := range queue {
		for _, sender := range env.targets {
			if err := sender.Send(env.event, env.payload); err != nil {
				that.logger.Error("failed to deliver event", "roomCode", roomCode, "event", env.event, "error", err)
			}
		}
	}
}
