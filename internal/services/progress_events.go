package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/coursely-backend/pkg/logger"
)

const progressChannelPrefix = "progress:user:"

// ProgressEvent is broadcast to every open connection of the user after a progress write,
// so other devices can update their players.
type ProgressEvent struct {
	Type        string     `json:"type"` // "position" or "completed"
	UserID      string     `json:"userId"`
	CourseID    string     `json:"courseId"`
	LessonID    string     `json:"lessonId"`
	Position    float64    `json:"position,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// ProgressPublisher is what the progress service needs from the hub.
type ProgressPublisher interface {
	Publish(ctx context.Context, event ProgressEvent) error
}

// ProgressConn is the minimal interface a WebSocket connection must satisfy.
type ProgressConn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// ProgressSubscriber is one registered connection.
type ProgressSubscriber struct {
	UserID string
	conn   ProgressConn
	mu     sync.Mutex // serialises writes; websocket connections allow one writer
}

func (s *ProgressSubscriber) send(event ProgressEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(event)
}

// ProgressHub fans progress events out to local connections. Events travel through Redis
// pub/sub so every instance sees writes made on any other instance.
type ProgressHub struct {
	rdb *redis.Client
	log *logger.Logger

	mu    sync.RWMutex
	conns map[string]map[*ProgressSubscriber]struct{}

	ready     chan struct{}
	readyOnce sync.Once
}

func NewProgressHub(rdb *redis.Client, log *logger.Logger) *ProgressHub {
	return &ProgressHub{
		rdb:   rdb,
		log:   log.Component("progress_hub"),
		conns: make(map[string]map[*ProgressSubscriber]struct{}),
		ready: make(chan struct{}),
	}
}

// Ready is closed once the Redis subscription is established.
func (h *ProgressHub) Ready() <-chan struct{} {
	return h.ready
}

func (h *ProgressHub) Register(userID string, conn ProgressConn) *ProgressSubscriber {
	sub := &ProgressSubscriber{UserID: userID, conn: conn}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*ProgressSubscriber]struct{})
	}
	h.conns[userID][sub] = struct{}{}
	return sub
}

func (h *ProgressHub) Unregister(sub *ProgressSubscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.conns[sub.UserID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.conns, sub.UserID)
		}
	}
}

// Connections returns how many local connections the user has open.
func (h *ProgressHub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// Publish sends the event to Redis; delivery to sockets happens in Run.
func (h *ProgressHub) Publish(ctx context.Context, event ProgressEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return h.rdb.Publish(ctx, progressChannelPrefix+event.UserID, data).Err()
}

func (h *ProgressHub) fanOut(event ProgressEvent) {
	h.mu.RLock()
	subs := make([]*ProgressSubscriber, 0, len(h.conns[event.UserID]))
	for sub := range h.conns[event.UserID] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.send(event); err != nil {
			h.log.Debug().Err(err).Str("user_id", event.UserID).Msg("failed to write progress event")
		}
	}
}

const (
	minResubscribeBackoff = time.Second
	maxResubscribeBackoff = 30 * time.Second
)

// nextBackoff doubles the previous wait while attempts keep failing and starts over
// once a subscription has been established.
func nextBackoff(prev time.Duration, subscribed bool) time.Duration {
	if subscribed || prev <= 0 {
		return minResubscribeBackoff
	}
	prev *= 2
	if prev > maxResubscribeBackoff {
		prev = maxResubscribeBackoff
	}
	return prev
}

// Run subscribes to every user's progress channel until ctx is cancelled, reconnecting
// with exponential backoff.
func (h *ProgressHub) Run(ctx context.Context) {
	var backoff time.Duration

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		subscribed, err := h.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		backoff = nextBackoff(backoff, subscribed)
		h.log.Warn().Err(err).Dur("backoff", backoff).Msg("progress subscriber disconnected")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

// consume reports whether the subscription was established before it failed.
func (h *ProgressHub) consume(ctx context.Context) (bool, error) {
	pubsub := h.rdb.PSubscribe(ctx, progressChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return false, err
	}
	h.readyOnce.Do(func() { close(h.ready) })
	h.log.Info().Msg("✅ Progress subscriber started (pattern: progress:user:*)")

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return true, err
		}

		var event ProgressEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			h.log.Warn().Err(err).Msg("failed to unmarshal progress event")
			continue
		}
		if event.UserID == "" {
			event.UserID = strings.TrimPrefix(msg.Channel, progressChannelPrefix)
		}
		h.fanOut(event)
	}
}
