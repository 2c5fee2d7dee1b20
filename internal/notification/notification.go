// Package notification stores user notifications and pushes them to
// connected clients.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/domain"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/escrow"
	engineredis "github.com/FlooooowY/SteelMount-Challenge-Engine/internal/redis"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Service is the notification sink used by the challenge workflow
type Service interface {
	StoreNotification(ctx context.Context, n domain.Notification) error
}

// Action data keys attached to challenge request notifications
const (
	ActionKeyChallengeID   = "challenge_id"
	ActionKeyStakeSats     = "stake_sats"
	ActionKeyChallengeType = "challenge_type"
	ActionKeyAction        = "action"

	ActionViewChallenge = "view_challenge"
)

// ChallengeRequest builds the notification sent to an invited opponent
func ChallengeRequest(challengeID, opponentID, fromUserID, teamID string, t domain.ChallengeType, stakeSats int64, now time.Time) domain.Notification {
	body := fmt.Sprintf("You've been challenged to %s.", t.Title())
	if stakeSats > 0 {
		body = fmt.Sprintf("You've been challenged to %s for %s.", t.Title(), escrow.FormatSats(stakeSats))
	}

	return domain.Notification{
		UserID:     opponentID,
		Type:       domain.NotificationTypeChallengeRequest,
		Title:      "New challenge",
		Body:       body,
		TeamID:     teamID,
		FromUserID: fromUserID,
		EventID:    uuid.New().String(),
		ActionData: map[string]string{
			ActionKeyChallengeID:   challengeID,
			ActionKeyStakeSats:     strconv.FormatInt(stakeSats, 10),
			ActionKeyChallengeType: string(t),
			ActionKeyAction:        ActionViewChallenge,
		},
		CreatedAt: now,
	}
}

// MemoryStore keeps notifications per user in memory
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]domain.Notification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]domain.Notification)}
}

func (s *MemoryStore) StoreNotification(ctx context.Context, n domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[n.UserID] = append(s.items[n.UserID], n)
	return nil
}

// List returns the user's notifications, newest first
func (s *MemoryStore) List(ctx context.Context, userID string) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.items[userID]
	out := make([]domain.Notification, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		out = append(out, stored[i])
	}
	return out, nil
}

// RedisStore keeps a capped list of notifications per user
type RedisStore struct {
	client *redis.Client
	keys   engineredis.Keyspace
	ttl    time.Duration
	keep   int64
}

func NewRedisStore(client *redis.Client, keys engineredis.Keyspace, ttl time.Duration, keep int64) *RedisStore {
	if keep <= 0 {
		keep = 200
	}
	return &RedisStore{client: client, keys: keys, ttl: ttl, keep: keep}
}

func (s *RedisStore) StoreNotification(ctx context.Context, n domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	key := s.keys.Notifications(n.UserID)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, s.keep-1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	return nil
}

// List returns the user's notifications, newest first
func (s *RedisStore) List(ctx context.Context, userID string) ([]domain.Notification, error) {
	raw, err := s.client.LRange(ctx, s.keys.Notifications(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	out := make([]domain.Notification, 0, len(raw))
	for _, item := range raw {
		var n domain.Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification: %w", err)
		}
		out = append(out, n)
	}
	return out, nil
}

// Pusher delivers a stored notification to live clients
type Pusher interface {
	PushNotification(n domain.Notification) int
}

// Dispatcher stores a notification then pushes it to any connected client
// of the recipient. Push is advisory, storage is the record.
type Dispatcher struct {
	store  Service
	pusher Pusher
}

func NewDispatcher(store Service, pusher Pusher) *Dispatcher {
	return &Dispatcher{store: store, pusher: pusher}
}

func (d *Dispatcher) StoreNotification(ctx context.Context, n domain.Notification) error {
	if err := d.store.StoreNotification(ctx, n); err != nil {
		return err
	}
	if d.pusher != nil {
		d.pusher.PushNotification(n)
	}
	return nil
}
