package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/domain"
	engineredis "github.com/FlooooowY/SteelMount-Challenge-Engine/internal/redis"
	"github.com/go-redis/redis/v8"
)

// RedisChallengeRepository stores challenges as JSON documents
type RedisChallengeRepository struct {
	client *redis.Client
	keys   engineredis.Keyspace
	now    func() time.Time
}

func NewRedisChallengeRepository(client *redis.Client, keys engineredis.Keyspace) *RedisChallengeRepository {
	return &RedisChallengeRepository{client: client, keys: keys, now: time.Now}
}

// CreateChallenge persists a new challenge under a fresh id
func (r *RedisChallengeRepository) CreateChallenge(ctx context.Context, req domain.ChallengeRequest) (string, error) {
	challenge := newChallenge(req, r.now())

	data, err := json.Marshal(challenge)
	if err != nil {
		return "", fmt.Errorf("failed to marshal challenge: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.keys.Challenge(challenge.ID), data, 0).Result()
	if err != nil {
		return "", fmt.Errorf("failed to store challenge: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("challenge id collision: %s", challenge.ID)
	}

	return challenge.ID, nil
}

// GetChallenge retrieves a challenge by ID
func (r *RedisChallengeRepository) GetChallenge(ctx context.Context, id string) (*domain.Challenge, error) {
	data, err := r.client.Get(ctx, r.keys.Challenge(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}

	var challenge domain.Challenge
	if err := json.Unmarshal(data, &challenge); err != nil {
		return nil, fmt.Errorf("failed to unmarshal challenge: %w", err)
	}
	return &challenge, nil
}

// RedisPaymentLedger keeps one hash per challenge, field per participant
type RedisPaymentLedger struct {
	client *redis.Client
	keys   engineredis.Keyspace
}

func NewRedisPaymentLedger(client *redis.Client, keys engineredis.Keyspace) *RedisPaymentLedger {
	return &RedisPaymentLedger{client: client, keys: keys}
}

// MarkPaid uses HSETNX so concurrent or repeated claims never overwrite an
// existing state
func (l *RedisPaymentLedger) MarkPaid(ctx context.Context, challengeID, userID string) (domain.PaymentState, error) {
	key := l.keys.Payments(challengeID)

	set, err := l.client.HSetNX(ctx, key, userID, string(domain.PaymentStateClaimed)).Result()
	if err != nil {
		return "", fmt.Errorf("failed to claim payment: %w", err)
	}
	if set {
		return domain.PaymentStateUnpaid, nil
	}

	return l.State(ctx, challengeID, userID)
}

func (l *RedisPaymentLedger) State(ctx context.Context, challengeID, userID string) (domain.PaymentState, error) {
	state, err := l.client.HGet(ctx, l.keys.Payments(challengeID), userID).Result()
	if err == redis.Nil {
		return domain.PaymentStateUnpaid, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read payment state: %w", err)
	}
	return domain.PaymentState(state), nil
}
