package repository

import (
	"context"
	"sync"
	"time"

	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/domain"
	"github.com/google/uuid"
)

// ChallengeRepository is the challenge service the workflow commits to
type ChallengeRepository interface {
	CreateChallenge(ctx context.Context, req domain.ChallengeRequest) (string, error)
	GetChallenge(ctx context.Context, id string) (*domain.Challenge, error)
}

// PaymentLedger records per participant payment state
type PaymentLedger interface {
	// MarkPaid requests unpaid -> payment_claimed and returns the state held
	// before the call. Existing claims are left untouched.
	MarkPaid(ctx context.Context, challengeID, userID string) (domain.PaymentState, error)
	State(ctx context.Context, challengeID, userID string) (domain.PaymentState, error)
}

// InMemoryChallengeRepository implements ChallengeRepository using in-memory storage
type InMemoryChallengeRepository struct {
	challenges map[string]*domain.Challenge
	mu         sync.RWMutex
	now        func() time.Time
}

// NewInMemoryChallengeRepository creates a new in-memory challenge repository
func NewInMemoryChallengeRepository() *InMemoryChallengeRepository {
	return &InMemoryChallengeRepository{
		challenges: make(map[string]*domain.Challenge),
		now:        time.Now,
	}
}

// CreateChallenge stores a new challenge under a fresh id
func (r *InMemoryChallengeRepository) CreateChallenge(ctx context.Context, req domain.ChallengeRequest) (string, error) {
	challenge := newChallenge(req, r.now())

	r.mu.Lock()
	defer r.mu.Unlock()

	r.challenges[challenge.ID] = challenge
	return challenge.ID, nil
}

// GetChallenge retrieves a challenge by ID
func (r *InMemoryChallengeRepository) GetChallenge(ctx context.Context, id string) (*domain.Challenge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	challenge, exists := r.challenges[id]
	if !exists {
		return nil, ErrChallengeNotFound
	}

	copied := *challenge
	return &copied, nil
}

// Count returns the number of stored challenges
func (r *InMemoryChallengeRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.challenges)
}

// InMemoryPaymentLedger implements PaymentLedger using in-memory storage
type InMemoryPaymentLedger struct {
	states map[paymentKey]domain.PaymentState
	mu     sync.Mutex
}

type paymentKey struct {
	challengeID string
	userID      string
}

func NewInMemoryPaymentLedger() *InMemoryPaymentLedger {
	return &InMemoryPaymentLedger{
		states: make(map[paymentKey]domain.PaymentState),
	}
}

// MarkPaid claims payment for the pair unless a claim already exists
func (l *InMemoryPaymentLedger) MarkPaid(ctx context.Context, challengeID, userID string) (domain.PaymentState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := paymentKey{challengeID, userID}
	previous, exists := l.states[key]
	if !exists {
		previous = domain.PaymentStateUnpaid
	}
	if previous == domain.PaymentStateUnpaid {
		l.states[key] = domain.PaymentStateClaimed
	}
	return previous, nil
}

// State returns the current payment state, unpaid when nothing is recorded
func (l *InMemoryPaymentLedger) State(ctx context.Context, challengeID, userID string) (domain.PaymentState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if state, exists := l.states[paymentKey{challengeID, userID}]; exists {
		return state, nil
	}
	return domain.PaymentStateUnpaid, nil
}

func newChallenge(req domain.ChallengeRequest, now time.Time) *domain.Challenge {
	return &domain.Challenge{
		ID:           uuid.New().String(),
		ChallengerID: req.ChallengerID,
		OpponentID:   req.OpponentID,
		TeamID:       req.TeamID,
		Type:         req.Type,
		StakeSats:    req.StakeSats,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Message:      req.Message,
		CreatedAt:    now,
	}
}

// Repository errors
var (
	ErrChallengeNotFound = &RepositoryError{Message: "challenge not found"}
)

// RepositoryError represents a repository error
type RepositoryError struct {
	Message string
}

func (e *RepositoryError) Error() string {
	return e.Message
}
