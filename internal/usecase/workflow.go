package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/domain"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/draft"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/identity"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/logger"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/notification"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/repository"
	"github.com/sirupsen/logrus"
)

// WorkflowState is the lifecycle of one submission session
type WorkflowState int

const (
	StateIdle WorkflowState = iota
	StateSubmitting
	StateCreated
	StateFailed
)

func (s WorkflowState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateCreated:
		return "created"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Submission outcomes reported to the Observer
const (
	ResultCreated  = "created"
	ResultFailed   = "failed"
	ResultRejected = "rejected"
)

var (
	ErrSubmissionInProgress = errors.New("submission already in progress")
	ErrAlreadySubmitted     = errors.New("draft already submitted")
)

// Observer receives workflow and payment events, e.g. for metrics
type Observer interface {
	ChallengeSubmitted(result string, stakeSats int64)
	NotificationFailed()
	PaymentClaimed(result string)
}

type nopObserver struct{}

func (nopObserver) ChallengeSubmitted(string, int64) {}
func (nopObserver) NotificationFailed()              {}
func (nopObserver) PaymentClaimed(string)            {}

// Dependencies are the external services the engine talks to
type Dependencies struct {
	Challenges repository.ChallengeRepository
	Payments   repository.PaymentLedger
	Notifier   notification.Service
	Identity   identity.Provider
	Observer   Observer
	Clock      func() time.Time
}

func (d Dependencies) observer() Observer {
	if d.Observer == nil {
		return nopObserver{}
	}
	return d.Observer
}

func (d Dependencies) now() time.Time {
	if d.Clock == nil {
		return time.Now()
	}
	return d.Clock()
}

// Workflow commits one draft to the challenge service. Each wizard session
// gets its own Workflow.
type Workflow struct {
	deps Dependencies
	log  *logrus.Entry

	mu          sync.Mutex
	state       WorkflowState
	challengeID string
	lastErr     error
}

func NewWorkflow(deps Dependencies) *Workflow {
	return &Workflow{
		deps:  deps,
		log:   logger.Component("workflow"),
		state: StateIdle,
	}
}

// State returns the current lifecycle state
func (w *Workflow) State() WorkflowState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// ChallengeID returns the created challenge id once in StateCreated
func (w *Workflow) ChallengeID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.challengeID
}

// LastError returns the failure that moved the workflow to StateFailed
func (w *Workflow) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Submit validates the draft, creates a 1v1 challenge against the first
// selected opponent and notifies every selected opponent. Local checks run
// before any external call. A failed submission may be retried and will
// create a new challenge.
func (w *Workflow) Submit(ctx context.Context, d *draft.Draft) (string, error) {
	w.mu.Lock()
	switch w.state {
	case StateSubmitting:
		w.mu.Unlock()
		return "", ErrSubmissionInProgress
	case StateCreated:
		w.mu.Unlock()
		return "", ErrAlreadySubmitted
	}
	previous := w.state
	w.state = StateSubmitting
	w.mu.Unlock()

	obs := w.deps.observer()

	if err := d.Validate(); err != nil {
		w.restoreState(previous)
		obs.ChallengeSubmitted(ResultRejected, d.StakeAmount())
		return "", err
	}

	challengerID, ok := w.deps.Identity.CurrentUserID(ctx)
	if !ok {
		w.restoreState(previous)
		obs.ChallengeSubmitted(ResultRejected, d.StakeAmount())
		return "", domain.ErrNotAuthenticated
	}

	if err := ctx.Err(); err != nil {
		w.restoreState(previous)
		return "", err
	}

	opponents := d.Opponents()
	req := domain.ChallengeRequest{
		ChallengerID: challengerID,
		OpponentID:   opponents[0],
		TeamID:       d.TeamID(),
		Type:         d.ChallengeType(),
		StakeSats:    d.StakeAmount(),
		StartDate:    d.StartDate(),
		EndDate:      d.EndDate(),
		Message:      d.Message(),
	}

	w.setState(StateSubmitting, "", nil)

	log := w.log.WithFields(logrus.Fields{
		logger.FieldUserID:     challengerID,
		logger.FieldOpponentID: req.OpponentID,
	})
	log.WithField("stake_sats", req.StakeSats).Info("Submitting challenge")

	// Once dispatched, creation runs to completion even if the caller goes away.
	callCtx := context.WithoutCancel(ctx)

	challengeID, err := w.deps.Challenges.CreateChallenge(callCtx, req)
	if err != nil {
		failure := &domain.ChallengeCreationError{Err: err}
		w.setState(StateFailed, "", failure)
		obs.ChallengeSubmitted(ResultFailed, req.StakeSats)
		log.WithError(err).Warn("Challenge creation failed")
		return "", failure
	}

	log = log.WithField(logger.FieldChallengeID, challengeID)
	w.notifyOpponents(callCtx, log, challengeID, challengerID, opponents, d)

	w.setState(StateCreated, challengeID, nil)
	obs.ChallengeSubmitted(ResultCreated, req.StakeSats)
	log.Info("Challenge created")

	return challengeID, nil
}

func (w *Workflow) notifyOpponents(ctx context.Context, log *logrus.Entry, challengeID, challengerID string, opponents []string, d *draft.Draft) {
	if w.deps.Notifier == nil {
		return
	}

	for _, opponentID := range opponents {
		n := notification.ChallengeRequest(challengeID, opponentID, challengerID, d.TeamID(), d.ChallengeType(), d.StakeAmount(), w.deps.now())
		if err := w.deps.Notifier.StoreNotification(ctx, n); err != nil {
			w.deps.observer().NotificationFailed()
			log.WithError(err).WithField(logger.FieldOpponentID, opponentID).Warn("Failed to notify opponent")
		}
	}
}

func (w *Workflow) setState(state WorkflowState, challengeID string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = state
	w.challengeID = challengeID
	w.lastErr = err
}

// restoreState undoes the reservation taken by Submit when a local check
// rejects the draft before anything was dispatched.
func (w *Workflow) restoreState(state WorkflowState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = state
}
