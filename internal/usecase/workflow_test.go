package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/domain"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/draft"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/identity"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/logger"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/repository"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/wizard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func init() {
	logger.Init("error", "text", "discard")
}

// FakeChallengeService counts calls and can be told to fail
type FakeChallengeService struct {
	mu       sync.Mutex
	calls    int
	requests []domain.ChallengeRequest
	err      error
	inner    *repository.InMemoryChallengeRepository
}

func NewFakeChallengeService() *FakeChallengeService {
	return &FakeChallengeService{inner: repository.NewInMemoryChallengeRepository()}
}

func (f *FakeChallengeService) CreateChallenge(ctx context.Context, req domain.ChallengeRequest) (string, error) {
	f.mu.Lock()
	f.calls++
	f.requests = append(f.requests, req)
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	return f.inner.CreateChallenge(ctx, req)
}

func (f *FakeChallengeService) GetChallenge(ctx context.Context, id string) (*domain.Challenge, error) {
	return f.inner.GetChallenge(ctx, id)
}

func (f *FakeChallengeService) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FakeNotifier records notifications and can fail for chosen recipients
type FakeNotifier struct {
	mu      sync.Mutex
	stored  []domain.Notification
	failFor map[string]bool
}

func (f *FakeNotifier) StoreNotification(ctx context.Context, n domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[n.UserID] {
		return errors.New("notification backend down")
	}
	f.stored = append(f.stored, n)
	return nil
}

// FakeObserver counts reported events
type FakeObserver struct {
	mu            sync.Mutex
	submissions   map[string]int
	notifyFailed  int
	paymentClaims map[string]int
}

func NewFakeObserver() *FakeObserver {
	return &FakeObserver{submissions: map[string]int{}, paymentClaims: map[string]int{}}
}

func (o *FakeObserver) ChallengeSubmitted(result string, stakeSats int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.submissions[result]++
}

func (o *FakeObserver) NotificationFailed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notifyFailed++
}

func (o *FakeObserver) PaymentClaimed(result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paymentClaims[result]++
}

type workflowFixture struct {
	service  *FakeChallengeService
	notifier *FakeNotifier
	observer *FakeObserver
	workflow *Workflow
}

func newWorkflowFixture(user string) *workflowFixture {
	f := &workflowFixture{
		service:  NewFakeChallengeService(),
		notifier: &FakeNotifier{failFor: map[string]bool{}},
		observer: NewFakeObserver(),
	}
	f.workflow = NewWorkflow(Dependencies{
		Challenges: f.service,
		Notifier:   f.notifier,
		Identity:   identity.Static(user),
		Observer:   f.observer,
		Clock:      func() time.Time { return testNow },
	})
	return f
}

func stakedDraft(opponents ...string) *draft.Draft {
	d := draft.New(testNow)
	d.SetOpponents(opponents)
	d.SetChallengeType(domain.ChallengeTypeWeeklyMiles)
	d.SetStakeAmount(1000)
	d.SetMessage("see you out there")
	d.SetTeamID("runners")
	return d
}

func TestWorkflow_Submit_Success(t *testing.T) {
	f := newWorkflowFixture("alice")
	assert.Equal(t, StateIdle, f.workflow.State())

	id, err := f.workflow.Submit(context.Background(), stakedDraft("bob", "carol"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	assert.Equal(t, StateCreated, f.workflow.State())
	assert.Equal(t, id, f.workflow.ChallengeID())
	assert.Equal(t, 1, f.service.Calls())

	req := f.service.requests[0]
	assert.Equal(t, "alice", req.ChallengerID)
	assert.Equal(t, "bob", req.OpponentID, "first selected opponent is the counterparty")
	assert.Equal(t, domain.ChallengeTypeWeeklyMiles, req.Type)
	assert.Equal(t, int64(1000), req.StakeSats)
	assert.Equal(t, testNow.Add(7*24*time.Hour), req.EndDate)
	assert.Equal(t, "see you out there", req.Message)
	assert.Equal(t, "runners", req.TeamID)

	require.Len(t, f.notifier.stored, 2, "every selected opponent is notified")
	assert.Equal(t, "bob", f.notifier.stored[0].UserID)
	assert.Equal(t, "carol", f.notifier.stored[1].UserID)
	for _, n := range f.notifier.stored {
		assert.Equal(t, id, n.ActionData["challenge_id"])
		assert.Equal(t, "1000", n.ActionData["stake_sats"])
		assert.Equal(t, "weekly_miles", n.ActionData["challenge_type"])
		assert.Equal(t, "alice", n.FromUserID)
	}

	assert.Equal(t, 1, f.observer.submissions[ResultCreated])
}

func TestWorkflow_Submit_InvalidDraftNeverCallsService(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *draft.Draft)
		target error
	}{
		{"no opponents", func(d *draft.Draft) { d.SetOpponents(nil) }, domain.ErrNoOpponentsSelected},
		{"stake too small", func(d *draft.Draft) { d.SetStakeAmount(50) }, domain.ErrValidation},
		{"stake too large", func(d *draft.Draft) { d.SetStakeAmount(100_001) }, domain.ErrValidation},
		{"end before start", func(d *draft.Draft) { d.SetDateRange(testNow, testNow.Add(-time.Hour)) }, domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWorkflowFixture("alice")
			d := stakedDraft("bob")
			tt.mutate(d)

			_, err := f.workflow.Submit(context.Background(), d)
			assert.ErrorIs(t, err, tt.target)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Equal(t, 0, f.service.Calls())
			assert.Empty(t, f.notifier.stored)
			assert.Equal(t, StateIdle, f.workflow.State())
		})
	}
}

func TestWorkflow_Submit_NotAuthenticated(t *testing.T) {
	f := newWorkflowFixture("")

	_, err := f.workflow.Submit(context.Background(), stakedDraft("bob"))
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.Equal(t, 0, f.service.Calls())
	assert.Equal(t, StateIdle, f.workflow.State())
}

func TestWorkflow_Submit_ServiceFailure(t *testing.T) {
	f := newWorkflowFixture("alice")
	cause := errors.New("upstream timeout")
	f.service.err = cause

	_, err := f.workflow.Submit(context.Background(), stakedDraft("bob"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrChallengeCreation)
	assert.ErrorIs(t, err, cause, "service error is surfaced unchanged")
	assert.Equal(t, StateFailed, f.workflow.State())
	assert.ErrorIs(t, f.workflow.LastError(), cause)
	assert.Equal(t, 1, f.service.Calls(), "no automatic retry")
	assert.Empty(t, f.notifier.stored)
	assert.Equal(t, 1, f.observer.submissions[ResultFailed])
}

func TestWorkflow_RetryAfterFailureCreatesNewChallenge(t *testing.T) {
	f := newWorkflowFixture("alice")
	d := stakedDraft("bob")
	f.service.err = errors.New("upstream timeout")

	_, err := f.workflow.Submit(context.Background(), d)
	require.Error(t, err)

	f.service.err = nil
	id, err := f.workflow.Submit(context.Background(), d)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 2, f.service.Calls())
	assert.Equal(t, StateCreated, f.workflow.State())
	assert.Nil(t, f.workflow.LastError())

	_, err = f.workflow.Submit(context.Background(), d)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.Equal(t, 2, f.service.Calls())

	// a fresh session submitting the same content is not deduplicated
	fresh := NewWorkflow(Dependencies{Challenges: f.service, Identity: identity.Static("alice")})
	second, err := fresh.Submit(context.Background(), d)
	require.NoError(t, err)
	assert.NotEqual(t, id, second)
}

// gatedIdentity blocks CurrentUserID until released
type gatedIdentity struct {
	userID  string
	entered chan struct{}
	release chan struct{}
}

func (g *gatedIdentity) CurrentUserID(ctx context.Context) (string, bool) {
	g.entered <- struct{}{}
	<-g.release
	return g.userID, true
}

func TestWorkflow_ConcurrentSubmitCreatesOneChallenge(t *testing.T) {
	service := NewFakeChallengeService()
	gate := &gatedIdentity{userID: "alice", entered: make(chan struct{}, 2), release: make(chan struct{})}
	w := NewWorkflow(Dependencies{Challenges: service, Identity: gate})
	d := stakedDraft("bob")

	first := make(chan error, 1)
	go func() {
		_, err := w.Submit(context.Background(), d)
		first <- err
	}()
	<-gate.entered
	assert.Equal(t, StateSubmitting, w.State())

	_, err := w.Submit(context.Background(), d)
	assert.ErrorIs(t, err, ErrSubmissionInProgress)

	close(gate.release)
	require.NoError(t, <-first)
	assert.Equal(t, 1, service.Calls())
	assert.Equal(t, StateCreated, w.State())
}

func TestWorkflow_RejectedRetryKeepsFailedState(t *testing.T) {
	f := newWorkflowFixture("alice")
	cause := errors.New("upstream timeout")
	f.service.err = cause

	_, err := f.workflow.Submit(context.Background(), stakedDraft("bob"))
	require.Error(t, err)

	invalid := stakedDraft("bob")
	invalid.SetOpponents(nil)
	_, err = f.workflow.Submit(context.Background(), invalid)
	assert.ErrorIs(t, err, domain.ErrNoOpponentsSelected)
	assert.Equal(t, StateFailed, f.workflow.State())
	assert.ErrorIs(t, f.workflow.LastError(), cause)
	assert.Equal(t, 1, f.service.Calls())
}

func TestWorkflow_NotificationFailureDoesNotRollBack(t *testing.T) {
	f := newWorkflowFixture("alice")
	f.notifier.failFor["bob"] = true

	id, err := f.workflow.Submit(context.Background(), stakedDraft("bob", "carol"))
	require.NoError(t, err)
	assert.Equal(t, StateCreated, f.workflow.State())

	_, err = f.service.GetChallenge(context.Background(), id)
	assert.NoError(t, err)

	require.Len(t, f.notifier.stored, 1)
	assert.Equal(t, "carol", f.notifier.stored[0].UserID)
	assert.Equal(t, 1, f.observer.notifyFailed)
}

func TestWorkflow_CancelledBeforeDispatch(t *testing.T) {
	f := newWorkflowFixture("alice")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.workflow.Submit(ctx, stakedDraft("bob"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.service.Calls())
	assert.Equal(t, StateIdle, f.workflow.State())
}

func TestWorkflow_ThroughWizard(t *testing.T) {
	f := newWorkflowFixture("alice")
	c := wizard.NewController(draft.New(testNow))

	assert.False(t, c.Advance())
	c.Draft().SetOpponents([]string{"bob"})
	for c.Advance() {
	}
	require.Equal(t, wizard.StepReview, c.CurrentStep())

	id, err := c.Submit(context.Background(), f.workflow)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, int64(0), f.service.requests[0].StakeSats)
}

func TestWorkflowState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "submitting", StateSubmitting.String())
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "failed", StateFailed.String())
}
