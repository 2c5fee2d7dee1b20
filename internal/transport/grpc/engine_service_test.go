package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/domain"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/identity"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/logger"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/notification"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/payment"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/repository"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/roster"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/security"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

var testNow = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func init() {
	logger.Init("error", "text", "discard")
}

type rateLimitCounter struct {
	hits map[string]int
}

func (r *rateLimitCounter) RecordRateLimitHit(method string) {
	r.hits[method]++
}

type engineFixture struct {
	client   *ChallengeEngineClient
	verifier *identity.TokenVerifier
	store    *notification.MemoryStore
	ledger   *repository.InMemoryPaymentLedger
	rateHits *rateLimitCounter
}

func newEngineFixture(t *testing.T, requestsPerWindow int) *engineFixture {
	t.Helper()

	f := &engineFixture{
		verifier: identity.NewTokenVerifier("test-secret", "steelmount"),
		store:    notification.NewMemoryStore(),
		ledger:   repository.NewInMemoryPaymentLedger(),
		rateHits: &rateLimitCounter{hits: map[string]int{}},
	}

	deps := usecase.Dependencies{
		Challenges: repository.NewInMemoryChallengeRepository(),
		Payments:   f.ledger,
		Notifier:   f.store,
		Identity:   identity.ContextProvider{},
		Clock:      func() time.Time { return testNow },
	}
	teams := roster.NewStaticProvider(map[string][]domain.TeamMemberWithProfile{
		"runners": {
			{UserID: "alice", Username: "alice", Role: "captain"},
			{UserID: "carol", Username: "carol", Role: "member"},
			{UserID: "bob", Username: "bob", Role: "member"},
		},
	})
	svc := NewEngineService(deps, usecase.NewPaymentUsecase(deps, payment.NewDeriver("escrow@steelmount.io")), teams, 10)

	limiter := security.NewRateLimiter(nil, requestsPerWindow, time.Minute)
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(
		NewAuthInterceptor(f.verifier).UnaryInterceptor(),
		NewRateLimitInterceptor(limiter, f.rateHits).UnaryInterceptor(),
	))
	RegisterChallengeEngineServer(server, svc)

	lis := bufconn.Listen(1 << 20)
	go server.Serve(lis)
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	f.client = NewChallengeEngineClient(conn)
	return f
}

func (f *engineFixture) as(t *testing.T, userID string) context.Context {
	t.Helper()
	token, err := f.verifier.Issue(userID, "runners", time.Hour)
	require.NoError(t, err)
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func requireCode(t *testing.T, err error, code codes.Code) *status.Status {
	t.Helper()
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok, "expected a status error, got %v", err)
	require.Equal(t, code, st.Code(), st.Message())
	return st
}

func fieldViolation(t *testing.T, st *status.Status) string {
	t.Helper()
	for _, d := range st.Details() {
		if br, ok := d.(*errdetails.BadRequest); ok && len(br.FieldViolations) > 0 {
			return br.FieldViolations[0].Field
		}
	}
	t.Fatalf("no BadRequest detail in %v", st.Details())
	return ""
}

func TestQuote_Public(t *testing.T) {
	f := newEngineFixture(t, 10)

	resp, err := f.client.Quote(context.Background(), &QuoteRequest{StakeSats: 999, Participants: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(2997), resp.Breakdown.TotalPotSats)
	assert.Equal(t, int64(299), resp.Breakdown.TeamFeeSats)
	assert.Equal(t, int64(2698), resp.Breakdown.WinnerPayoutSats)
	assert.Equal(t, 10, resp.Breakdown.FeePercent, "default fee applies")
	assert.Len(t, resp.Summary, 4)

	_, err = f.client.Quote(context.Background(), &QuoteRequest{StakeSats: -1, Participants: 2})
	st := requireCode(t, err, codes.InvalidArgument)
	assert.Equal(t, "quote", fieldViolation(t, st))

	_, err = f.client.Quote(context.Background(), &QuoteRequest{StakeSats: 4_000_000_000_000_000_000, Participants: 3, FeePercent: 10})
	st = requireCode(t, err, codes.InvalidArgument)
	assert.Equal(t, "quote", fieldViolation(t, st))
}

func TestListChallengeTypes(t *testing.T) {
	f := newEngineFixture(t, 10)

	resp, err := f.client.ListChallengeTypes(context.Background(), &ListChallengeTypesRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Types, len(domain.AllChallengeTypes()))
	assert.Equal(t, domain.ChallengeTypeFiveK, resp.Types[0].Type)
	assert.Equal(t, 24*time.Hour, resp.Types[0].DefaultDuration)
}

func TestListOpponents(t *testing.T) {
	f := newEngineFixture(t, 10)

	_, err := f.client.ListOpponents(context.Background(), &ListOpponentsRequest{TeamID: "runners"})
	requireCode(t, err, codes.Unauthenticated)

	resp, err := f.client.ListOpponents(f.as(t, "alice"), &ListOpponentsRequest{TeamID: "runners"})
	require.NoError(t, err)
	require.Len(t, resp.Opponents, 2)
	assert.Equal(t, "bob", resp.Opponents[0].UserID)
	assert.Equal(t, "carol", resp.Opponents[1].UserID)

	_, err = f.client.ListOpponents(f.as(t, "alice"), &ListOpponentsRequest{TeamID: "swimmers"})
	requireCode(t, err, codes.NotFound)
}

func TestSubmitAndPay(t *testing.T) {
	f := newEngineFixture(t, 10)
	alice := f.as(t, "alice")
	bob := f.as(t, "bob")

	submitted, err := f.client.SubmitChallenge(alice, &SubmitChallengeRequest{
		Opponents:     []string{"bob", "carol"},
		ChallengeType: "weekly_miles",
		StakeSats:     1000,
		Message:       "loser buys coffee",
		TeamID:        "runners",
	})
	require.NoError(t, err)
	require.NotEmpty(t, submitted.ChallengeID)
	assert.Equal(t, 3, submitted.Escrow.Participants)
	assert.Equal(t, int64(3000), submitted.Escrow.TotalPotSats)

	inbox, err := f.store.List(context.Background(), "carol")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, submitted.ChallengeID, inbox[0].ActionData[notification.ActionKeyChallengeID])

	instructions, err := f.client.GetPaymentInstructions(bob, &GetPaymentInstructionsRequest{ChallengeID: submitted.ChallengeID})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), instructions.Instructions.AmountSats)
	assert.Equal(t, payment.Memo(submitted.ChallengeID, "bob"), instructions.Instructions.Memo)
	assert.Contains(t, instructions.URI, "lightning:escrow@steelmount.io?amount=1000000")

	state, err := f.client.GetPaymentState(bob, &GetPaymentStateRequest{ChallengeID: submitted.ChallengeID})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStateUnpaid, state.State)

	confirmed, err := f.client.ConfirmPayment(bob, &ConfirmPaymentRequest{ChallengeID: submitted.ChallengeID})
	require.NoError(t, err)
	assert.Equal(t, "bob", confirmed.Claim.UserID)
	assert.False(t, confirmed.Claim.AlreadyClaimed)

	again, err := f.client.ConfirmPayment(bob, &ConfirmPaymentRequest{ChallengeID: submitted.ChallengeID, UserID: "bob"})
	require.NoError(t, err)
	assert.True(t, again.Claim.AlreadyClaimed)

	state, err = f.client.GetPaymentState(bob, &GetPaymentStateRequest{ChallengeID: submitted.ChallengeID})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStateClaimed, state.State)

	_, err = f.client.ConfirmPayment(alice, &ConfirmPaymentRequest{ChallengeID: submitted.ChallengeID, UserID: "bob"})
	requireCode(t, err, codes.PermissionDenied)

	_, err = f.client.GetPaymentInstructions(bob, &GetPaymentInstructionsRequest{ChallengeID: "missing"})
	requireCode(t, err, codes.NotFound)
}

func TestBraggingRightsChallengeHasNoPayment(t *testing.T) {
	f := newEngineFixture(t, 10)
	bob := f.as(t, "bob")

	submitted, err := f.client.SubmitChallenge(f.as(t, "alice"), &SubmitChallengeRequest{Opponents: []string{"bob"}})
	require.NoError(t, err)
	assert.False(t, submitted.Escrow.HasStakes())

	_, err = f.client.GetPaymentInstructions(bob, &GetPaymentInstructionsRequest{ChallengeID: submitted.ChallengeID})
	requireCode(t, err, codes.FailedPrecondition)

	_, err = f.client.ConfirmPayment(bob, &ConfirmPaymentRequest{ChallengeID: submitted.ChallengeID})
	requireCode(t, err, codes.FailedPrecondition)

	state, err := f.ledger.State(context.Background(), submitted.ChallengeID, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStateUnpaid, state)
}

func TestSubmitChallenge_Validation(t *testing.T) {
	tests := []struct {
		name  string
		req   *SubmitChallengeRequest
		field string
	}{
		{"no opponents", &SubmitChallengeRequest{StakeSats: 1000}, "opponents"},
		{"stake too small", &SubmitChallengeRequest{Opponents: []string{"bob"}, StakeSats: 99}, "stake"},
		{"unknown type", &SubmitChallengeRequest{Opponents: []string{"bob"}, ChallengeType: "marathon"}, "challenge_type"},
		{"fee out of range", &SubmitChallengeRequest{Opponents: []string{"bob"}, TeamFeePercent: 25}, "team_fee_percent"},
		{"end before start", &SubmitChallengeRequest{
			Opponents: []string{"bob"},
			StartDate: &testNow,
			EndDate:   func() *time.Time { t := testNow.Add(-time.Hour); return &t }(),
		}, "dates"},
	}

	f := newEngineFixture(t, 100)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.client.SubmitChallenge(f.as(t, "alice"), tt.req)
			st := requireCode(t, err, codes.InvalidArgument)
			assert.Equal(t, tt.field, fieldViolation(t, st))
		})
	}
}

func TestSubmitChallenge_RequiresToken(t *testing.T) {
	f := newEngineFixture(t, 10)

	_, err := f.client.SubmitChallenge(context.Background(), &SubmitChallengeRequest{Opponents: []string{"bob"}})
	requireCode(t, err, codes.Unauthenticated)

	bad := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer nope")
	_, err = f.client.SubmitChallenge(bad, &SubmitChallengeRequest{Opponents: []string{"bob"}})
	requireCode(t, err, codes.Unauthenticated)
}

func TestRateLimit_MutatingCalls(t *testing.T) {
	f := newEngineFixture(t, 1)
	alice := f.as(t, "alice")

	_, err := f.client.SubmitChallenge(alice, &SubmitChallengeRequest{Opponents: []string{"bob"}})
	require.NoError(t, err)

	_, err = f.client.SubmitChallenge(alice, &SubmitChallengeRequest{Opponents: []string{"bob"}})
	requireCode(t, err, codes.ResourceExhausted)
	assert.Equal(t, 1, f.rateHits.hits["SubmitChallenge"])

	_, err = f.client.SubmitChallenge(f.as(t, "carol"), &SubmitChallengeRequest{Opponents: []string{"bob"}})
	assert.NoError(t, err, "other users keep their own budget")

	for i := 0; i < 3; i++ {
		_, err = f.client.ListOpponents(alice, &ListOpponentsRequest{TeamID: "runners"})
		assert.NoError(t, err, "reads are not limited")
	}
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{domain.ErrNotAuthenticated, codes.Unauthenticated},
		{domain.ErrForbidden, codes.PermissionDenied},
		{&domain.ChallengeCreationError{Err: errors.New("boom")}, codes.Unavailable},
		{&domain.PaymentConfirmationError{Err: errors.New("boom")}, codes.Unavailable},
		{usecase.ErrAlreadySubmitted, codes.FailedPrecondition},
		{domain.ErrNoStake, codes.FailedPrecondition},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("unexpected"), codes.Internal},
		{status.Error(codes.Aborted, "kept"), codes.Aborted},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, status.Code(toStatus(tt.err)), tt.err.Error())
	}
	assert.Nil(t, toStatus(nil))
}
