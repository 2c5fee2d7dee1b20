package grpc

import (
	"context"
	"time"

	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/domain"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/draft"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/escrow"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/logger"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/roster"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/usecase"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/wizard"
	"github.com/sirupsen/logrus"
)

// EngineService implements ChallengeEngineServer on top of the usecases
type EngineService struct {
	deps              usecase.Dependencies
	payments          *usecase.PaymentUsecase
	roster            roster.Provider
	defaultFeePercent int
	log               *logrus.Entry
}

// NewEngineService creates the gRPC facade. deps.Identity should resolve the
// user attached by the auth interceptor.
func NewEngineService(deps usecase.Dependencies, payments *usecase.PaymentUsecase, rosterProvider roster.Provider, defaultFeePercent int) *EngineService {
	return &EngineService{
		deps:              deps,
		payments:          payments,
		roster:            rosterProvider,
		defaultFeePercent: defaultFeePercent,
		log:               logger.Component("grpc"),
	}
}

func (s *EngineService) Quote(ctx context.Context, req *QuoteRequest) (*QuoteResponse, error) {
	fee := req.FeePercent
	if fee == 0 {
		fee = s.defaultFeePercent
	}

	b, err := escrow.Calculate(req.StakeSats, req.Participants, fee)
	if err != nil {
		return nil, toStatus(&domain.ValidationError{Field: "quote", Message: err.Error()})
	}
	return &QuoteResponse{Breakdown: b, Summary: b.Summary()}, nil
}

func (s *EngineService) ListChallengeTypes(ctx context.Context, req *ListChallengeTypesRequest) (*ListChallengeTypesResponse, error) {
	types := domain.AllChallengeTypes()
	resp := &ListChallengeTypesResponse{Types: make([]ChallengeTypeInfo, 0, len(types))}
	for _, t := range types {
		resp.Types = append(resp.Types, ChallengeTypeInfo{
			Type:            t,
			Title:           t.Title(),
			Description:     t.Description(),
			DefaultDuration: t.DefaultDuration(),
		})
	}
	return resp, nil
}

func (s *EngineService) ListOpponents(ctx context.Context, req *ListOpponentsRequest) (*ListOpponentsResponse, error) {
	userID, ok := s.deps.Identity.CurrentUserID(ctx)
	if !ok {
		return nil, toStatus(domain.ErrNotAuthenticated)
	}

	candidates, err := roster.Candidates(ctx, s.roster, req.TeamID, userID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ListOpponentsResponse{Opponents: candidates}, nil
}

// SubmitChallenge walks a fresh wizard session through every step with the
// request's values and submits it from review
func (s *EngineService) SubmitChallenge(ctx context.Context, req *SubmitChallengeRequest) (*SubmitChallengeResponse, error) {
	c, err := s.buildSession(req)
	if err != nil {
		return nil, toStatus(err)
	}

	for c.Advance() {
	}
	if c.CurrentStep() != wizard.StepReview {
		if err := c.Draft().Validate(); err != nil {
			return nil, toStatus(err)
		}
		return nil, toStatus(domain.ErrNoOpponentsSelected)
	}

	breakdown, err := c.Review()
	if err != nil {
		return nil, toStatus(&domain.ValidationError{Field: "stake", Message: err.Error()})
	}

	challengeID, err := c.Submit(ctx, usecase.NewWorkflow(s.deps))
	if err != nil {
		return nil, toStatus(err)
	}

	return &SubmitChallengeResponse{ChallengeID: challengeID, Escrow: breakdown}, nil
}

func (s *EngineService) buildSession(req *SubmitChallengeRequest) (*wizard.Controller, error) {
	now := time.Now()
	if s.deps.Clock != nil {
		now = s.deps.Clock()
	}

	d := draft.New(now)
	c := wizard.NewController(d)

	d.SetOpponents(req.Opponents)
	d.SetTeamID(req.TeamID)

	if req.ChallengeType != "" {
		t, err := domain.ParseChallengeType(req.ChallengeType)
		if err != nil {
			return nil, &domain.ValidationError{Field: "challenge_type", Message: err.Error()}
		}
		d.SetChallengeType(t)
	}

	switch {
	case req.StartDate != nil && req.EndDate != nil:
		d.SetDateRange(*req.StartDate, *req.EndDate)
	case req.StartDate != nil:
		d.SetDateRange(*req.StartDate, req.StartDate.Add(d.ChallengeType().DefaultDuration()))
	case req.EndDate != nil:
		d.SetDateRange(d.StartDate(), *req.EndDate)
	}

	d.SetStakeAmount(req.StakeSats)

	fee := req.TeamFeePercent
	if fee == 0 {
		fee = s.defaultFeePercent
	}
	d.SetTeamFeePercent(fee)
	if !d.TeamFeeInRange() {
		return nil, &domain.ValidationError{
			Field:   "team_fee_percent",
			Message: "team fee must be between 5 and 20 percent",
		}
	}

	d.SetMessage(req.Message)
	return c, nil
}

func (s *EngineService) GetPaymentInstructions(ctx context.Context, req *GetPaymentInstructionsRequest) (*GetPaymentInstructionsResponse, error) {
	p, err := s.payments.InstructionsFor(ctx, req.ChallengeID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetPaymentInstructionsResponse{Instructions: p, URI: p.URI()}, nil
}

func (s *EngineService) ConfirmPayment(ctx context.Context, req *ConfirmPaymentRequest) (*ConfirmPaymentResponse, error) {
	userID := req.UserID
	if userID == "" {
		userID, _ = s.deps.Identity.CurrentUserID(ctx)
	}

	claim, err := s.payments.ConfirmPayment(ctx, req.ChallengeID, userID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ConfirmPaymentResponse{Claim: claim}, nil
}

func (s *EngineService) GetPaymentState(ctx context.Context, req *GetPaymentStateRequest) (*GetPaymentStateResponse, error) {
	state, err := s.payments.PaymentState(ctx, req.ChallengeID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetPaymentStateResponse{State: state}, nil
}
