package usecase

import (
	"context"
	"fmt"

	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/domain"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/logger"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/payment"
	"github.com/sirupsen/logrus"
)

// Payment claim outcomes reported to the Observer
const (
	ClaimNew       = "claimed"
	ClaimDuplicate = "duplicate"
	ClaimFailed    = "failed"
	ClaimForbidden = "forbidden"
)

// PaymentUsecase derives payment instructions and records payment claims
type PaymentUsecase struct {
	deps    Dependencies
	deriver *payment.Deriver
	log     *logrus.Entry
}

func NewPaymentUsecase(deps Dependencies, deriver *payment.Deriver) *PaymentUsecase {
	return &PaymentUsecase{
		deps:    deps,
		deriver: deriver,
		log:     logger.Component("payment"),
	}
}

// DerivePaymentInstructions is pure and returns identical output for
// identical input
func (u *PaymentUsecase) DerivePaymentInstructions(challengeID, userID string, stakeSats int64) domain.PaymentInstructions {
	return u.deriver.Derive(challengeID, userID, stakeSats)
}

// InstructionsFor loads the challenge and derives the caller's instructions
func (u *PaymentUsecase) InstructionsFor(ctx context.Context, challengeID string) (domain.PaymentInstructions, error) {
	userID, challenge, err := u.authorize(ctx, challengeID, "")
	if err != nil {
		return domain.PaymentInstructions{}, err
	}
	if challenge.StakeSats <= 0 {
		return domain.PaymentInstructions{}, domain.ErrNoStake
	}
	return u.DerivePaymentInstructions(challenge.ID, userID, challenge.StakeSats), nil
}

// ConfirmPayment records the caller's claim that they paid their stake.
// Repeated claims succeed and report AlreadyClaimed without changing state.
func (u *PaymentUsecase) ConfirmPayment(ctx context.Context, challengeID, userID string) (domain.PaymentClaim, error) {
	obs := u.deps.observer()

	_, challenge, err := u.authorize(ctx, challengeID, userID)
	if err != nil {
		if err == domain.ErrForbidden {
			obs.PaymentClaimed(ClaimForbidden)
		}
		return domain.PaymentClaim{}, err
	}
	if challenge.StakeSats <= 0 {
		return domain.PaymentClaim{}, domain.ErrNoStake
	}

	log := u.log.WithFields(logrus.Fields{
		logger.FieldChallengeID: challengeID,
		logger.FieldUserID:      userID,
	})

	previous, err := u.deps.Payments.MarkPaid(ctx, challengeID, userID)
	if err != nil {
		obs.PaymentClaimed(ClaimFailed)
		log.WithError(err).Warn("Payment claim failed")
		return domain.PaymentClaim{}, &domain.PaymentConfirmationError{
			ChallengeID: challengeID,
			UserID:      userID,
			Err:         err,
		}
	}

	claim := domain.PaymentClaim{
		ChallengeID: challengeID,
		UserID:      userID,
		State:       domain.PaymentStateClaimed,
	}
	if previous.Claimed() {
		claim.State = previous
		claim.AlreadyClaimed = true
		obs.PaymentClaimed(ClaimDuplicate)
		log.Debug("Payment already claimed")
		return claim, nil
	}

	obs.PaymentClaimed(ClaimNew)
	log.Info("Payment claimed")
	return claim, nil
}

// PaymentState returns the caller's payment state for a challenge
func (u *PaymentUsecase) PaymentState(ctx context.Context, challengeID string) (domain.PaymentState, error) {
	userID, _, err := u.authorize(ctx, challengeID, "")
	if err != nil {
		return "", err
	}
	return u.deps.Payments.State(ctx, challengeID, userID)
}

// authorize resolves the caller, checks they match userID when given and
// that they take part in the challenge
func (u *PaymentUsecase) authorize(ctx context.Context, challengeID, userID string) (string, *domain.Challenge, error) {
	current, ok := u.deps.Identity.CurrentUserID(ctx)
	if !ok {
		return "", nil, domain.ErrNotAuthenticated
	}
	if userID != "" && userID != current {
		return "", nil, domain.ErrForbidden
	}

	challenge, err := u.deps.Challenges.GetChallenge(ctx, challengeID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	if !challenge.HasParticipant(current) {
		return "", nil, domain.ErrForbidden
	}
	return current, challenge, nil
}
