package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallengeType_DefaultDuration(t *testing.T) {
	tests := []struct {
		challengeType ChallengeType
		expected      time.Duration
	}{
		{ChallengeTypeFiveK, 24 * time.Hour},
		{ChallengeTypeTenK, 24 * time.Hour},
		{ChallengeTypeWeeklyMiles, 7 * 24 * time.Hour},
		{ChallengeTypeDailyStreak, 30 * 24 * time.Hour},
		{ChallengeTypeCustom, 7 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(string(tt.challengeType), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.challengeType.DefaultDuration())
			assert.NotEmpty(t, tt.challengeType.Description())
			assert.NotEmpty(t, tt.challengeType.Title())
		})
	}
}

func TestParseChallengeType(t *testing.T) {
	for _, ct := range AllChallengeTypes() {
		parsed, err := ParseChallengeType(string(ct))
		require.NoError(t, err)
		assert.Equal(t, ct, parsed)
	}

	_, err := ParseChallengeType("marathon")
	assert.Error(t, err)
}

func TestPaymentInstructions_URI(t *testing.T) {
	p := PaymentInstructions{
		LightningAddress: "escrow@steelmount.io",
		Memo:             "challenge:c1:user:u1",
		AmountSats:       1000,
	}

	uri := p.URI()
	assert.True(t, strings.HasPrefix(uri, "lightning:escrow@steelmount.io?"))
	assert.Contains(t, uri, "amount=1000000")
	assert.Contains(t, uri, "message=challenge%3Ac1%3Auser%3Au1")
	assert.Equal(t, uri, p.URI())
}

func TestErrors_Matching(t *testing.T) {
	assert.True(t, errors.Is(ErrNoOpponentsSelected, ErrValidation))
	wrapped := fmt.Errorf("submit: %w", ErrNoOpponentsSelected)
	assert.True(t, errors.Is(wrapped, ErrNoOpponentsSelected))

	cause := errors.New("connection reset")
	creation := &ChallengeCreationError{Err: cause}
	assert.True(t, errors.Is(creation, ErrChallengeCreation))
	assert.True(t, errors.Is(creation, cause))
	assert.False(t, errors.Is(creation, ErrValidation))

	payment := &PaymentConfirmationError{ChallengeID: "c1", UserID: "u1", Err: cause}
	assert.True(t, errors.Is(payment, ErrPaymentConfirmation))
	assert.True(t, errors.Is(payment, cause))
}

func TestChallenge_HasParticipant(t *testing.T) {
	c := &Challenge{ChallengerID: "alice", OpponentID: "bob"}
	assert.True(t, c.HasParticipant("alice"))
	assert.True(t, c.HasParticipant("bob"))
	assert.False(t, c.HasParticipant("carol"))
	assert.False(t, c.HasParticipant(""))
	assert.Equal(t, []string{"alice", "bob"}, c.Participants())
}
