package roster

import (
	"context"
	"testing"

	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidates(t *testing.T) {
	p := NewStaticProvider(map[string][]domain.TeamMemberWithProfile{
		"runners": {
			{UserID: "u3", Username: "carol", Role: "member"},
			{UserID: "u1", Username: "alice", Role: "captain"},
			{UserID: "u2", Username: "bob", Role: "member"},
		},
	})

	got, err := Candidates(context.Background(), p, "runners", "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "bob", got[0].Username)
	assert.Equal(t, "carol", got[1].Username)

	_, err = Candidates(context.Background(), p, "swimmers", "u1")
	assert.ErrorIs(t, err, ErrTeamNotFound)
}

func TestStaticProvider_ReturnsCopies(t *testing.T) {
	p := NewStaticProvider(map[string][]domain.TeamMemberWithProfile{
		"runners": {{UserID: "u1", Username: "alice"}},
	})

	members, err := p.Members(context.Background(), "runners")
	require.NoError(t, err)
	members[0].Username = "mallory"

	again, err := p.Members(context.Background(), "runners")
	require.NoError(t, err)
	assert.Equal(t, "alice", again[0].Username)
}
