package roster

import (
	"context"
	"errors"
	"sort"

	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/domain"
)

var ErrTeamNotFound = errors.New("team not found")

// Provider supplies the read-only team roster
type Provider interface {
	Members(ctx context.Context, teamID string) ([]domain.TeamMemberWithProfile, error)
}

// StaticProvider serves rosters loaded from configuration
type StaticProvider struct {
	teams map[string][]domain.TeamMemberWithProfile
}

func NewStaticProvider(teams map[string][]domain.TeamMemberWithProfile) *StaticProvider {
	copied := make(map[string][]domain.TeamMemberWithProfile, len(teams))
	for id, members := range teams {
		copied[id] = append([]domain.TeamMemberWithProfile(nil), members...)
	}
	return &StaticProvider{teams: copied}
}

func (p *StaticProvider) Members(ctx context.Context, teamID string) ([]domain.TeamMemberWithProfile, error) {
	members, ok := p.teams[teamID]
	if !ok {
		return nil, ErrTeamNotFound
	}
	return append([]domain.TeamMemberWithProfile(nil), members...), nil
}

// Candidates lists the opponents selectable by self, ordered by username
func Candidates(ctx context.Context, p Provider, teamID, self string) ([]domain.TeamMemberWithProfile, error) {
	members, err := p.Members(ctx, teamID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.TeamMemberWithProfile, 0, len(members))
	for _, m := range members {
		if m.UserID == self {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Username < out[j].Username
	})
	return out, nil
}
