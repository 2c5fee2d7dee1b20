package domain

import (
	"fmt"
	"time"
)

// ChallengeType represents the kind of fitness challenge
type ChallengeType string

const (
	ChallengeTypeFiveK       ChallengeType = "5k"
	ChallengeTypeTenK        ChallengeType = "10k"
	ChallengeTypeWeeklyMiles ChallengeType = "weekly_miles"
	ChallengeTypeDailyStreak ChallengeType = "daily_streak"
	ChallengeTypeCustom      ChallengeType = "custom"
)

type challengeTypeInfo struct {
	title       string
	description string
	duration    time.Duration
}

var challengeTypes = map[ChallengeType]challengeTypeInfo{
	ChallengeTypeFiveK:       {"5K Race", "Fastest 5K time wins", 24 * time.Hour},
	ChallengeTypeTenK:        {"10K Race", "Fastest 10K time wins", 24 * time.Hour},
	ChallengeTypeWeeklyMiles: {"Weekly Miles", "Most miles in 7 days", 7 * 24 * time.Hour},
	ChallengeTypeDailyStreak: {"Daily Streak", "Longest daily run streak", 30 * 24 * time.Hour},
	ChallengeTypeCustom:      {"Custom", "Custom challenge rules", 7 * 24 * time.Hour},
}

// AllChallengeTypes returns every challenge type in display order
func AllChallengeTypes() []ChallengeType {
	return []ChallengeType{
		ChallengeTypeFiveK,
		ChallengeTypeTenK,
		ChallengeTypeWeeklyMiles,
		ChallengeTypeDailyStreak,
		ChallengeTypeCustom,
	}
}

// ParseChallengeType converts a wire name into a ChallengeType
func ParseChallengeType(s string) (ChallengeType, error) {
	t := ChallengeType(s)
	if _, ok := challengeTypes[t]; !ok {
		return "", fmt.Errorf("unknown challenge type: %q", s)
	}
	return t, nil
}

// Title returns the short display name
func (t ChallengeType) Title() string {
	return challengeTypes[t].title
}

// Description returns the display description
func (t ChallengeType) Description() string {
	return challengeTypes[t].description
}

// DefaultDuration returns the default challenge window for the type.
// Unknown types fall back to the custom window.
func (t ChallengeType) DefaultDuration() time.Duration {
	if info, ok := challengeTypes[t]; ok {
		return info.duration
	}
	return challengeTypes[ChallengeTypeCustom].duration
}

// ChallengeRequest carries everything the challenge service needs to persist
// a new 1v1 challenge
type ChallengeRequest struct {
	ChallengerID string        `json:"challenger_id"`
	OpponentID   string        `json:"opponent_id"`
	TeamID       string        `json:"team_id,omitempty"`
	Type         ChallengeType `json:"type"`
	StakeSats    int64         `json:"stake_sats"`
	StartDate    time.Time     `json:"start_date"`
	EndDate      time.Time     `json:"end_date"`
	Message      string        `json:"message,omitempty"`
}

// Challenge is a persisted challenge as returned by the challenge service
type Challenge struct {
	ID           string        `json:"id"`
	ChallengerID string        `json:"challenger_id"`
	OpponentID   string        `json:"opponent_id"`
	TeamID       string        `json:"team_id,omitempty"`
	Type         ChallengeType `json:"type"`
	StakeSats    int64         `json:"stake_sats"`
	StartDate    time.Time     `json:"start_date"`
	EndDate      time.Time     `json:"end_date"`
	Message      string        `json:"message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Participants returns the challenger followed by the opponent
func (c *Challenge) Participants() []string {
	return []string{c.ChallengerID, c.OpponentID}
}

// HasParticipant reports whether userID takes part in the challenge
func (c *Challenge) HasParticipant(userID string) bool {
	return userID != "" && (c.ChallengerID == userID || c.OpponentID == userID)
}

// TeamMemberWithProfile is a roster entry shown on the opponent selection step
type TeamMemberWithProfile struct {
	UserID   string `json:"user_id" yaml:"user_id"`
	Username string `json:"username" yaml:"username"`
	Role     string `json:"role" yaml:"role"`
}
