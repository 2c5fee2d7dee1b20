// Package draft holds the in-progress selections of one challenge creation
// session. Setters store values as given; validity is derived on read.
package draft

import (
	"time"
	"unicode/utf8"

	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/domain"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/escrow"
)

// MaxMessageLength is measured in Unicode scalars
const MaxMessageLength = 200

// Draft is owned by a single wizard session and is not safe for concurrent use
type Draft struct {
	opponents      []string
	challengeType  domain.ChallengeType
	stakeSats      int64
	startDate      time.Time
	endDate        time.Time
	message        string
	teamFeePercent int
	teamID         string
}

// New creates an empty draft starting at now with the default 5K window
func New(now time.Time) *Draft {
	d := &Draft{
		challengeType:  domain.ChallengeTypeFiveK,
		teamFeePercent: escrow.DefaultTeamFeePercent,
		startDate:      now,
	}
	d.endDate = now.Add(d.challengeType.DefaultDuration())
	return d
}

// SetOpponents replaces the opponent set. Duplicates and empty ids are
// dropped, first occurrence order is kept.
func (d *Draft) SetOpponents(ids []string) {
	seen := make(map[string]struct{}, len(ids))
	opponents := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		opponents = append(opponents, id)
	}
	d.opponents = opponents
}

// SetChallengeType changes the type and re-derives the end date from the
// type's default duration
func (d *Draft) SetChallengeType(t domain.ChallengeType) {
	d.challengeType = t
	d.endDate = d.startDate.Add(t.DefaultDuration())
}

func (d *Draft) SetStakeAmount(sats int64) {
	d.stakeSats = sats
}

func (d *Draft) SetTeamFeePercent(percent int) {
	d.teamFeePercent = percent
}

// SetDateRange stores both dates even when end is not after start
func (d *Draft) SetDateRange(start, end time.Time) {
	d.startDate = start
	d.endDate = end
}

// SetMessage stores the message truncated to MaxMessageLength scalars
func (d *Draft) SetMessage(msg string) {
	if utf8.RuneCountInString(msg) <= MaxMessageLength {
		d.message = msg
		return
	}
	runes := []rune(msg)
	d.message = string(runes[:MaxMessageLength])
}

func (d *Draft) SetTeamID(teamID string) {
	d.teamID = teamID
}

// Opponents returns a copy of the selected opponents in selection order
func (d *Draft) Opponents() []string {
	out := make([]string, len(d.opponents))
	copy(out, d.opponents)
	return out
}

func (d *Draft) ChallengeType() domain.ChallengeType { return d.challengeType }
func (d *Draft) StakeAmount() int64                  { return d.stakeSats }
func (d *Draft) TeamFeePercent() int                 { return d.teamFeePercent }
func (d *Draft) StartDate() time.Time                { return d.startDate }
func (d *Draft) EndDate() time.Time                  { return d.endDate }
func (d *Draft) Message() string                     { return d.message }
func (d *Draft) TeamID() string                      { return d.teamID }

// ParticipantCount includes the challenger
func (d *Draft) ParticipantCount() int {
	return len(d.opponents) + 1
}

func (d *Draft) TotalPotSats() int64 {
	return escrow.TotalPot(d.stakeSats, d.ParticipantCount())
}

func (d *Draft) TeamFeeSats() int64 {
	return escrow.TeamFee(d.TotalPotSats(), d.teamFeePercent)
}

func (d *Draft) WinnerPayoutSats() int64 {
	return escrow.WinnerPayout(d.TotalPotSats(), d.TeamFeeSats())
}

// Escrow returns the validated escrow breakdown for the current selections
func (d *Draft) Escrow() (escrow.Breakdown, error) {
	return escrow.Calculate(d.stakeSats, d.ParticipantCount(), d.teamFeePercent)
}

// Validate returns the first reason the draft cannot be submitted
func (d *Draft) Validate() error {
	if len(d.opponents) == 0 {
		return domain.ErrNoOpponentsSelected
	}
	if d.stakeSats != 0 && (d.stakeSats < escrow.MinStakeSats || d.stakeSats > escrow.MaxStakeSats) {
		return &domain.ValidationError{
			Field:   "stake",
			Message: "stake must be 0 or between 100 and 100,000 sats",
		}
	}
	if !d.endDate.After(d.startDate) {
		return &domain.ValidationError{
			Field:   "dates",
			Message: "end date must be after start date",
		}
	}
	return nil
}

// IsValid is re-evaluated on every call
func (d *Draft) IsValid() bool {
	return d.Validate() == nil
}

// TeamFeeInRange reports whether the fee sits inside the slider bounds
func (d *Draft) TeamFeeInRange() bool {
	return d.teamFeePercent >= escrow.MinTeamFeePercent && d.teamFeePercent <= escrow.MaxTeamFeePercent
}
