// Package escrow computes the stake pot split between the hosting team and
// the challenge winner. All amounts are integer satoshis.
package escrow

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	MinStakeSats int64 = 100
	MaxStakeSats int64 = 100_000

	MinTeamFeePercent     = 5
	MaxTeamFeePercent     = 20
	DefaultTeamFeePercent = 10

	satsPerBTC int32 = 8
)

// ErrAmountOverflow is returned when the pot or the fee would not fit in int64 satoshis
var ErrAmountOverflow = errors.New("escrow amount overflows")

// NoStakesMessage is displayed instead of amounts when nothing is staked
const NoStakesMessage = "Bragging rights only - no stakes"

// TotalPot returns every participant's stake combined
func TotalPot(stakeSats int64, participantCount int) int64 {
	return stakeSats * int64(participantCount)
}

// TeamFee returns the arbitration fee retained by the team, rounded down
func TeamFee(totalPotSats int64, feePercent int) int64 {
	return totalPotSats * int64(feePercent) / 100
}

// WinnerPayout returns what is left of the pot after the team fee
func WinnerPayout(totalPotSats, teamFeeSats int64) int64 {
	return totalPotSats - teamFeeSats
}

// Breakdown is the full escrow split for one challenge
type Breakdown struct {
	StakeSats        int64 `json:"stake_sats"`
	Participants     int   `json:"participants"`
	FeePercent       int   `json:"fee_percent"`
	TotalPotSats     int64 `json:"total_pot_sats"`
	TeamFeeSats      int64 `json:"team_fee_sats"`
	WinnerPayoutSats int64 `json:"winner_payout_sats"`
}

// Calculate validates its inputs and returns the escrow split
func Calculate(stakeSats int64, participantCount, feePercent int) (Breakdown, error) {
	if stakeSats < 0 {
		return Breakdown{}, fmt.Errorf("stake must not be negative: %d", stakeSats)
	}
	if participantCount < 1 {
		return Breakdown{}, fmt.Errorf("participant count must be at least 1: %d", participantCount)
	}
	if feePercent < 0 || feePercent > 100 {
		return Breakdown{}, fmt.Errorf("fee percent must be within [0,100]: %d", feePercent)
	}

	if stakeSats > math.MaxInt64/int64(participantCount) {
		return Breakdown{}, fmt.Errorf("%w: stake %d x %d participants", ErrAmountOverflow, stakeSats, participantCount)
	}
	pot := TotalPot(stakeSats, participantCount)
	if pot > math.MaxInt64/100 {
		return Breakdown{}, fmt.Errorf("%w: pot %d", ErrAmountOverflow, pot)
	}
	fee := TeamFee(pot, feePercent)

	return Breakdown{
		StakeSats:        stakeSats,
		Participants:     participantCount,
		FeePercent:       feePercent,
		TotalPotSats:     pot,
		TeamFeeSats:      fee,
		WinnerPayoutSats: WinnerPayout(pot, fee),
	}, nil
}

// HasStakes reports whether any sats are at stake
func (b Breakdown) HasStakes() bool {
	return b.StakeSats > 0
}

// Summary returns the review screen lines. Unstaked challenges get the
// fixed bragging rights line instead of zero amounts.
func (b Breakdown) Summary() []string {
	if !b.HasStakes() {
		return []string{NoStakesMessage}
	}
	return []string{
		fmt.Sprintf("Stake per participant: %s", FormatSats(b.StakeSats)),
		fmt.Sprintf("Total pot (%d participants): %s", b.Participants, FormatSats(b.TotalPotSats)),
		fmt.Sprintf("Team arbitration fee (%d%%): %s", b.FeePercent, FormatSats(b.TeamFeeSats)),
		fmt.Sprintf("Winner payout: %s (%s BTC)", FormatSats(b.WinnerPayoutSats), FormatBTC(b.WinnerPayoutSats)),
	}
}

var satsPrinter = message.NewPrinter(language.English)

// FormatSats renders an amount like "2,700 sats"
func FormatSats(sats int64) string {
	return satsPrinter.Sprintf("%d sats", sats)
}

// FormatBTC renders satoshis as a fixed 8 decimal BTC amount
func FormatBTC(sats int64) string {
	return decimal.New(sats, -satsPerBTC).StringFixed(satsPerBTC)
}
