// Package wizard drives the four step challenge creation flow independently
// of any UI toolkit.
package wizard

import (
	"context"
	"errors"
	"fmt"

	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/draft"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/escrow"
)

// Step is a position in the linear wizard sequence
type Step int

const (
	StepOpponentSelection Step = iota
	StepChallengeType
	StepStakes
	StepReview
)

const stepCount = 4

func (s Step) String() string {
	switch s {
	case StepOpponentSelection:
		return "opponent_selection"
	case StepChallengeType:
		return "challenge_type"
	case StepStakes:
		return "stakes"
	case StepReview:
		return "review"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// ErrNotOnReview is returned when submit is attempted before the review step
var ErrNotOnReview = errors.New("submit is only available from the review step")

// Submitter commits a finished draft, typically usecase.Workflow
type Submitter interface {
	Submit(ctx context.Context, d *draft.Draft) (string, error)
}

// Controller owns one wizard session. It is not safe for concurrent use;
// abandon a session by dropping the controller.
type Controller struct {
	draft *draft.Draft
	step  Step
}

// NewController starts a session at the opponent selection step
func NewController(d *draft.Draft) *Controller {
	return &Controller{draft: d, step: StepOpponentSelection}
}

func (c *Controller) Draft() *draft.Draft { return c.draft }
func (c *Controller) CurrentStep() Step   { return c.step }

// StepValid evaluates the local predicate that gates leaving step s
func (c *Controller) StepValid(s Step) bool {
	switch s {
	case StepOpponentSelection:
		return len(c.draft.Opponents()) >= 1
	case StepChallengeType, StepStakes:
		return true
	case StepReview:
		return c.draft.IsValid()
	default:
		return false
	}
}

// CanAdvance reports whether Advance would move forward
func (c *Controller) CanAdvance() bool {
	return c.step < StepReview && c.StepValid(c.step)
}

// Advance moves to the next step when the current step is valid. It never
// moves past review; submission is explicit.
func (c *Controller) Advance() bool {
	if !c.CanAdvance() {
		return false
	}
	c.step++
	return true
}

// Retreat moves back one step regardless of validity
func (c *Controller) Retreat() bool {
	if c.step == StepOpponentSelection {
		return false
	}
	c.step--
	return true
}

// JumpTo moves directly to an earlier step, used by the review step's edit
// links. Forward jumps are rejected.
func (c *Controller) JumpTo(s Step) bool {
	if s < StepOpponentSelection || s >= stepCount || s > c.step {
		return false
	}
	c.step = s
	return true
}

// CanSubmit reports whether the session is on review with a valid draft
func (c *Controller) CanSubmit() bool {
	return c.step == StepReview && c.draft.IsValid()
}

// Review returns the escrow breakdown shown on the review step
func (c *Controller) Review() (escrow.Breakdown, error) {
	return c.draft.Escrow()
}

// Submit hands the draft to the submitter. Validation of the draft itself is
// the submitter's responsibility so that it can report a specific error.
func (c *Controller) Submit(ctx context.Context, s Submitter) (string, error) {
	if c.step != StepReview {
		return "", ErrNotOnReview
	}
	return s.Submit(ctx, c.draft)
}
