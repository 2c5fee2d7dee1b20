package payment

import (
	"fmt"
	"strings"

	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/domain"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/escrow"
)

const memoPrefix = "steelmount"

// Deriver builds payment instructions for the configured escrow address.
// Derivation does no I/O and is deterministic.
type Deriver struct {
	lightningAddress string
}

func NewDeriver(lightningAddress string) *Deriver {
	return &Deriver{lightningAddress: lightningAddress}
}

// Memo correlates an inbound payment with a challenge participant
func Memo(challengeID, userID string) string {
	return fmt.Sprintf("%s:challenge:%s:user:%s", memoPrefix, challengeID, userID)
}

// Derive returns the instructions for userID's stake in challengeID
func (d *Deriver) Derive(challengeID, userID string, stakeSats int64) domain.PaymentInstructions {
	memo := Memo(challengeID, userID)

	if stakeSats <= 0 {
		return domain.PaymentInstructions{
			LightningAddress: d.lightningAddress,
			Memo:             memo,
			Instructions:     "No payment is due. " + escrow.NoStakesMessage + ".",
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Send %s to %s.\n", escrow.FormatSats(stakeSats), d.lightningAddress)
	fmt.Fprintf(&b, "Include the memo %q so the team can match your payment.\n", memo)
	b.WriteString("Once sent, tap \"I've sent it\". Funds are held by the team until the challenge is settled.")

	return domain.PaymentInstructions{
		LightningAddress: d.lightningAddress,
		Memo:             memo,
		AmountSats:       stakeSats,
		Instructions:     b.String(),
	}
}
