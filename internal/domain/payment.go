package domain

import (
	"fmt"
	"net/url"
)

// PaymentState is the per participant payment lifecycle
type PaymentState string

const (
	PaymentStateUnpaid  PaymentState = "unpaid"
	PaymentStateClaimed PaymentState = "payment_claimed"
	// PaymentStateConfirmed is set by external reconciliation only
	PaymentStateConfirmed PaymentState = "confirmed"
)

// Claimed reports whether the participant has at least claimed payment
func (s PaymentState) Claimed() bool {
	return s == PaymentStateClaimed || s == PaymentStateConfirmed
}

// PaymentInstructions tells a participant where and how to pay their stake
type PaymentInstructions struct {
	LightningAddress string `json:"lightning_address"`
	Memo             string `json:"memo"`
	AmountSats       int64  `json:"amount_sats"`
	Instructions     string `json:"instructions"`
}

// URI returns the lightning payment URI encoded into the QR code.
// The amount is expressed in millisatoshis.
func (p PaymentInstructions) URI() string {
	q := url.Values{}
	if p.AmountSats > 0 {
		q.Set("amount", fmt.Sprintf("%d", p.AmountSats*1000))
	}
	q.Set("message", p.Memo)
	return "lightning:" + p.LightningAddress + "?" + q.Encode()
}

// PaymentClaim is the outcome of a confirm payment request
type PaymentClaim struct {
	ChallengeID    string       `json:"challenge_id"`
	UserID         string       `json:"user_id"`
	State          PaymentState `json:"state"`
	AlreadyClaimed bool         `json:"already_claimed"`
}
