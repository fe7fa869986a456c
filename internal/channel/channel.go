// Package channel implements the two-party off-chain payment channel state
// machine: opening, payment application, cooperative close, force close
// with dispute timeout, and the periodic timeout sweep.
package channel

import (
	"time"

	"github.com/Fantasim/bsvbank/internal/config"
)

// Status values a channel can occupy. Closed is absorbing.
const (
	StatusOpening  = "opening"
	StatusOpen     = "open"
	StatusActive   = "active"
	StatusDisputed = "disputed"
	StatusClosing  = "closing"
	StatusClosed   = "closed"
)

// Channel is the in-memory view of a payment channel's current state,
// mirroring store.ChannelRecord.
type Channel struct {
	ChannelID        string
	PartyA           string
	PartyB           string
	BalanceA         int64
	BalanceB         int64
	Status           string
	Sequence         uint64
	TimeoutBlocks    uint32
	OpenedAt         time.Time
	LastPaymentAt    *time.Time
	ClosedAt         *time.Time
	FundingTxid      *string
	SettlementTxid   *string
	DisputeInitiator *string
	DisputeStartedAt *time.Time
}

// PaymentReceipt is returned to the caller on a successful pay().
type PaymentReceipt struct {
	PaymentID     string
	ChannelID     string
	From          string
	To            string
	Amount        int64
	Sequence      uint64
	BalanceAAfter int64
	BalanceBAfter int64
	CreatedAt     time.Time
}

// otherParty returns the counterparty of party within the channel.
func (c *Channel) otherParty(party string) string {
	if party == c.PartyA {
		return c.PartyB
	}
	return c.PartyA
}

// isParty reports whether party is one of the two channel participants.
func (c *Channel) isParty(party string) bool {
	return party == c.PartyA || party == c.PartyB
}

func defaultTimeoutBlocks(requested uint32) uint32 {
	if requested == 0 {
		return config.DefaultChannelTimeoutBlocks
	}
	return requested
}
