package channel

import (
	"log/slog"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/google/uuid"

	"github.com/Fantasim/bsvbank/internal/bankerr"
	"github.com/Fantasim/bsvbank/internal/config"
	"github.com/Fantasim/bsvbank/internal/store"
	"github.com/Fantasim/bsvbank/internal/txbuilder"
)

// Manager owns the payment channel state machine: opening channels,
// applying atomic payments, and driving cooperative/forced closure. Payment
// application is serialized per channel_id via a keyed mutex; distinct
// channels proceed fully concurrently.
type Manager struct {
	store   *store.Store
	locks   *keyedMutex
	mainnet bool
	feeRate uint64
}

// New constructs a channel Manager.
func New(db *store.Store, mainnet bool, feeRate uint64) *Manager {
	return &Manager{store: db, locks: newKeyedMutex(), mainnet: mainnet, feeRate: feeRate}
}

func recordToChannel(c *store.ChannelRecord) *Channel {
	return &Channel{
		ChannelID:        c.ChannelID,
		PartyA:           c.PartyA,
		PartyB:           c.PartyB,
		BalanceA:         c.CurrentBalanceA,
		BalanceB:         c.CurrentBalanceB,
		Status:           c.Status,
		Sequence:         c.Sequence,
		TimeoutBlocks:    c.TimeoutBlocks,
		OpenedAt:         c.OpenedAt,
		LastPaymentAt:    c.LastPaymentAt,
		ClosedAt:         c.ClosedAt,
		FundingTxid:      c.FundingTxid,
		SettlementTxid:   c.SettlementTxid,
		DisputeInitiator: c.DisputeInitiator,
		DisputeStartedAt: c.DisputeStartedAt,
	}
}

// Get retrieves a channel's current state.
func (m *Manager) Get(channelID string) (*Channel, error) {
	rec, err := m.store.GetChannel(channelID)
	if err != nil {
		return nil, err
	}
	return recordToChannel(rec), nil
}

// Open creates a new channel in the Opening status with the given initial
// balances. The funding transaction itself is produced by the caller via
// internal/txbuilder.BuildFunding; Open only records the resulting txid.
func (m *Manager) Open(partyA, partyB string, amountA, amountB int64, timeoutBlocks uint32, fundingTxid string) (string, error) {
	if partyA == partyB {
		return "", bankerr.AmountOutOfRange("party_a and party_b must differ")
	}
	if amountA < 0 || amountB < 0 {
		return "", bankerr.AmountOutOfRange("initial balances must be non-negative")
	}
	if amountA > 0 && amountA < config.DustThreshold {
		return "", bankerr.DustOutput(amountA, config.DustThreshold)
	}
	if amountB > 0 && amountB < config.DustThreshold {
		return "", bankerr.DustOutput(amountB, config.DustThreshold)
	}

	channelID := uuid.NewString()
	var fundingTxidPtr *string
	if fundingTxid != "" {
		fundingTxidPtr = &fundingTxid
	}

	rec := store.ChannelRecord{
		ChannelID:       channelID,
		PartyA:          partyA,
		PartyB:          partyB,
		InitialBalanceA: amountA,
		InitialBalanceB: amountB,
		CurrentBalanceA: amountA,
		CurrentBalanceB: amountB,
		Status:          StatusOpening,
		Sequence:        0,
		TimeoutBlocks:   defaultTimeoutBlocks(timeoutBlocks),
		OpenedAt:        time.Now(),
		FundingTxid:     fundingTxidPtr,
	}
	if err := m.store.InsertChannel(rec); err != nil {
		return "", err
	}
	return channelID, nil
}

// MarkFundingConfirmed transitions a channel from Opening to Open once the
// BlockchainMonitor reports the funding transaction has reached
// min_confirmations. It is a no-op if the channel has already advanced.
func (m *Manager) MarkFundingConfirmed(channelID string) error {
	release := m.locks.Lock(channelID)
	defer release()

	c, err := m.store.GetChannel(channelID)
	if err != nil {
		return err
	}
	if c.Status != StatusOpening {
		return nil
	}
	return m.store.UpdateChannelStatus(channelID, StatusOpen, nil, nil)
}

// Pay atomically applies a payment from one party to the other. It is safe
// to call concurrently for different channels; concurrent calls for the
// same channel_id are serialized.
func (m *Manager) Pay(channelID, from, to string, amount int64, memo *string) (*PaymentReceipt, error) {
	release := m.locks.Lock(channelID)
	defer release()

	rec, err := m.store.GetChannel(channelID)
	if err != nil {
		return nil, err
	}
	c := recordToChannel(rec)

	if c.Status != StatusOpen && c.Status != StatusActive {
		return nil, bankerr.InvalidStatus(c.Status, "pay")
	}
	if !c.isParty(from) || !c.isParty(to) || from == to || to != c.otherParty(from) {
		return nil, bankerr.NotAParty(from)
	}
	if amount <= 0 {
		return nil, bankerr.AmountOutOfRange("payment amount must be positive")
	}

	payerBalance, payeeIsA := balancesFor(c, from)
	if payerBalance < amount {
		return nil, bankerr.InsufficientBalance(payerBalance, amount)
	}

	newBalanceA, newBalanceB := c.BalanceA, c.BalanceB
	if payeeIsA {
		newBalanceA -= amount
		newBalanceB += amount
	} else {
		newBalanceB -= amount
		newBalanceA += amount
	}

	now := time.Now()
	payment := store.PaymentRecord{
		ID:            uuid.NewString(),
		ChannelID:     channelID,
		From:          from,
		To:            to,
		Amount:        amount,
		Sequence:      c.Sequence + 1,
		Memo:          memo,
		BalanceAAfter: newBalanceA,
		BalanceBAfter: newBalanceB,
		CreatedAt:     now,
	}
	if err := m.store.ApplyPayment(payment, newBalanceA, newBalanceB); err != nil {
		return nil, err
	}

	if c.Status == StatusOpen {
		if err := m.store.UpdateChannelStatus(channelID, StatusActive, nil, nil); err != nil {
			slog.Warn("channel: failed to advance to active after first payment", "channelID", channelID, "error", err)
		}
	}

	return &PaymentReceipt{
		PaymentID:     payment.ID,
		ChannelID:     channelID,
		From:          from,
		To:            to,
		Amount:        amount,
		Sequence:      payment.Sequence,
		BalanceAAfter: newBalanceA,
		BalanceBAfter: newBalanceB,
		CreatedAt:     now,
	}, nil
}

// balancesFor returns the payer's current balance and whether the payer is
// party A.
func balancesFor(c *Channel, from string) (balance int64, isPartyA bool) {
	if from == c.PartyA {
		return c.BalanceA, true
	}
	return c.BalanceB, false
}

// CooperativeClose builds a settlement transaction at current balances and
// transitions the channel to Closing. The caller is responsible for
// broadcasting the returned transaction; Closed is reached once the
// BlockchainMonitor reports settle_confirmed.
func (m *Manager) CooperativeClose(channelID, initiator string, fundingTxid chainhash.Hash, fundingVout uint32, fundingValue int64) (*txbuilder.Transaction, error) {
	release := m.locks.Lock(channelID)
	defer release()

	rec, err := m.store.GetChannel(channelID)
	if err != nil {
		return nil, err
	}
	c := recordToChannel(rec)

	if c.Status != StatusOpen && c.Status != StatusActive {
		return nil, bankerr.InvalidStatus(c.Status, "cooperative_close")
	}
	if !c.isParty(initiator) {
		return nil, bankerr.NotAParty(initiator)
	}

	fee := txbuilder.EstimateFeeForInputs([]txbuilder.InputKind{txbuilder.InputP2SHMultisig}, []txbuilder.OutputKind{txbuilder.OutputP2PKH, txbuilder.OutputP2PKH}, m.feeRate)
	settlementTx, err := txbuilder.BuildSettlement(fundingTxid, fundingVout, fundingValue, c.PartyA, c.BalanceA, c.PartyB, c.BalanceB, fee, m.mainnet)
	if err != nil {
		return nil, err
	}

	txid := settlementTx.TxIDString()
	if err := m.store.UpdateChannelStatus(channelID, StatusClosing, nil, &txid); err != nil {
		return nil, err
	}

	return settlementTx, nil
}

// SettleConfirmed finalizes a cooperatively or forcibly closed channel once
// the settlement transaction has reached min_confirmations.
func (m *Manager) SettleConfirmed(channelID string) error {
	release := m.locks.Lock(channelID)
	defer release()

	rec, err := m.store.GetChannel(channelID)
	if err != nil {
		return err
	}
	if rec.Status == StatusClosed {
		return nil
	}
	if rec.Status != StatusClosing {
		return bankerr.InvalidStatus(rec.Status, "settle_confirmed")
	}

	now := time.Now()
	return m.store.UpdateChannelStatus(channelID, StatusClosed, &now, nil)
}

// ForceClose unilaterally disputes a channel, starting the counterparty's
// response window.
func (m *Manager) ForceClose(channelID, initiator string) error {
	release := m.locks.Lock(channelID)
	defer release()

	rec, err := m.store.GetChannel(channelID)
	if err != nil {
		return err
	}
	c := recordToChannel(rec)

	if c.Status != StatusOpen && c.Status != StatusActive {
		return bankerr.InvalidStatus(c.Status, "force_close")
	}
	if !c.isParty(initiator) {
		return bankerr.NotAParty(initiator)
	}

	return m.store.StartDispute(channelID, initiator, time.Now())
}

// ChallengeRefresh lets the counterparty in a dispute submit a
// higher-sequence commitment, which supersedes the disputed one. The
// commitment's balances are authoritative here; they come from a
// previously countersigned commitment, not a fresh transfer amount. The
// channel remains Disputed.
func (m *Manager) ChallengeRefresh(channelID, challenger string, commitmentSequence uint64, balanceA, balanceB int64) error {
	release := m.locks.Lock(channelID)
	defer release()

	rec, err := m.store.GetChannel(channelID)
	if err != nil {
		return err
	}
	c := recordToChannel(rec)

	if c.Status != StatusDisputed {
		return bankerr.InvalidStatus(c.Status, "challenge_refresh")
	}
	if !c.isParty(challenger) {
		return bankerr.NotAParty(challenger)
	}
	if commitmentSequence <= c.Sequence {
		return bankerr.SequenceRegression(c.Sequence, commitmentSequence)
	}
	if balanceA+balanceB != c.BalanceA+c.BalanceB {
		return bankerr.AmountOutOfRange("superseding commitment must conserve total channel balance")
	}

	return m.store.ApplySupersedingCommitment(channelID, commitmentSequence, balanceA, balanceB)
}

// TimeoutSweep advances Disputed channels whose response window has
// elapsed to Closing. The window is measured in blocks, not wall-clock
// time; with no per-dispute block-height checkpoint in the persisted
// schema, elapsed blocks are approximated from wall-clock time since
// dispute_started_at divided by the network's average block interval.
func (m *Manager) TimeoutSweep() ([]string, error) {
	open, err := m.store.ListOpenChannels()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var swept []string
	for _, rec := range open {
		if rec.Status != StatusDisputed || rec.DisputeStartedAt == nil {
			continue
		}
		elapsedBlocks := int32(now.Sub(*rec.DisputeStartedAt) / config.AverageBlockInterval)
		if elapsedBlocks < int32(rec.TimeoutBlocks) {
			continue
		}

		release := m.locks.Lock(rec.ChannelID)
		if err := m.store.UpdateChannelStatus(rec.ChannelID, StatusClosing, nil, nil); err != nil {
			slog.Warn("channel: timeout sweep failed to advance channel", "channelID", rec.ChannelID, "error", err)
			release()
			continue
		}
		release()
		swept = append(swept, rec.ChannelID)
	}
	return swept, nil
}
