package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Fantasim/bsvbank/internal/bankerr"
)

// ChannelRecord is the durable row shape for a payment channel.
type ChannelRecord struct {
	ChannelID        string
	PartyA           string
	PartyB           string
	InitialBalanceA  int64
	InitialBalanceB  int64
	CurrentBalanceA  int64
	CurrentBalanceB  int64
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

// PaymentRecord is a single audited payment applied to a channel.
type PaymentRecord struct {
	ID             string
	ChannelID      string
	From           string
	To             string
	Amount         int64
	Sequence       uint64
	Memo           *string
	BalanceAAfter  int64
	BalanceBAfter  int64
	CreatedAt      time.Time
	ProcessingMs   *int64
}

// InsertChannel inserts a newly opened channel.
func (s *Store) InsertChannel(c ChannelRecord) error {
	slog.Debug("inserting channel", "channelID", c.ChannelID, "partyA", c.PartyA, "partyB", c.PartyB)

	_, err := s.conn.Exec(
		`INSERT INTO channels (channel_id, party_a, party_b, initial_balance_a, initial_balance_b,
			current_balance_a, current_balance_b, status, sequence, timeout_blocks, opened_at,
			funding_txid)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ChannelID, c.PartyA, c.PartyB, c.InitialBalanceA, c.InitialBalanceB,
		c.CurrentBalanceA, c.CurrentBalanceB, c.Status, c.Sequence, c.TimeoutBlocks,
		c.OpenedAt.UTC().Format(time.RFC3339Nano), nullableString(c.FundingTxid),
	)
	if err != nil {
		return fmt.Errorf("insert channel %s: %w", c.ChannelID, err)
	}
	slog.Info("channel opened", "channelID", c.ChannelID)
	return nil
}

// GetChannel retrieves a channel by ID.
func (s *Store) GetChannel(channelID string) (*ChannelRecord, error) {
	var c ChannelRecord
	var lastPaymentAt, closedAt, fundingTxid, settlementTxid sql.NullString
	var disputeInitiator, disputeStartedAt sql.NullString
	var openedAt string

	err := s.conn.QueryRow(
		`SELECT channel_id, party_a, party_b, initial_balance_a, initial_balance_b,
			current_balance_a, current_balance_b, status, sequence, timeout_blocks,
			opened_at, last_payment_at, closed_at, funding_txid, settlement_txid,
			dispute_initiator, dispute_started_at
		 FROM channels WHERE channel_id = ?`,
		channelID,
	).Scan(
		&c.ChannelID, &c.PartyA, &c.PartyB, &c.InitialBalanceA, &c.InitialBalanceB,
		&c.CurrentBalanceA, &c.CurrentBalanceB, &c.Status, &c.Sequence, &c.TimeoutBlocks,
		&openedAt, &lastPaymentAt, &closedAt, &fundingTxid, &settlementTxid,
		&disputeInitiator, &disputeStartedAt,
	)
	if err == sql.ErrNoRows {
		return nil, bankerr.ChannelNotFound(channelID)
	}
	if err != nil {
		return nil, fmt.Errorf("get channel %s: %w", channelID, err)
	}

	c.OpenedAt, _ = time.Parse(time.RFC3339Nano, openedAt)
	if lastPaymentAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, lastPaymentAt.String)
		c.LastPaymentAt = &t
	}
	if closedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, closedAt.String)
		c.ClosedAt = &t
	}
	if fundingTxid.Valid {
		c.FundingTxid = &fundingTxid.String
	}
	if settlementTxid.Valid {
		c.SettlementTxid = &settlementTxid.String
	}
	if disputeInitiator.Valid {
		c.DisputeInitiator = &disputeInitiator.String
	}
	if disputeStartedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, disputeStartedAt.String)
		c.DisputeStartedAt = &t
	}

	return &c, nil
}

// ApplyPayment atomically updates a channel's balances/sequence and inserts the
// audit payment record and state snapshot in a single transaction, per the
// balance-conservation and sequence-monotonicity invariants.
func (s *Store) ApplyPayment(p PaymentRecord, newBalanceA, newBalanceB int64) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin payment transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE channels SET current_balance_a = ?, current_balance_b = ?, sequence = ?, last_payment_at = ?
		 WHERE channel_id = ? AND sequence = ?`,
		newBalanceA, newBalanceB, p.Sequence, p.CreatedAt.UTC().Format(time.RFC3339Nano),
		p.ChannelID, p.Sequence-1,
	)
	if err != nil {
		return fmt.Errorf("update channel balances: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return bankerr.SequenceRegression(p.Sequence-1, p.Sequence)
	}

	var processingMs sql.NullInt64
	if p.ProcessingMs != nil {
		processingMs = sql.NullInt64{Int64: *p.ProcessingMs, Valid: true}
	}

	if _, err := tx.Exec(
		`INSERT INTO channel_payments (id, channel_id, from_party, to_party, amount, sequence, memo,
			balance_a_after, balance_b_after, created_at, processing_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ChannelID, p.From, p.To, p.Amount, p.Sequence, nullableString(p.Memo),
		p.BalanceAAfter, p.BalanceBAfter, p.CreatedAt.UTC().Format(time.RFC3339Nano), processingMs,
	); err != nil {
		return fmt.Errorf("insert payment record: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO channel_states (channel_id, sequence, balance_a, balance_b) VALUES (?, ?, ?, ?)`,
		p.ChannelID, p.Sequence, newBalanceA, newBalanceB,
	); err != nil {
		return fmt.Errorf("insert channel state snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit payment transaction: %w", err)
	}

	slog.Info("payment applied",
		"channelID", p.ChannelID, "sequence", p.Sequence, "amount", p.Amount,
		"from", p.From, "to", p.To,
	)
	return nil
}

// ApplySupersedingCommitment records a higher-sequence commitment
// surfacing balances without an associated payment audit record — the
// challenge-refresh path in a dispute, where the new state comes from a
// previously-signed commitment rather than a fresh transfer. Uses the same
// conditional-UPDATE guard as ApplyPayment so a stale sequence is rejected
// rather than silently overwritten.
func (s *Store) ApplySupersedingCommitment(channelID string, sequence uint64, balanceA, balanceB int64) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin commitment transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE channels SET current_balance_a = ?, current_balance_b = ?, sequence = ? WHERE channel_id = ? AND sequence < ?`,
		balanceA, balanceB, sequence, channelID, sequence,
	)
	if err != nil {
		return fmt.Errorf("update channel balances: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return bankerr.SequenceRegression(sequence, sequence)
	}

	if _, err := tx.Exec(
		`INSERT INTO channel_states (channel_id, sequence, balance_a, balance_b) VALUES (?, ?, ?, ?)`,
		channelID, sequence, balanceA, balanceB,
	); err != nil {
		return fmt.Errorf("insert channel state snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit commitment transaction: %w", err)
	}

	slog.Info("superseding commitment applied", "channelID", channelID, "sequence", sequence)
	return nil
}

// UpdateChannelStatus transitions a channel's status and, for terminal
// transitions, records the closing timestamp and settlement txid.
func (s *Store) UpdateChannelStatus(channelID, status string, closedAt *time.Time, settlementTxid *string) error {
	var closedAtStr sql.NullString
	if closedAt != nil {
		closedAtStr = sql.NullString{String: closedAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	_, err := s.conn.Exec(
		`UPDATE channels SET status = ?, closed_at = COALESCE(?, closed_at), settlement_txid = COALESCE(?, settlement_txid)
		 WHERE channel_id = ?`,
		status, closedAtStr, nullableString(settlementTxid), channelID,
	)
	if err != nil {
		return fmt.Errorf("update channel %s status: %w", channelID, err)
	}
	slog.Info("channel status updated", "channelID", channelID, "status", status)
	return nil
}

// ListOpenChannels returns all channels not in a terminal Closed state, used
// by the timeout sweep to find channels eligible for force-close resolution.
func (s *Store) ListOpenChannels() ([]ChannelRecord, error) {
	rows, err := s.conn.Query(
		`SELECT channel_id, party_a, party_b, initial_balance_a, initial_balance_b,
			current_balance_a, current_balance_b, status, sequence, timeout_blocks, opened_at,
			dispute_initiator, dispute_started_at
		 FROM channels WHERE status != 'closed'`,
	)
	if err != nil {
		return nil, fmt.Errorf("list open channels: %w", err)
	}
	defer rows.Close()

	var out []ChannelRecord
	for rows.Next() {
		var c ChannelRecord
		var openedAt string
		var disputeInitiator, disputeStartedAt sql.NullString
		if err := rows.Scan(
			&c.ChannelID, &c.PartyA, &c.PartyB, &c.InitialBalanceA, &c.InitialBalanceB,
			&c.CurrentBalanceA, &c.CurrentBalanceB, &c.Status, &c.Sequence, &c.TimeoutBlocks, &openedAt,
			&disputeInitiator, &disputeStartedAt,
		); err != nil {
			return nil, fmt.Errorf("scan channel row: %w", err)
		}
		c.OpenedAt, _ = time.Parse(time.RFC3339Nano, openedAt)
		if disputeInitiator.Valid {
			c.DisputeInitiator = &disputeInitiator.String
		}
		if disputeStartedAt.Valid {
			t, _ := time.Parse(time.RFC3339Nano, disputeStartedAt.String)
			c.DisputeStartedAt = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// StartDispute records a force-close dispute's initiator and start time and
// transitions the channel to Disputed.
func (s *Store) StartDispute(channelID, initiator string, startedAt time.Time) error {
	_, err := s.conn.Exec(
		`UPDATE channels SET status = 'disputed', dispute_initiator = ?, dispute_started_at = ? WHERE channel_id = ?`,
		initiator, startedAt.UTC().Format(time.RFC3339Nano), channelID,
	)
	if err != nil {
		return fmt.Errorf("start dispute for channel %s: %w", channelID, err)
	}
	slog.Info("channel dispute started", "channelID", channelID, "initiator", initiator)
	return nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
