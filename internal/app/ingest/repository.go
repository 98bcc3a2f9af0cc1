package ingest

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loyaltykit/admin/internal/app/store"
	"github.com/loyaltykit/admin/internal/contracts"
)

const createEventLogTableSQL = `
CREATE TABLE IF NOT EXISTS loyalty_events (
  event_id text PRIMARY KEY,
  event_type text NOT NULL,
  member_id text NOT NULL,
  shard_id integer NOT NULL,
  occurred_at timestamptz NOT NULL,
  payload jsonb NOT NULL,
  inserted_at timestamptz NOT NULL DEFAULT now()
)`

const createOffsetsTableSQL = `
CREATE TABLE IF NOT EXISTS ingest_offsets (
  shard_id integer PRIMARY KEY,
  last_event_seq bigint NOT NULL DEFAULT 0,
  updated_at timestamptz NOT NULL DEFAULT now()
)`

const insertEventLogSQL = `
INSERT INTO loyalty_events (event_id, event_type, member_id, shard_id, occurred_at, payload)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (event_id) DO NOTHING`

const insertLedgerSQL = `
INSERT INTO ledger_transactions (id, member_id, type, metadata, checkout_order_id, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO NOTHING`

const insertRedemptionSQL = `
INSERT INTO reward_redemptions (id, member_id, status, requested_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (id) DO NOTHING`

const updateRedemptionSQL = `
UPDATE reward_redemptions
SET status = $2, updated_at = $3
WHERE id = $1`

const upsertReferralSQL = `
INSERT INTO referral_conversions (id, member_id, code, status, created_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE
SET status = EXCLUDED.status,
    updated_at = EXCLUDED.created_at,
    completed_at = COALESCE(EXCLUDED.completed_at, referral_conversions.completed_at)`

const insertNudgeSQL = `
INSERT INTO member_nudges (id, member_id, status, campaign_slug, metadata,
                           acknowledged_at, dismissed_at, last_triggered_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING`

const updateNudgeSQL = `
UPDATE member_nudges
SET status = $2,
    acknowledged_at = COALESCE($3, acknowledged_at),
    dismissed_at = COALESCE($4, dismissed_at),
    last_triggered_at = COALESCE($5, last_triggered_at),
    expires_at = COALESCE($6, expires_at)
WHERE id = $1`

const insertGuardrailSQL = `
INSERT INTO guardrail_overrides (id, scope, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO NOTHING`

const upsertOffsetSQL = `
INSERT INTO ingest_offsets (shard_id, last_event_seq, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (shard_id) DO UPDATE
SET last_event_seq = GREATEST(ingest_offsets.last_event_seq, EXCLUDED.last_event_seq),
    updated_at = now()`

type EventRepository struct {
	Pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{Pool: pool}
}

func (r *EventRepository) EnsureSchema(ctx context.Context) error {
	if err := store.EnsureSchema(ctx, r.Pool); err != nil {
		return err
	}
	if _, err := r.Pool.Exec(ctx, createEventLogTableSQL); err != nil {
		return err
	}
	_, err := r.Pool.Exec(ctx, createOffsetsTableSQL)
	return err
}

// ApplyEvent records the raw event and applies its projection in one
// transaction. Replays are absorbed by the event-id conflict guards.
func (r *EventRepository) ApplyEvent(ctx context.Context, event contracts.LoyaltyEvent, eventSeq uint64) error {
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, insertEventLogSQL,
		event.EventID,
		event.EventType,
		event.MemberID,
		event.ShardID,
		event.OccurredAt,
		event,
	); err != nil {
		return err
	}

	if err := applyProjection(ctx, tx, event); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, upsertOffsetSQL, event.ShardID, int64(eventSeq)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func applyProjection(ctx context.Context, tx pgx.Tx, event contracts.LoyaltyEvent) error {
	switch event.EventType {
	case contracts.EventLedgerRecorded:
		metadata := event.LedgerMetadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		var orderID *string
		if event.CheckoutOrderID != "" {
			orderID = &event.CheckoutOrderID
		}
		_, err := tx.Exec(ctx, insertLedgerSQL,
			event.EventID, event.MemberID, event.LedgerType, metadata, orderID, event.OccurredAt)
		return err

	case contracts.EventRedemptionRequested:
		_, err := tx.Exec(ctx, insertRedemptionSQL,
			event.RedemptionID, event.MemberID, event.RedemptionStatus, event.OccurredAt)
		return err

	case contracts.EventRedemptionUpdated:
		_, err := tx.Exec(ctx, updateRedemptionSQL,
			event.RedemptionID, event.RedemptionStatus, event.OccurredAt)
		return err

	case contracts.EventReferralConverted:
		_, err := tx.Exec(ctx, upsertReferralSQL,
			event.ReferralID, event.MemberID, event.ReferralCode, event.ReferralStatus,
			event.OccurredAt, event.ReferralCompletedAt)
		return err

	case contracts.EventNudgeIssued:
		metadata := event.NudgeMetadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		var slug *string
		if event.NudgeCampaignSlug != "" {
			slug = &event.NudgeCampaignSlug
		}
		_, err := tx.Exec(ctx, insertNudgeSQL,
			event.NudgeID, event.MemberID, event.NudgeStatus, slug, metadata,
			event.NudgeAcknowledgedAt, event.NudgeDismissedAt,
			event.NudgeLastTriggeredAt, event.NudgeExpiresAt)
		return err

	case contracts.EventNudgeUpdated:
		_, err := tx.Exec(ctx, updateNudgeSQL,
			event.NudgeID, event.NudgeStatus,
			event.NudgeAcknowledgedAt, event.NudgeDismissedAt,
			event.NudgeLastTriggeredAt, event.NudgeExpiresAt)
		return err

	case contracts.EventGuardrailOverridden:
		_, err := tx.Exec(ctx, insertGuardrailSQL,
			event.OverrideID, event.OverrideScope, event.OccurredAt)
		return err

	default:
		return ErrUnsupportedEventType
	}
}
