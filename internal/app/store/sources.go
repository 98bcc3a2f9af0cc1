package store

import (
	"context"
	"time"

	"github.com/loyaltykit/admin/internal/app/timeline"
)

const maxSourceLimit = 200

const listLedgerSQL = `
SELECT id, occurred_at, type, metadata, checkout_order_id
FROM ledger_transactions
WHERE ($1::timestamptz IS NULL OR (occurred_at, id) < ($1, $2))
  AND ($3::text[] IS NULL OR type = ANY($3))
ORDER BY occurred_at DESC, id DESC
LIMIT $4`

const listRedemptionsSQL = `
SELECT id, requested_at, status
FROM reward_redemptions
WHERE ($1::timestamptz IS NULL OR (requested_at, id) < ($1, $2))
  AND ($3::text[] IS NULL OR status = ANY($3))
ORDER BY requested_at DESC, id DESC
LIMIT $4`

const listReferralsSQL = `
SELECT id, code, status, created_at, updated_at, completed_at
FROM referral_conversions
WHERE ($1::timestamptz IS NULL OR (COALESCE(completed_at, updated_at, created_at), id) < ($1, $2))
  AND ($3::text[] IS NULL OR status = ANY($3))
ORDER BY COALESCE(completed_at, updated_at, created_at) DESC, id DESC
LIMIT $4`

const nudgeHistorySQL = `
SELECT id, status, campaign_slug, metadata,
       acknowledged_at, dismissed_at, last_triggered_at, expires_at
FROM member_nudges`

const guardrailSnapshotSQL = `
SELECT id, scope, created_at
FROM guardrail_overrides
ORDER BY created_at DESC, id DESC`

// ListLedger pages ledger transactions by (occurred_at, id) keyset,
// descending. The continuation token is the fine-grained entry cursor of the
// last row; the merger treats it opaquely.
func (s *Store) ListLedger(ctx context.Context, q timeline.LedgerQuery) (timeline.LedgerPage, error) {
	ts, id, limit, err := keysetParams(q.Cursor, q.Limit)
	if err != nil {
		return timeline.LedgerPage{}, err
	}

	rows, err := s.Pool.Query(ctx, listLedgerSQL, ts, id, textArray(q.Types), limit)
	if err != nil {
		return timeline.LedgerPage{}, err
	}
	defer rows.Close()

	entries := make([]timeline.LedgerTransaction, 0, limit)
	for rows.Next() {
		var t timeline.LedgerTransaction
		var orderID *string
		if err := rows.Scan(&t.ID, &t.OccurredAt, &t.Type, &t.Metadata, &orderID); err != nil {
			return timeline.LedgerPage{}, err
		}
		if orderID != nil {
			t.CheckoutOrderID = *orderID
		}
		entries = append(entries, t)
	}
	if err := rows.Err(); err != nil {
		return timeline.LedgerPage{}, err
	}

	page := timeline.LedgerPage{Entries: entries}
	if len(entries) == limit {
		last := entries[len(entries)-1]
		token := timeline.EncodeEntryCursor(last.OccurredAt, last.ID)
		page.NextCursor = &token
	}
	return page, nil
}

func (s *Store) ListRedemptions(ctx context.Context, q timeline.RedemptionQuery) (timeline.RedemptionPage, error) {
	ts, id, limit, err := keysetParams(q.Cursor, q.Limit)
	if err != nil {
		return timeline.RedemptionPage{}, err
	}

	rows, err := s.Pool.Query(ctx, listRedemptionsSQL, ts, id, textArray(q.Statuses), limit)
	if err != nil {
		return timeline.RedemptionPage{}, err
	}
	defer rows.Close()

	redemptions := make([]timeline.Redemption, 0, limit)
	for rows.Next() {
		var r timeline.Redemption
		if err := rows.Scan(&r.ID, &r.RequestedAt, &r.Status); err != nil {
			return timeline.RedemptionPage{}, err
		}
		redemptions = append(redemptions, r)
	}
	if err := rows.Err(); err != nil {
		return timeline.RedemptionPage{}, err
	}

	page := timeline.RedemptionPage{Redemptions: redemptions}
	if len(redemptions) == limit {
		last := redemptions[len(redemptions)-1]
		token := timeline.EncodeEntryCursor(last.RequestedAt, last.ID)
		page.NextCursor = &token
	}
	return page, nil
}

func (s *Store) ListReferrals(ctx context.Context, q timeline.ReferralQuery) (timeline.ReferralPage, error) {
	ts, id, limit, err := keysetParams(q.Cursor, q.Limit)
	if err != nil {
		return timeline.ReferralPage{}, err
	}

	rows, err := s.Pool.Query(ctx, listReferralsSQL, ts, id, textArray(q.Statuses), limit)
	if err != nil {
		return timeline.ReferralPage{}, err
	}
	defer rows.Close()

	invites := make([]timeline.ReferralConversion, 0, limit)
	for rows.Next() {
		var r timeline.ReferralConversion
		if err := rows.Scan(&r.ID, &r.Code, &r.Status, &r.CreatedAt, &r.UpdatedAt, &r.CompletedAt); err != nil {
			return timeline.ReferralPage{}, err
		}
		invites = append(invites, r)
	}
	if err := rows.Err(); err != nil {
		return timeline.ReferralPage{}, err
	}

	page := timeline.ReferralPage{Invites: invites}
	if len(invites) == limit {
		last := invites[len(invites)-1]
		derived := last.CreatedAt
		if last.CompletedAt != nil {
			derived = *last.CompletedAt
		} else if last.UpdatedAt != nil {
			derived = *last.UpdatedAt
		}
		token := timeline.EncodeEntryCursor(derived, last.ID)
		page.NextCursor = &token
	}
	return page, nil
}

// NudgeHistory returns the full nudge set; nudges have no native pagination
// and are buffered (bounded) by the merger.
func (s *Store) NudgeHistory(ctx context.Context) ([]timeline.Nudge, error) {
	rows, err := s.Pool.Query(ctx, nudgeHistorySQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nudges []timeline.Nudge
	for rows.Next() {
		var n timeline.Nudge
		var slug *string
		if err := rows.Scan(&n.ID, &n.Status, &slug, &n.Metadata,
			&n.AcknowledgedAt, &n.DismissedAt, &n.LastTriggeredAt, &n.ExpiresAt); err != nil {
			return nil, err
		}
		if slug != nil {
			n.CampaignSlug = *slug
		}
		nudges = append(nudges, n)
	}
	return nudges, rows.Err()
}

// GuardrailSnapshot returns all guardrail overrides; the set is small by
// construction (manual operator actions).
func (s *Store) GuardrailSnapshot(ctx context.Context) ([]timeline.GuardrailOverride, error) {
	rows, err := s.Pool.Query(ctx, guardrailSnapshotSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []timeline.GuardrailOverride
	for rows.Next() {
		var o timeline.GuardrailOverride
		if err := rows.Scan(&o.ID, &o.Scope, &o.CreatedAt); err != nil {
			return nil, err
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

// keysetParams decodes an optional keyset token into SQL parameters.
func keysetParams(cursor *string, limit int) (*time.Time, *string, int, error) {
	if limit <= 0 || limit > maxSourceLimit {
		limit = 50
	}
	if cursor == nil {
		return nil, nil, limit, nil
	}
	ts, id, err := timeline.ParseEntryCursor(*cursor)
	if err != nil {
		return nil, nil, 0, err
	}
	return &ts, &id, limit, nil
}

// textArray maps an empty allow-list to SQL NULL so the filter collapses.
func textArray(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	return values
}
