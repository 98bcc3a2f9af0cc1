package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loyaltykit/admin/internal/app/timeline"
)

// Store is the read side of the five timeline source tables. It satisfies
// the merger's fetcher contract via Fetchers.
type Store struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

// Fetchers adapts the store to the timeline merger's injected dependencies.
func (s *Store) Fetchers() timeline.Fetchers {
	return timeline.Fetchers{
		Ledger:            s.ListLedger,
		Redemptions:       s.ListRedemptions,
		Referrals:         s.ListReferrals,
		NudgeHistory:      s.NudgeHistory,
		GuardrailSnapshot: s.GuardrailSnapshot,
	}
}

const createLedgerTableSQL = `
CREATE TABLE IF NOT EXISTS ledger_transactions (
  id text PRIMARY KEY,
  member_id text NOT NULL,
  type text NOT NULL,
  metadata jsonb NOT NULL DEFAULT '{}'::jsonb,
  checkout_order_id text,
  occurred_at timestamptz NOT NULL,
  inserted_at timestamptz NOT NULL DEFAULT now()
)`

const createLedgerIndexSQL = `
CREATE INDEX IF NOT EXISTS ledger_transactions_keyset_idx
ON ledger_transactions (occurred_at DESC, id DESC)`

const createRedemptionsTableSQL = `
CREATE TABLE IF NOT EXISTS reward_redemptions (
  id text PRIMARY KEY,
  member_id text NOT NULL,
  status text NOT NULL,
  requested_at timestamptz NOT NULL,
  updated_at timestamptz NOT NULL DEFAULT now()
)`

const createRedemptionsIndexSQL = `
CREATE INDEX IF NOT EXISTS reward_redemptions_keyset_idx
ON reward_redemptions (requested_at DESC, id DESC)`

const createReferralsTableSQL = `
CREATE TABLE IF NOT EXISTS referral_conversions (
  id text PRIMARY KEY,
  member_id text NOT NULL,
  code text NOT NULL,
  status text NOT NULL,
  created_at timestamptz NOT NULL,
  updated_at timestamptz,
  completed_at timestamptz
)`

const createReferralsIndexSQL = `
CREATE INDEX IF NOT EXISTS referral_conversions_keyset_idx
ON referral_conversions ((COALESCE(completed_at, updated_at, created_at)) DESC, id DESC)`

const createNudgesTableSQL = `
CREATE TABLE IF NOT EXISTS member_nudges (
  id text PRIMARY KEY,
  member_id text NOT NULL,
  status text NOT NULL,
  campaign_slug text,
  metadata jsonb NOT NULL DEFAULT '{}'::jsonb,
  acknowledged_at timestamptz,
  dismissed_at timestamptz,
  last_triggered_at timestamptz,
  expires_at timestamptz
)`

const createGuardrailsTableSQL = `
CREATE TABLE IF NOT EXISTS guardrail_overrides (
  id text PRIMARY KEY,
  scope text NOT NULL,
  created_at timestamptz NOT NULL
)`

// EnsureSchema creates the timeline source tables idempotently. Both
// admin-api and event-sink run it at startup so either can come up first.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		createLedgerTableSQL,
		createLedgerIndexSQL,
		createRedemptionsTableSQL,
		createRedemptionsIndexSQL,
		createReferralsTableSQL,
		createReferralsIndexSQL,
		createNudgesTableSQL,
		createGuardrailsTableSQL,
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return EnsureSchema(ctx, s.Pool)
}
