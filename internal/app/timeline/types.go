package timeline

import "time"

// Kind identifies which of the five activity sources an entry came from.
type Kind string

const (
	KindLedger     Kind = "ledger"
	KindRedemption Kind = "redemption"
	KindReferral   Kind = "referral"
	KindNudge      Kind = "nudge"
	KindGuardrail  Kind = "guardrail_override"
)

// LedgerTransaction is a points ledger record (earn, burn, adjustment, ...).
type LedgerTransaction struct {
	ID              string            `json:"id"`
	OccurredAt      time.Time         `json:"occurred_at"`
	Type            string            `json:"type"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CheckoutOrderID string            `json:"checkout_order_id,omitempty"`
}

// Redemption is a reward redemption request.
type Redemption struct {
	ID          string    `json:"id"`
	RequestedAt time.Time `json:"requested_at"`
	Status      string    `json:"status"`
}

// ReferralConversion is a referral invite that converted.
type ReferralConversion struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      string     `json:"status"`
}

// Nudge is an engagement prompt card shown to a member.
type Nudge struct {
	ID              string            `json:"id"`
	Status          string            `json:"status"`
	CampaignSlug    string            `json:"campaign_slug,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	AcknowledgedAt  *time.Time        `json:"acknowledged_at,omitempty"`
	DismissedAt     *time.Time        `json:"dismissed_at,omitempty"`
	LastTriggeredAt *time.Time        `json:"last_triggered_at,omitempty"`
	ExpiresAt       *time.Time        `json:"expires_at,omitempty"`
}

// GuardrailOverride is a manual override of a guardrail policy.
type GuardrailOverride struct {
	ID        string    `json:"id"`
	Scope     string    `json:"scope"`
	CreatedAt time.Time `json:"created_at"`
}

// Entry is the unified timeline record: exactly one payload field is set,
// matching Kind. OccurredAt is the derived sort timestamp, computed once at
// conversion time so that ordering and pagination boundaries stay stable.
type Entry struct {
	Kind       Kind      `json:"kind"`
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`

	Ledger     *LedgerTransaction  `json:"ledger,omitempty"`
	Redemption *Redemption         `json:"redemption,omitempty"`
	Referral   *ReferralConversion `json:"referral,omitempty"`
	Nudge      *Nudge              `json:"nudge,omitempty"`
	Guardrail  *GuardrailOverride  `json:"guardrail_override,omitempty"`
}

func entryFromLedger(t LedgerTransaction) Entry {
	tx := t
	return Entry{Kind: KindLedger, ID: t.ID, OccurredAt: t.OccurredAt, Ledger: &tx}
}

func entryFromRedemption(r Redemption) Entry {
	red := r
	return Entry{Kind: KindRedemption, ID: r.ID, OccurredAt: r.RequestedAt, Redemption: &red}
}

func entryFromReferral(r ReferralConversion) Entry {
	ref := r
	return Entry{Kind: KindReferral, ID: r.ID, OccurredAt: referralTime(r), Referral: &ref}
}

func entryFromNudge(n Nudge, now time.Time) Entry {
	nd := n
	return Entry{Kind: KindNudge, ID: n.ID, OccurredAt: nudgeTime(n, now), Nudge: &nd}
}

func entryFromGuardrail(o GuardrailOverride) Entry {
	ov := o
	return Entry{Kind: KindGuardrail, ID: o.ID, OccurredAt: o.CreatedAt, Guardrail: &ov}
}

// referralTime follows the fixed fallback chain completedAt, updatedAt,
// createdAt. The chain determines sort position, so it must not change.
func referralTime(r ReferralConversion) time.Time {
	if r.CompletedAt != nil {
		return *r.CompletedAt
	}
	if r.UpdatedAt != nil {
		return *r.UpdatedAt
	}
	return r.CreatedAt
}

// nudgeTime follows the fixed fallback chain acknowledgedAt, dismissedAt,
// lastTriggeredAt, expiresAt, now.
func nudgeTime(n Nudge, now time.Time) time.Time {
	for _, ts := range []*time.Time{n.AcknowledgedAt, n.DismissedAt, n.LastTriggeredAt, n.ExpiresAt} {
		if ts != nil {
			return *ts
		}
	}
	return now
}
