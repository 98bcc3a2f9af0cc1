package contracts

import "time"

// Event types carried on the LOYALTY_EVENTS stream and understood by event-sink.
const (
	EventLedgerRecorded      = "ledger.recorded"
	EventRedemptionRequested = "redemption.requested"
	EventRedemptionUpdated   = "redemption.updated"
	EventReferralConverted   = "referral.converted"
	EventNudgeIssued         = "nudge.issued"
	EventNudgeUpdated        = "nudge.updated"
	EventGuardrailOverridden = "guardrail.overridden"
)

// LoyaltyEvent is the envelope published by upstream loyalty services and
// projected into the timeline source tables by event-sink. Payload fields are
// populated per event type; unused fields stay zero.
type LoyaltyEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	MemberID   string    `json:"member_id"`
	OccurredAt time.Time `json:"occurred_at"`
	ShardID    int       `json:"shard_id"`

	// ledger.recorded
	LedgerType      string            `json:"ledger_type,omitempty"`
	LedgerMetadata  map[string]string `json:"ledger_metadata,omitempty"`
	CheckoutOrderID string            `json:"checkout_order_id,omitempty"`

	// redemption.requested / redemption.updated
	RedemptionID     string `json:"redemption_id,omitempty"`
	RedemptionStatus string `json:"redemption_status,omitempty"`

	// referral.converted
	ReferralID          string     `json:"referral_id,omitempty"`
	ReferralCode        string     `json:"referral_code,omitempty"`
	ReferralStatus      string     `json:"referral_status,omitempty"`
	ReferralCompletedAt *time.Time `json:"referral_completed_at,omitempty"`

	// nudge.issued / nudge.updated
	NudgeID              string            `json:"nudge_id,omitempty"`
	NudgeStatus          string            `json:"nudge_status,omitempty"`
	NudgeCampaignSlug    string            `json:"nudge_campaign_slug,omitempty"`
	NudgeMetadata        map[string]string `json:"nudge_metadata,omitempty"`
	NudgeAcknowledgedAt  *time.Time        `json:"nudge_acknowledged_at,omitempty"`
	NudgeDismissedAt     *time.Time        `json:"nudge_dismissed_at,omitempty"`
	NudgeLastTriggeredAt *time.Time        `json:"nudge_last_triggered_at,omitempty"`
	NudgeExpiresAt       *time.Time        `json:"nudge_expires_at,omitempty"`

	// guardrail.overridden
	OverrideID    string `json:"override_id,omitempty"`
	OverrideScope string `json:"override_scope,omitempty"`
}
