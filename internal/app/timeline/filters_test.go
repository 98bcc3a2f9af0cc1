package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFiltersDefaults(t *testing.T) {
	n := normalizeFilters(nil)

	assert.True(t, n.includeLedger)
	assert.True(t, n.includeRedemptions)
	assert.True(t, n.includeReferrals)
	assert.True(t, n.includeNudges)
	assert.True(t, n.includeGuardrails)
	assert.Nil(t, n.ledgerTypes)
	assert.Nil(t, n.nudgeStatuses)
}

func TestNormalizeFiltersDisabledLedgerClearsTypes(t *testing.T) {
	off := false
	n := normalizeFilters(&Filters{
		IncludeLedger: &off,
		LedgerTypes:   []string{"earn", "burn"},
	})

	assert.False(t, n.includeLedger)
	assert.Nil(t, n.ledgerTypes)
}

func TestNormalizeFiltersLowercasesTextFilters(t *testing.T) {
	n := normalizeFilters(&Filters{ReferralCode: "  VIP-Code "})
	assert.Equal(t, "vip-code", n.referralCode)
}

func TestMatchesNudgeStatusAllowList(t *testing.T) {
	n := normalizeFilters(&Filters{NudgeStatuses: []string{"acknowledged"}})

	ack := Entry{Kind: KindNudge, Nudge: &Nudge{Status: "acknowledged"}}
	dismissed := Entry{Kind: KindNudge, Nudge: &Nudge{Status: "dismissed"}}
	ledger := Entry{Kind: KindLedger, Ledger: &LedgerTransaction{Type: "earn"}}

	assert.True(t, n.matches(ack))
	assert.False(t, n.matches(dismissed))
	// The nudge allow-list has no bearing on other kinds.
	assert.True(t, n.matches(ledger))
}

func TestMatchesUnknownValuesNeverMatch(t *testing.T) {
	n := normalizeFilters(&Filters{GuardrailScopes: []string{"no-such-scope"}})

	override := Entry{Kind: KindGuardrail, Guardrail: &GuardrailOverride{Scope: "member"}}
	assert.False(t, n.matches(override))
}

func TestMatchesReferralCodeShortCircuitsOtherTextFilters(t *testing.T) {
	// When referral_code is set, campaign_slug and checkout_order_id are
	// ignored entirely rather than AND-ed.
	n := normalizeFilters(&Filters{
		ReferralCode: "vip",
		CampaignSlug: "winback",
	})

	nudge := Entry{Kind: KindNudge, Nudge: &Nudge{Status: "issued", CampaignSlug: "winback-q3"}}
	referral := Entry{Kind: KindReferral, Referral: &ReferralConversion{Code: "SUMMER-VIP"}}
	ledgerHit := Entry{Kind: KindLedger, Ledger: &LedgerTransaction{Metadata: map[string]string{"referral_code": "VIP1"}}}
	ledgerMiss := Entry{Kind: KindLedger, Ledger: &LedgerTransaction{Metadata: map[string]string{"referral_code": "FRIEND"}}}

	assert.False(t, n.matches(nudge), "campaign match must not rescue an entry under a referral-code filter")
	assert.True(t, n.matches(referral))
	assert.True(t, n.matches(ledgerHit))
	assert.False(t, n.matches(ledgerMiss))
}

func TestMatchesCampaignSlug(t *testing.T) {
	n := normalizeFilters(&Filters{CampaignSlug: "WINBACK"})

	hit := Entry{Kind: KindNudge, Nudge: &Nudge{Status: "issued", CampaignSlug: "winback-q3"}}
	miss := Entry{Kind: KindNudge, Nudge: &Nudge{Status: "issued", CampaignSlug: "onboarding"}}
	ledger := Entry{Kind: KindLedger, Ledger: &LedgerTransaction{Type: "earn"}}

	assert.True(t, n.matches(hit))
	assert.False(t, n.matches(miss))
	assert.False(t, n.matches(ledger), "campaign filter only matches nudges")
}

func TestMatchesCheckoutOrderID(t *testing.T) {
	n := normalizeFilters(&Filters{CheckoutOrderID: "order-42"})

	hit := Entry{Kind: KindLedger, Ledger: &LedgerTransaction{CheckoutOrderID: "ORDER-4242"}}
	miss := Entry{Kind: KindLedger, Ledger: &LedgerTransaction{CheckoutOrderID: "order-7"}}
	redemption := Entry{Kind: KindRedemption, Redemption: &Redemption{Status: "pending"}}

	assert.True(t, n.matches(hit))
	assert.False(t, n.matches(miss))
	assert.False(t, n.matches(redemption))
}

func TestAppliedFiltersEchoIsDeterministic(t *testing.T) {
	n := normalizeFilters(&Filters{NudgeStatuses: []string{"dismissed", "acknowledged", "issued"}})

	applied := n.applied()
	assert.Equal(t, []string{"acknowledged", "dismissed", "issued"}, applied.NudgeStatuses)
}
