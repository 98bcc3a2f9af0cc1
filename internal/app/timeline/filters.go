package timeline

import (
	"sort"
	"strings"
)

// Filters are the caller-supplied filter options. Unset include flags mean
// "include this source, no sub-filter"; empty allow-lists mean no sub-filter.
type Filters struct {
	IncludeLedger      *bool `json:"include_ledger,omitempty"`
	IncludeRedemptions *bool `json:"include_redemptions,omitempty"`
	IncludeReferrals   *bool `json:"include_referrals,omitempty"`
	IncludeNudges      *bool `json:"include_nudges,omitempty"`
	IncludeGuardrails  *bool `json:"include_guardrails,omitempty"`

	LedgerTypes        []string `json:"ledger_types,omitempty"`
	RedemptionStatuses []string `json:"redemption_statuses,omitempty"`
	ReferralStatuses   []string `json:"referral_statuses,omitempty"`
	NudgeStatuses      []string `json:"nudge_statuses,omitempty"`
	GuardrailScopes    []string `json:"guardrail_scopes,omitempty"`

	ReferralCode    string `json:"referral_code,omitempty"`
	CampaignSlug    string `json:"campaign_slug,omitempty"`
	CheckoutOrderID string `json:"checkout_order_id,omitempty"`
}

// AppliedFilters echoes the normalized filter set back to the caller.
type AppliedFilters struct {
	IncludeLedger      bool `json:"include_ledger"`
	IncludeRedemptions bool `json:"include_redemptions"`
	IncludeReferrals   bool `json:"include_referrals"`
	IncludeNudges      bool `json:"include_nudges"`
	IncludeGuardrails  bool `json:"include_guardrails"`

	LedgerTypes        []string `json:"ledger_types,omitempty"`
	RedemptionStatuses []string `json:"redemption_statuses,omitempty"`
	ReferralStatuses   []string `json:"referral_statuses,omitempty"`
	NudgeStatuses      []string `json:"nudge_statuses,omitempty"`
	GuardrailScopes    []string `json:"guardrail_scopes,omitempty"`

	ReferralCode    string `json:"referral_code,omitempty"`
	CampaignSlug    string `json:"campaign_slug,omitempty"`
	CheckoutOrderID string `json:"checkout_order_id,omitempty"`
}

// normalizedFilters is derived once per request and immutable for the
// duration of the merge.
type normalizedFilters struct {
	includeLedger      bool
	includeRedemptions bool
	includeReferrals   bool
	includeNudges      bool
	includeGuardrails  bool

	ledgerTypes        []string
	redemptionStatuses []string
	referralStatuses   []string
	nudgeStatuses      map[string]struct{}
	guardrailScopes    map[string]struct{}

	referralCode    string
	campaignSlug    string
	checkoutOrderID string
}

func normalizeFilters(f *Filters) normalizedFilters {
	if f == nil {
		f = &Filters{}
	}
	n := normalizedFilters{
		includeLedger:      boolOrTrue(f.IncludeLedger),
		includeRedemptions: boolOrTrue(f.IncludeRedemptions),
		includeReferrals:   boolOrTrue(f.IncludeReferrals),
		includeNudges:      boolOrTrue(f.IncludeNudges),
		includeGuardrails:  boolOrTrue(f.IncludeGuardrails),
		ledgerTypes:        cleanList(f.LedgerTypes),
		redemptionStatuses: cleanList(f.RedemptionStatuses),
		referralStatuses:   cleanList(f.ReferralStatuses),
		nudgeStatuses:      listToSet(f.NudgeStatuses),
		guardrailScopes:    listToSet(f.GuardrailScopes),
		referralCode:       strings.ToLower(strings.TrimSpace(f.ReferralCode)),
		campaignSlug:       strings.ToLower(strings.TrimSpace(f.CampaignSlug)),
		checkoutOrderID:    strings.ToLower(strings.TrimSpace(f.CheckoutOrderID)),
	}
	// Disabling the ledger source neutralizes its type filter rather than
	// leaving it dangling.
	if !n.includeLedger {
		n.ledgerTypes = nil
	}
	return n
}

func boolOrTrue(b *bool) bool {
	if b == nil {
		return true
	}
	return *b
}

func cleanList(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func listToSet(values []string) map[string]struct{} {
	cleaned := cleanList(values)
	if len(cleaned) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(cleaned))
	for _, v := range cleaned {
		set[v] = struct{}{}
	}
	return set
}

// matches runs the post-merge predicates. The paginated sources apply their
// allow-lists upstream in the fetch; the single-shot sources (nudges,
// guardrails) have no filterable fetch, so their allow-lists apply here. The
// free-text filters are mutually exclusive by precedence: a referral-code
// filter short-circuits before campaign or order filters are considered.
// Unknown filter values are not validated, they simply never match.
func (n normalizedFilters) matches(e Entry) bool {
	if e.Kind == KindNudge && n.nudgeStatuses != nil {
		if _, ok := n.nudgeStatuses[e.Nudge.Status]; !ok {
			return false
		}
	}
	if e.Kind == KindGuardrail && n.guardrailScopes != nil {
		if _, ok := n.guardrailScopes[e.Guardrail.Scope]; !ok {
			return false
		}
	}

	switch {
	case n.referralCode != "":
		return n.matchesReferralCode(e)
	case n.campaignSlug != "":
		return e.Kind == KindNudge && containsFold(e.Nudge.CampaignSlug, n.campaignSlug)
	case n.checkoutOrderID != "":
		return e.Kind == KindLedger && containsFold(e.Ledger.CheckoutOrderID, n.checkoutOrderID)
	}
	return true
}

func (n normalizedFilters) matchesReferralCode(e Entry) bool {
	switch e.Kind {
	case KindReferral:
		return containsFold(e.Referral.Code, n.referralCode)
	case KindLedger:
		return containsFold(e.Ledger.Metadata["referral_code"], n.referralCode)
	default:
		return false
	}
}

// containsFold reports whether haystack contains needle, case-insensitively.
// needle is already lowercased by normalizeFilters.
func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}

func (n normalizedFilters) applied() AppliedFilters {
	return AppliedFilters{
		IncludeLedger:      n.includeLedger,
		IncludeRedemptions: n.includeRedemptions,
		IncludeReferrals:   n.includeReferrals,
		IncludeNudges:      n.includeNudges,
		IncludeGuardrails:  n.includeGuardrails,
		LedgerTypes:        n.ledgerTypes,
		RedemptionStatuses: n.redemptionStatuses,
		ReferralStatuses:   n.referralStatuses,
		NudgeStatuses:      setToList(n.nudgeStatuses),
		GuardrailScopes:    setToList(n.guardrailScopes),
		ReferralCode:       n.referralCode,
		CampaignSlug:       n.campaignSlug,
		CheckoutOrderID:    n.checkoutOrderID,
	}
}

func setToList(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
