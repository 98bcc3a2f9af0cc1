package timeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultLimit = 20
	maxLimit     = 50

	// nudgeBufferFactor bounds the single-shot nudge buffer to limit*3 to
	// cap payload size. This is a heuristic, not a correctness guarantee:
	// under very restrictive filters a page may come back short even though
	// more nudges exist upstream.
	nudgeBufferFactor = 3
)

// Options are the caller's inputs to FetchTimeline. Cursor and CursorToken
// are accepted transparently; a pre-decoded Cursor wins when both are set.
type Options struct {
	Limit       int
	Filters     *Filters
	Cursor      *Cursor
	CursorToken string
}

// Page is one unified timeline page.
type Page struct {
	Entries        []Entry        `json:"entries"`
	Cursor         Cursor         `json:"cursor"`
	CursorToken    *string        `json:"cursor_token"`
	HasMore        bool           `json:"has_more"`
	AppliedFilters AppliedFilters `json:"applied_filters"`
}

// Service merges the five activity sources into a single
// reverse-chronological feed with stable cross-source pagination. Each call
// is independent; the only state between requests is the opaque cursor the
// caller holds.
type Service struct {
	Fetchers Fetchers
	Logger   *zap.Logger
	Now      func() time.Time
}

func NewService(fetchers Fetchers, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Fetchers: fetchers,
		Logger:   logger,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// FetchTimeline performs the streaming k-way merge by descending derived
// timestamp. Upstream fetch failures propagate and abort the whole merge;
// a corrupt cursor token degrades to the start of the feed.
func (s *Service) FetchTimeline(ctx context.Context, opts Options) (Page, error) {
	limit := clampLimit(opts.Limit)
	filters := normalizeFilters(opts.Filters)

	cursor := opts.Cursor
	if cursor == nil && opts.CursorToken != "" {
		decoded, err := DecodeCursor(opts.CursorToken)
		if err != nil {
			s.Logger.Warn("discarding malformed timeline cursor token, starting from the beginning",
				zap.Error(err))
		}
		cursor = decoded
	}
	if cursor == nil {
		cursor = &Cursor{}
	}

	sources, err := s.seedSources(ctx, limit, filters, cursor)
	if err != nil {
		return Page{}, err
	}

	entries := make([]Entry, 0, limit)
	for len(entries) < limit {
		src := pickNewest(sources)
		if src == nil {
			progressed, err := refillAny(ctx, sources)
			if err != nil {
				return Page{}, err
			}
			if !progressed {
				break
			}
			continue
		}
		e := src.consume()
		if filters.matches(e) {
			entries = append(entries, e)
		}
	}

	out := Cursor{}
	hasMore := false
	for _, src := range sources {
		setCursorField(&out, src.kind, src.continuation())
		if !src.exhausted() {
			hasMore = true
		}
	}

	var token *string
	if hasMore {
		token = EncodeCursor(&out)
	}

	return Page{
		Entries:        entries,
		Cursor:         out,
		CursorToken:    token,
		HasMore:        hasMore,
		AppliedFilters: filters.applied(),
	}, nil
}

func clampLimit(limit int) int {
	switch {
	case limit == 0:
		return defaultLimit
	case limit < 1:
		return 1
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}

// seedSources builds one sourceState per enabled source, issuing the five
// initial fetches concurrently; they have no ordering dependency on each
// other. A single-shot source whose first fetch comes back empty is dropped
// from the active set so the merge loop never has to consider it; one
// emptied by a cursor skip stays registered, holding its position in the
// emitted cursor.
func (s *Service) seedSources(ctx context.Context, limit int, filters normalizedFilters, cursor *Cursor) ([]*sourceState, error) {
	// Registration order is the merge tie-break: ledger, redemptions,
	// referrals, nudges, guardrails.
	slots := make([]*sourceState, 5)
	g, gctx := errgroup.WithContext(ctx)

	if filters.includeLedger {
		g.Go(func() error {
			page, err := s.Fetchers.Ledger(gctx, LedgerQuery{Cursor: cursor.Ledger, Limit: limit, Types: filters.ledgerTypes})
			if err != nil {
				return err
			}
			slots[0] = &sourceState{
				kind:       KindLedger,
				entries:    ledgerEntries(page.Entries),
				seedCursor: cursor.Ledger,
				nextCursor: page.NextCursor,
				refillable: true,
				refill: func(ctx context.Context, c *string) ([]Entry, *string, error) {
					p, err := s.Fetchers.Ledger(ctx, LedgerQuery{Cursor: c, Limit: limit, Types: filters.ledgerTypes})
					if err != nil {
						return nil, nil, err
					}
					return ledgerEntries(p.Entries), p.NextCursor, nil
				},
			}
			return nil
		})
	}

	if filters.includeRedemptions {
		g.Go(func() error {
			page, err := s.Fetchers.Redemptions(gctx, RedemptionQuery{Cursor: cursor.Redemptions, Limit: limit, Statuses: filters.redemptionStatuses})
			if err != nil {
				return err
			}
			slots[1] = &sourceState{
				kind:       KindRedemption,
				entries:    redemptionEntries(page.Redemptions),
				seedCursor: cursor.Redemptions,
				nextCursor: page.NextCursor,
				refillable: true,
				refill: func(ctx context.Context, c *string) ([]Entry, *string, error) {
					p, err := s.Fetchers.Redemptions(ctx, RedemptionQuery{Cursor: c, Limit: limit, Statuses: filters.redemptionStatuses})
					if err != nil {
						return nil, nil, err
					}
					return redemptionEntries(p.Redemptions), p.NextCursor, nil
				},
			}
			return nil
		})
	}

	if filters.includeReferrals {
		g.Go(func() error {
			page, err := s.Fetchers.Referrals(gctx, ReferralQuery{Cursor: cursor.Referrals, Limit: limit, Statuses: filters.referralStatuses})
			if err != nil {
				return err
			}
			slots[2] = &sourceState{
				kind:       KindReferral,
				entries:    referralEntries(page.Invites),
				seedCursor: cursor.Referrals,
				nextCursor: page.NextCursor,
				refillable: true,
				refill: func(ctx context.Context, c *string) ([]Entry, *string, error) {
					p, err := s.Fetchers.Referrals(ctx, ReferralQuery{Cursor: c, Limit: limit, Statuses: filters.referralStatuses})
					if err != nil {
						return nil, nil, err
					}
					return referralEntries(p.Invites), p.NextCursor, nil
				},
			}
			return nil
		})
	}

	if filters.includeNudges {
		g.Go(func() error {
			nudges, err := s.Fetchers.NudgeHistory(gctx)
			if err != nil {
				return err
			}
			now := s.Now()
			entries := make([]Entry, 0, len(nudges))
			for _, n := range nudges {
				entries = append(entries, entryFromNudge(n, now))
			}
			sortEntriesDesc(entries)
			entries = dropThroughCursor(entries, cursor.Nudges)
			if bound := limit * nudgeBufferFactor; len(entries) > bound {
				entries = entries[:bound]
			}
			// A source emptied by the cursor skip must stay registered so
			// the emitted cursor keeps its position; dropping it would make
			// the next page reseed from the top and replay entries.
			if len(entries) == 0 && cursor.Nudges == nil {
				return nil
			}
			slots[3] = &sourceState{
				kind:       KindNudge,
				entries:    entries,
				seedCursor: cursor.Nudges,
			}
			return nil
		})
	}

	if filters.includeGuardrails {
		g.Go(func() error {
			overrides, err := s.Fetchers.GuardrailSnapshot(gctx)
			if err != nil {
				return err
			}
			entries := make([]Entry, 0, len(overrides))
			for _, o := range overrides {
				entries = append(entries, entryFromGuardrail(o))
			}
			sortEntriesDesc(entries)
			entries = dropThroughCursor(entries, cursor.Guardrails)
			if len(entries) == 0 && cursor.Guardrails == nil {
				return nil
			}
			slots[4] = &sourceState{
				kind:       KindGuardrail,
				entries:    entries,
				seedCursor: cursor.Guardrails,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sources := make([]*sourceState, 0, len(slots))
	for _, st := range slots {
		if st != nil {
			sources = append(sources, st)
		}
	}
	return sources, nil
}

func ledgerEntries(txs []LedgerTransaction) []Entry {
	entries := make([]Entry, 0, len(txs))
	for _, t := range txs {
		entries = append(entries, entryFromLedger(t))
	}
	return entries
}

func redemptionEntries(rs []Redemption) []Entry {
	entries := make([]Entry, 0, len(rs))
	for _, r := range rs {
		entries = append(entries, entryFromRedemption(r))
	}
	return entries
}

func referralEntries(rs []ReferralConversion) []Entry {
	entries := make([]Entry, 0, len(rs))
	for _, r := range rs {
		entries = append(entries, entryFromReferral(r))
	}
	return entries
}

// pickNewest selects the source whose next unconsumed entry has the newest
// derived timestamp. The comparison is non-strict so an already-chosen
// candidate is never replaced on equal timestamps: the earliest-registered
// source wins ties.
func pickNewest(sources []*sourceState) *sourceState {
	var best *sourceState
	for _, src := range sources {
		if !src.hasBuffered() {
			continue
		}
		if best == nil || src.peek().OccurredAt.After(best.peek().OccurredAt) {
			best = src
		}
	}
	return best
}

// refillAny refills the first source that is drained but still continuable.
// An empty refill that advanced the source's cursor still counts as
// progress; the caller loops. No source left to refill ends the merge.
func refillAny(ctx context.Context, sources []*sourceState) (bool, error) {
	for _, src := range sources {
		if src.hasBuffered() || src.nextCursor == nil || !src.refillable {
			continue
		}
		if err := src.doRefill(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func setCursorField(c *Cursor, kind Kind, token *string) {
	switch kind {
	case KindLedger:
		c.Ledger = token
	case KindRedemption:
		c.Redemptions = token
	case KindReferral:
		c.Referrals = token
	case KindNudge:
		c.Nudges = token
	case KindGuardrail:
		c.Guardrails = token
	}
}
