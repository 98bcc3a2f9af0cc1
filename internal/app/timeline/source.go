package timeline

import (
	"context"
	"sort"
)

// LedgerQuery is the fetch request for the ledger source.
type LedgerQuery struct {
	Cursor *string
	Limit  int
	Types  []string
}

// LedgerPage is one page of ledger transactions plus the source's own
// continuation token (nil when exhausted).
type LedgerPage struct {
	Entries    []LedgerTransaction
	NextCursor *string
}

type RedemptionQuery struct {
	Cursor   *string
	Limit    int
	Statuses []string
}

type RedemptionPage struct {
	Redemptions []Redemption
	NextCursor  *string
}

type ReferralQuery struct {
	Cursor   *string
	Limit    int
	Statuses []string
}

type ReferralPage struct {
	Invites    []ReferralConversion
	NextCursor *string
}

// Fetchers are the five source collaborators, injected at construction so
// tests can swap them without process-wide state. Ledger, Redemptions and
// Referrals are cursor-paginated; NudgeHistory and GuardrailSnapshot return
// their full data set per call.
type Fetchers struct {
	Ledger            func(ctx context.Context, q LedgerQuery) (LedgerPage, error)
	Redemptions       func(ctx context.Context, q RedemptionQuery) (RedemptionPage, error)
	Referrals         func(ctx context.Context, q ReferralQuery) (ReferralPage, error)
	NudgeHistory      func(ctx context.Context) ([]Nudge, error)
	GuardrailSnapshot func(ctx context.Context) ([]GuardrailOverride, error)
}

type refillFunc func(ctx context.Context, cursor *string) ([]Entry, *string, error)

// sourceState is the request-scoped merge state of one source. It is owned
// by a single FetchTimeline invocation and mutated only by refill and
// consume.
type sourceState struct {
	kind     Kind
	entries  []Entry
	consumed int

	// seedCursor is the token that produced the current buffer; nextCursor
	// is the source's continuation after it (nil = exhausted upstream).
	seedCursor *string
	nextCursor *string

	// lastConsumedCursor is the fine-grained (timestamp, id) token of the
	// most recently consumed entry, independent of the source's own
	// pagination cursor.
	lastConsumedCursor string

	// refillable distinguishes cursor-paginated sources from the
	// single-shot, fetched-in-full ones; the merge loop never refills the
	// latter.
	refillable bool
	refill     refillFunc
}

func (s *sourceState) hasBuffered() bool {
	return s.consumed < len(s.entries)
}

func (s *sourceState) peek() Entry {
	return s.entries[s.consumed]
}

func (s *sourceState) consume() Entry {
	e := s.entries[s.consumed]
	s.consumed++
	s.lastConsumedCursor = EncodeEntryCursor(e.OccurredAt, e.ID)
	return e
}

func (s *sourceState) doRefill(ctx context.Context) error {
	entries, next, err := s.refill(ctx, s.nextCursor)
	if err != nil {
		return err
	}
	s.seedCursor = s.nextCursor
	s.entries = entries
	s.consumed = 0
	s.nextCursor = next
	return nil
}

// continuation is this source's contribution to the emitted cursor: the
// fine-grained token when the buffer was partially consumed, the seed token
// when nothing was consumed, and the source's own continuation once the
// buffer is drained. An exhausted source holds position after its last
// consumed entry instead of emitting nil, since a nil token would restart
// it from the top on the next page. This is what keeps sequential pages
// gap-free and duplicate-free.
func (s *sourceState) continuation() *string {
	if s.hasBuffered() {
		if s.consumed > 0 {
			token := s.lastConsumedCursor
			return &token
		}
		return s.seedCursor
	}
	if s.nextCursor != nil {
		return s.nextCursor
	}
	if s.consumed > 0 {
		token := s.lastConsumedCursor
		return &token
	}
	return s.seedCursor
}

func (s *sourceState) exhausted() bool {
	return !s.hasBuffered() && s.nextCursor == nil
}

// sortEntriesDesc orders a full-snapshot buffer by derived timestamp
// descending, id descending as tie-break, matching the keyset order of the
// paginated sources.
func sortEntriesDesc(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].OccurredAt.Equal(entries[j].OccurredAt) {
			return entries[i].OccurredAt.After(entries[j].OccurredAt)
		}
		return entries[i].ID > entries[j].ID
	})
}

// dropThroughCursor removes the prefix of a descending full-snapshot buffer
// that a previous page already consumed: everything at or newer than the
// fine-grained cursor position. Single-shot fetchers accept no cursor, so
// resumption happens here. An unparseable token is ignored.
func dropThroughCursor(entries []Entry, token *string) []Entry {
	if token == nil {
		return entries
	}
	ts, id, err := ParseEntryCursor(*token)
	if err != nil {
		return entries
	}
	out := entries[:0]
	for _, e := range entries {
		if e.OccurredAt.Before(ts) || (e.OccurredAt.Equal(ts) && e.ID < id) {
			out = append(out, e)
		}
	}
	return out
}
