package timeline

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor bundles the continuation state of all five sources. It is encoded
// into an opaque token held by the client between requests; there is no
// server-side persistence. A nil field means the source has nothing left to
// resume (or was excluded by filters).
type Cursor struct {
	Ledger      *string `json:"ledger"`
	Redemptions *string `json:"redemptions"`
	Referrals   *string `json:"referrals"`
	Nudges      *string `json:"nudges"`
	Guardrails  *string `json:"guardrails"`
}

// EncodeCursor serializes a cursor to its transportable token: URL-safe
// base64 over the JSON form. A nil cursor encodes to nil, never a
// placeholder token.
func EncodeCursor(c *Cursor) *string {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	return &token
}

// DecodeCursor reverses EncodeCursor. A malformed or tampered token yields
// ErrInvalidCursor; callers degrade to "start from the beginning" rather
// than failing the request.
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return &c, nil
}

// EncodeEntryCursor builds the fine-grained per-entry token
// base64url("<timestamp>|<id>"). It doubles as the keyset token format of
// the Postgres-backed fetchers, but the merger treats per-source pagination
// tokens as opaque; only single-shot sources are resumed with it directly.
func EncodeEntryCursor(ts time.Time, id string) string {
	raw := ts.UTC().Format(time.RFC3339Nano) + "|" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseEntryCursor reverses EncodeEntryCursor.
func ParseEntryCursor(token string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 || parts[0] == "" {
		return time.Time{}, "", ErrInvalidCursor
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return ts, parts[1], nil
}
