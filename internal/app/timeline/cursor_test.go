package timeline

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func TestCursorRoundTrip(t *testing.T) {
	in := &Cursor{
		Ledger:    strPtr("ledger-token"),
		Referrals: strPtr("referral-token"),
		// Redemptions, Nudges and Guardrails intentionally nil.
	}

	token := EncodeCursor(in)
	require.NotNil(t, token)

	out, err := DecodeCursor(*token)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncodeCursorNil(t *testing.T) {
	assert.Nil(t, EncodeCursor(nil))
}

func TestDecodeCursorEmptyToken(t *testing.T) {
	c, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestDecodeCursorGarbage(t *testing.T) {
	cases := map[string]string{
		"not base64":           "%%%not-base64%%%",
		"base64 of non-JSON":   base64.RawURLEncoding.EncodeToString([]byte("hello world")),
		"base64 of JSON array": base64.RawURLEncoding.EncodeToString([]byte(`[1,2,3]`)),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeCursor(token)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidCursor)
		})
	}
}

func TestEntryCursorRoundTrip(t *testing.T) {
	when := time.Date(2026, 8, 1, 12, 30, 45, 123456789, time.UTC)
	token := EncodeEntryCursor(when, "txn-0042")

	ts, id, err := ParseEntryCursor(token)
	require.NoError(t, err)
	assert.True(t, when.Equal(ts))
	assert.Equal(t, "txn-0042", id)
}

func TestEntryCursorIDMayContainSeparator(t *testing.T) {
	when := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	token := EncodeEntryCursor(when, "odd|id|with|pipes")

	_, id, err := ParseEntryCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "odd|id|with|pipes", id)
}

func TestParseEntryCursorGarbage(t *testing.T) {
	cases := map[string]string{
		"not base64":        "***",
		"missing separator": base64.RawURLEncoding.EncodeToString([]byte("2026-08-01T12:00:00Z")),
		"bad timestamp":     base64.RawURLEncoding.EncodeToString([]byte("yesterday|id-1")),
		"empty timestamp":   base64.RawURLEncoding.EncodeToString([]byte("|id-1")),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseEntryCursor(token)
			assert.ErrorIs(t, err, ErrInvalidCursor)
		})
	}
}
