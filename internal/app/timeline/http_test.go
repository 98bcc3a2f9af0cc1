package timeline

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doTimelineRequest(t *testing.T, h *Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleTimeline(t *testing.T) {
	h := NewHandler(newTestService(mixedSources()), nil, "")

	rec := doTimelineRequest(t, h, "/api/v1/loyalty/timeline?limit=4")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var page Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, []string{"led-1", "red-1", "ref-1", "nud-1"}, entryIDs(page.Entries))
	assert.True(t, page.HasMore)
	require.NotNil(t, page.CursorToken)

	// The emitted token is accepted back verbatim.
	rec = doTimelineRequest(t, h, "/api/v1/loyalty/timeline?limit=4&cursor="+*page.CursorToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var next Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &next))
	assert.Equal(t, []string{"grd-1", "led-2", "red-2", "ref-2"}, entryIDs(next.Entries))
}

func TestHandleTimelineSourcesParam(t *testing.T) {
	h := NewHandler(newTestService(mixedSources()), nil, "")

	rec := doTimelineRequest(t, h, "/api/v1/loyalty/timeline?sources=ledger,guardrail_override")
	require.Equal(t, http.StatusOK, rec.Code)

	var page Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.True(t, page.AppliedFilters.IncludeLedger)
	assert.True(t, page.AppliedFilters.IncludeGuardrails)
	assert.False(t, page.AppliedFilters.IncludeRedemptions)
	assert.False(t, page.AppliedFilters.IncludeReferrals)
	assert.False(t, page.AppliedFilters.IncludeNudges)
	for _, e := range page.Entries {
		assert.Contains(t, []Kind{KindLedger, KindGuardrail}, e.Kind)
	}
}

func TestHandleTimelineFilterParams(t *testing.T) {
	f := mixedSources()
	f.referrals = append(f.referrals, ReferralConversion{
		ID: "ref-vip", Code: "SUMMER-VIP-7", CreatedAt: ts(0), Status: "completed",
	})
	h := NewHandler(newTestService(f), nil, "")

	rec := doTimelineRequest(t, h, "/api/v1/loyalty/timeline?referral_code=vip&limit=50")
	require.Equal(t, http.StatusOK, rec.Code)

	var page Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, []string{"ref-vip"}, entryIDs(page.Entries))
	assert.Equal(t, "vip", page.AppliedFilters.ReferralCode)
}

func TestHandleTimelineBadLimitFallsBack(t *testing.T) {
	h := NewHandler(newTestService(mixedSources()), nil, "")

	rec := doTimelineRequest(t, h, "/api/v1/loyalty/timeline?limit=banana")
	require.Equal(t, http.StatusOK, rec.Code)

	var page Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	// 11 fixture entries, default limit 20: everything comes back.
	assert.Len(t, page.Entries, 11)
}

func TestHandleTimelineUpstreamFailure(t *testing.T) {
	f := mixedSources()
	f.failLedger = errors.New("connection refused")
	h := NewHandler(newTestService(f), nil, "")

	rec := doTimelineRequest(t, h, "/api/v1/loyalty/timeline")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "timeline is unavailable", body["error"])
}

func TestHandleTimelineCORSHeaders(t *testing.T) {
	h := NewHandler(newTestService(mixedSources()), nil, "https://admin.example.com")

	rec := doTimelineRequest(t, h, "/api/v1/loyalty/timeline")
	assert.Equal(t, "https://admin.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/loyalty/timeline", nil)
	rec = httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}
