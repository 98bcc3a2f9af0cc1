package timeline

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/loyaltykit/admin/internal/platform/metrics"
)

var timelineRequestsTotal = metrics.NewCounterVec(metrics.NewOpts(
	"timeline_requests_total",
	"Timeline page requests by outcome.",
), []string{"outcome"})

func init() {
	metrics.Default.MustRegister(timelineRequestsTotal)
}

// Handler exposes the timeline merger over HTTP for the admin dashboard.
type Handler struct {
	Service       *Service
	Logger        *zap.Logger
	AllowedOrigin string
}

func NewHandler(service *Service, logger *zap.Logger, allowedOrigin string) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Service: service, Logger: logger, AllowedOrigin: allowedOrigin}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(h.corsMiddleware)
	r.Options("/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/api/v1/loyalty/timeline", h.handleTimeline)

	return r
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	opts := optionsFromQuery(r)

	page, err := h.Service.FetchTimeline(r.Context(), opts)
	if err != nil {
		// One broken source fails the entire timeline request.
		timelineRequestsTotal.WithLabelValues("error").Inc()
		h.Logger.Error("timeline merge failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "timeline is unavailable")
		return
	}

	timelineRequestsTotal.WithLabelValues("ok").Inc()
	h.writeJSON(w, http.StatusOK, page)
}

// optionsFromQuery maps query parameters onto merge options. Nothing here is
// validated hard: unknown sources or statuses simply never match, and a bad
// limit falls back to the default.
func optionsFromQuery(r *http.Request) Options {
	q := r.URL.Query()

	limit := 0
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	filters := &Filters{
		LedgerTypes:        csvParam(q.Get("ledger_types")),
		RedemptionStatuses: csvParam(q.Get("redemption_statuses")),
		ReferralStatuses:   csvParam(q.Get("referral_statuses")),
		NudgeStatuses:      csvParam(q.Get("nudge_statuses")),
		GuardrailScopes:    csvParam(q.Get("guardrail_scopes")),
		ReferralCode:       q.Get("referral_code"),
		CampaignSlug:       q.Get("campaign_slug"),
		CheckoutOrderID:    q.Get("checkout_order_id"),
	}

	// sources=ledger,nudges narrows the feed to the listed kinds.
	if raw := strings.TrimSpace(q.Get("sources")); raw != "" {
		enabled := map[string]bool{}
		for _, s := range csvParam(raw) {
			enabled[strings.ToLower(s)] = true
		}
		filters.IncludeLedger = boolPtr(enabled[string(KindLedger)])
		filters.IncludeRedemptions = boolPtr(enabled["redemptions"] || enabled[string(KindRedemption)])
		filters.IncludeReferrals = boolPtr(enabled["referrals"] || enabled[string(KindReferral)])
		filters.IncludeNudges = boolPtr(enabled["nudges"] || enabled[string(KindNudge)])
		filters.IncludeGuardrails = boolPtr(enabled["guardrails"] || enabled[string(KindGuardrail)])
	}

	return Options{
		Limit:       limit,
		Filters:     filters,
		CursorToken: strings.TrimSpace(q.Get("cursor")),
	}
}

func csvParam(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func boolPtr(b bool) *bool {
	return &b
}

func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin, Access-Control-Request-Headers")
		w.Header().Set("Access-Control-Allow-Origin", h.allowedOriginForRequest())
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		requestHeaders := strings.TrimSpace(r.Header.Get("Access-Control-Request-Headers"))
		if requestHeaders != "" {
			w.Header().Set("Access-Control-Allow-Headers", requestHeaders)
		} else {
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) allowedOriginForRequest() string {
	allowed := strings.TrimSpace(h.AllowedOrigin)
	if allowed == "" {
		return "*"
	}
	return allowed
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
