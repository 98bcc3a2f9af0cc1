package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/nats-io/nuid"
	"go.uber.org/zap"

	"github.com/loyaltykit/admin/internal/contracts"
	"github.com/loyaltykit/admin/internal/platform/env"
	"github.com/loyaltykit/admin/internal/platform/logging"
	"github.com/loyaltykit/admin/internal/platform/natsutil"
	"github.com/loyaltykit/admin/internal/sharding"
)

var ledgerTypes = []string{"earn", "burn", "adjustment", "expiry"}
var redemptionStatuses = []string{"pending", "approved", "fulfilled", "rejected"}
var referralStatuses = []string{"pending", "completed", "expired"}
var nudgeStatuses = []string{"issued", "acknowledged", "dismissed"}
var guardrailScopes = []string{"member", "campaign", "program"}

// seed-events publishes synthetic loyalty events so a local stack has
// something to show on the timeline.
func main() {
	logger, err := logging.New(env.String("LOG_LEVEL", "info"))
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	natsURL := env.String("NATS_URL", env.DefaultNATSURL)
	eventCount := env.Int("SEED_EVENTS", 500)
	memberCount := env.Int("SEED_MEMBERS", 25)
	span := env.Duration("SEED_TIME_SPAN", 30*24*time.Hour)

	client, err := natsutil.ConnectJetStreamWithRetry(natsURL, 20*time.Second)
	if err != nil {
		logger.Fatal("jetstream connect failed", zap.Error(err))
	}
	defer client.Close()
	publisher := natsutil.JetStreamPublisher{JS: client.JS}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	now := time.Now().UTC()
	published := 0

	for i := 0; i < eventCount; i++ {
		memberID := fmt.Sprintf("member-%d", rng.Intn(memberCount)+1)
		occurredAt := now.Add(-time.Duration(rng.Int63n(int64(span))))
		event := randomEvent(rng, memberID, occurredAt)
		event.ShardID = sharding.GetShardID(memberID)

		payload, err := json.Marshal(event)
		if err != nil {
			logger.Fatal("marshal event failed", zap.Error(err))
		}
		subject := sharding.GetSubject("member", memberID)
		if err := publisher.Publish(subject, payload); err != nil {
			logger.Fatal("publish failed", zap.Error(err), zap.String("subject", subject))
		}
		published++
	}

	logger.Info("seeding complete", zap.Int("events", published), zap.Int("members", memberCount))
}

func randomEvent(rng *rand.Rand, memberID string, occurredAt time.Time) contracts.LoyaltyEvent {
	event := contracts.LoyaltyEvent{
		EventID:    nuid.Next(),
		MemberID:   memberID,
		OccurredAt: occurredAt,
	}

	switch rng.Intn(10) {
	case 0, 1, 2, 3: // ledger entries dominate real feeds
		event.EventType = contracts.EventLedgerRecorded
		event.LedgerType = pick(rng, ledgerTypes)
		event.LedgerMetadata = map[string]string{"channel": pick(rng, []string{"web", "pos", "app"})}
		if rng.Intn(3) == 0 {
			event.CheckoutOrderID = fmt.Sprintf("order-%06d", rng.Intn(1000000))
		}
		if rng.Intn(5) == 0 {
			event.LedgerMetadata["referral_code"] = fmt.Sprintf("REF-%04d", rng.Intn(10000))
		}
	case 4, 5:
		event.EventType = contracts.EventRedemptionRequested
		event.RedemptionID = nuid.Next()
		event.RedemptionStatus = pick(rng, redemptionStatuses)
	case 6:
		event.EventType = contracts.EventReferralConverted
		event.ReferralID = nuid.Next()
		event.ReferralCode = fmt.Sprintf("REF-%04d", rng.Intn(10000))
		event.ReferralStatus = pick(rng, referralStatuses)
		if event.ReferralStatus == "completed" {
			done := occurredAt.Add(time.Duration(rng.Intn(72)) * time.Hour)
			event.ReferralCompletedAt = &done
		}
	case 7, 8:
		event.EventType = contracts.EventNudgeIssued
		event.NudgeID = nuid.Next()
		event.NudgeStatus = pick(rng, nudgeStatuses)
		event.NudgeCampaignSlug = pick(rng, []string{"winback-q3", "double-points", "birthday-boost"})
		event.NudgeLastTriggeredAt = &occurredAt
	default:
		event.EventType = contracts.EventGuardrailOverridden
		event.OverrideID = nuid.Next()
		event.OverrideScope = pick(rng, guardrailScopes)
	}
	return event
}

func pick(rng *rand.Rand, values []string) string {
	return values[rng.Intn(len(values))]
}
