package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/loyaltykit/admin/internal/contracts"
)

type fakeRepository struct {
	applied []contracts.LoyaltyEvent
	seqs    []uint64
	err     error
}

func (f *fakeRepository) ApplyEvent(_ context.Context, event contracts.LoyaltyEvent, eventSeq uint64) error {
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, event)
	f.seqs = append(f.seqs, eventSeq)
	return nil
}

func validEvent() contracts.LoyaltyEvent {
	return contracts.LoyaltyEvent{
		EventID:    "evt-1",
		EventType:  contracts.EventLedgerRecorded,
		MemberID:   "member-1",
		OccurredAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		LedgerType: "earn",
	}
}

func TestHandleAppliesEvent(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewService(repo)

	payload, err := json.Marshal(validEvent())
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}

	if err := svc.Handle(context.Background(), payload, 42); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if len(repo.applied) != 1 {
		t.Fatalf("expected 1 applied event, got %d", len(repo.applied))
	}
	if repo.applied[0].EventID != "evt-1" {
		t.Errorf("applied event id = %q, want %q", repo.applied[0].EventID, "evt-1")
	}
	if repo.seqs[0] != 42 {
		t.Errorf("applied seq = %d, want 42", repo.seqs[0])
	}
}

func TestHandleRejectsMalformedJSON(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewService(repo)

	err := svc.Handle(context.Background(), []byte("{not json"), 1)
	if !errors.Is(err, ErrInvalidEventPayload) {
		t.Fatalf("expected ErrInvalidEventPayload, got %v", err)
	}
	if len(repo.applied) != 0 {
		t.Errorf("malformed payload must not reach the repository")
	}
}

func TestHandleRejectsIncompleteEnvelope(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewService(repo)

	missingID := validEvent()
	missingID.EventID = ""
	missingTime := validEvent()
	missingTime.OccurredAt = time.Time{}

	for name, event := range map[string]contracts.LoyaltyEvent{
		"missing event id":    missingID,
		"missing occurred at": missingTime,
	} {
		payload, err := json.Marshal(event)
		if err != nil {
			t.Fatalf("%s: marshal event: %v", name, err)
		}
		if err := svc.Handle(context.Background(), payload, 1); !errors.Is(err, ErrInvalidEventPayload) {
			t.Errorf("%s: expected ErrInvalidEventPayload, got %v", name, err)
		}
	}
}

func TestHandlePropagatesRepositoryError(t *testing.T) {
	repo := &fakeRepository{err: errors.New("tx deadlock")}
	svc := NewService(repo)

	payload, err := json.Marshal(validEvent())
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	if err := svc.Handle(context.Background(), payload, 1); err == nil {
		t.Fatal("expected repository error to propagate")
	}
}

func TestHandlePassesUnknownTypeThrough(t *testing.T) {
	// Envelope validation does not gate on event type; routing and rejection
	// of unknown types belong to the repository.
	repo := &fakeRepository{}
	svc := NewService(repo)

	event := validEvent()
	event.EventType = "ledger.someday-new"
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	if err := svc.Handle(context.Background(), payload, 1); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if len(repo.applied) != 1 {
		t.Fatalf("expected unknown type to reach the repository, got %d applied", len(repo.applied))
	}
}
