package ingest

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/loyaltykit/admin/internal/contracts"
)

var ErrInvalidEventPayload = errors.New("invalid event payload")
var ErrUnsupportedEventType = errors.New("unsupported event type")

type Repository interface {
	ApplyEvent(ctx context.Context, event contracts.LoyaltyEvent, eventSeq uint64) error
}

// Service projects loyalty domain events into the timeline source tables.
type Service struct {
	Repository Repository
}

func NewService(repository Repository) *Service {
	return &Service{Repository: repository}
}

func (s *Service) Handle(ctx context.Context, payload []byte, eventSeq uint64) error {
	var event contracts.LoyaltyEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return ErrInvalidEventPayload
	}
	if event.EventID == "" || event.OccurredAt.IsZero() {
		return ErrInvalidEventPayload
	}
	return s.Repository.ApplyEvent(ctx, event, eventSeq)
}
