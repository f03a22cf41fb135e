package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType names a domain event emitted by the token engine.
type EventType string

const (
	TypeTokenPairIssued   EventType = "token.pair_issued"
	TypeTokenRefreshed    EventType = "token.refreshed"
	TypeReplayDetected    EventType = "token.replay_detected"
	TypeFamilyRevoked     EventType = "token.family_revoked"
	TypeTokenRevoked      EventType = "token.revoked"
	TypeUserTokensRevoked EventType = "token.user_tokens_revoked"
)

// Event is the abstract domain event the engine emits. Collaborators
// (audit, alerting, analytics) subscribe through a Publisher; the engine
// itself never blocks a security decision on delivery.
type Event struct {
	Type    EventType
	Subject string
	Time    time.Time
	Data    interface{}
}

// Publisher delivers domain events to interested collaborators.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// TokenPairIssuedPayload accompanies TypeTokenPairIssued and
// TypeTokenRefreshed.
type TokenPairIssuedPayload struct {
	UserID         uuid.UUID  `json:"user_id"`
	RefreshTokenID uuid.UUID  `json:"refresh_token_id"`
	TokenFamily    *uuid.UUID `json:"token_family,omitempty"`
}

// ReplayDetectedPayload accompanies TypeReplayDetected.
type ReplayDetectedPayload struct {
	UserID          uuid.UUID `json:"user_id"`
	TokenFamily     uuid.UUID `json:"token_family"`
	OriginalTokenID uuid.UUID `json:"original_token_id"`
	FamilyRevoked   bool      `json:"family_revoked"`
}

// FamilyRevokedPayload accompanies TypeFamilyRevoked.
type FamilyRevokedPayload struct {
	TokenFamily  uuid.UUID `json:"token_family"`
	TokensMarked int64     `json:"tokens_marked"`
}

// TokenRevokedPayload accompanies TypeTokenRevoked.
type TokenRevokedPayload struct {
	TokenID uuid.UUID `json:"token_id"`
	Deleted bool      `json:"deleted"`
}

// UserTokensRevokedPayload accompanies TypeUserTokensRevoked.
type UserTokensRevokedPayload struct {
	UserID       uuid.UUID `json:"user_id"`
	TokensMarked int64     `json:"tokens_marked"`
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
