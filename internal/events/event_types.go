package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered    EventType = "user_registered"
	EventUserSignedIn      EventType = "user_signed_in"
	EventTokenRefreshed    EventType = "token_refreshed"
	EventSigninRateLimited EventType = "signin_rate_limited"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Username  string      `json:"username"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
}

// UserSignedInPayload payload.
type UserSignedInPayload struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
}

// TokenRefreshedPayload payload.
type TokenRefreshedPayload struct {
	UserID string `json:"user_id"`
}
