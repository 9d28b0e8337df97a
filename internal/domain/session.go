package domain

import (
	"strings"
	"time"
)

// GuestIDPrefix marks synthetic identities issued to guest sessions.
// Guest identities are never stored as users.
const GuestIDPrefix = "guest_"

// Guest profile values returned with guest sessions.
const (
	GuestEmail = "guest@aipmtoolkit.local"
	GuestName  = "Guest User"
)

// Session represents one authenticated or anonymous connection.
type Session struct {
	// Token is the unguessable session identifier handed to the client.
	Token string `json:"session_id"`

	// UserID owns the session. Guest sessions carry a GuestIDPrefix identifier.
	UserID string `json:"user_id"`

	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	LastActive time.Time `json:"last_active"`

	// SourceAddress is the client network address at creation time.
	SourceAddress string `json:"ip_address"`

	// ClientAgent is the client's user agent string.
	ClientAgent string `json:"user_agent"`

	IsActive bool `json:"is_active"`
}

// NewSession creates an active session that expires ttl after now.
func NewSession(token, userID string, now time.Time, ttl time.Duration, sourceAddress, clientAgent string) *Session {
	return &Session{
		Token:         token,
		UserID:        userID,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
		LastActive:    now,
		SourceAddress: sourceAddress,
		ClientAgent:   clientAgent,
		IsActive:      true,
	}
}

// IsExpired reports whether the session has expired at now.
// A session is expired from its expiry instant onwards.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsUsable reports whether the session is active and unexpired at now.
// Whether the owning user is still active is checked by the caller.
func (s *Session) IsUsable(now time.Time) bool {
	return s.IsActive && !s.IsExpired(now)
}

// IsGuest reports whether the session belongs to a guest identity.
func (s *Session) IsGuest() bool {
	return IsGuestID(s.UserID)
}

// IsGuestID reports whether id is a synthetic guest identity.
func IsGuestID(id string) bool {
	return strings.HasPrefix(id, GuestIDPrefix)
}

// GuestUser returns the public profile of a guest identity.
func GuestUser(id string) PublicUser {
	return PublicUser{
		ID:    id,
		Email: GuestEmail,
		Name:  GuestName,
		Role:  RoleViewer,
		Preferences: Preferences{
			PrefTheme:             "light",
			PrefDefaultExperience: "just_do_it",
		},
	}
}

// SessionInfo is the session metadata returned to callers.
type SessionInfo struct {
	Token         string    `json:"session_id"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	LastActive    time.Time `json:"last_active"`
	SourceAddress string    `json:"ip_address,omitempty"`
	ClientAgent   string    `json:"user_agent,omitempty"`
	IsGuest       bool      `json:"is_guest,omitempty"`
}

// Info returns the caller-facing metadata of the session.
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		Token:         s.Token,
		CreatedAt:     s.CreatedAt,
		ExpiresAt:     s.ExpiresAt,
		LastActive:    s.LastActive,
		SourceAddress: s.SourceAddress,
		ClientAgent:   s.ClientAgent,
		IsGuest:       s.IsGuest(),
	}
}
