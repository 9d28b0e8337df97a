// Package domain contains the core entities of the AIPM identity service.
// These are plain Go structs with no external dependencies: accounts,
// sessions and the role hierarchy used by route guards.
package domain

import (
	"strings"
	"time"
)

// Preferences is the open per-user settings mapping.
// Values must be JSON-serializable.
type Preferences map[string]any

// Preference keys seeded on account creation.
const (
	PrefTheme             = "theme"
	PrefDefaultExperience = "default_experience"
	PrefFavoriteTools     = "favorite_tools"
	PrefDashboardLayout   = "dashboard_layout"
)

// DefaultPreferences returns the preferences every new account starts with.
func DefaultPreferences() Preferences {
	return Preferences{
		PrefTheme:             "light",
		PrefDefaultExperience: "learn_and_do",
		PrefFavoriteTools:     []any{},
		PrefDashboardLayout:   "default",
	}
}

// Clone returns a shallow copy of the preferences.
func (p Preferences) Clone() Preferences {
	out := make(Preferences, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// User represents a registered account.
type User struct {
	// ID is the opaque, globally unique identifier (a UUID for new accounts).
	ID string `json:"user_id"`

	// Email is the login key. Uniqueness is case-insensitive.
	Email string `json:"email"`

	// Name is the display name.
	Name string `json:"name"`

	// Role is one of viewer, pm or admin.
	Role Role `json:"role"`

	// PasswordHash is the digest produced by the password hasher.
	// It must never leave the service through PublicUser.
	PasswordHash string `json:"password_hash"`

	// IsActive is false for deactivated accounts, which can neither log in
	// nor keep using existing sessions.
	IsActive bool `json:"is_active"`

	Preferences Preferences `json:"preferences"`

	CreatedAt time.Time `json:"created_at"`

	// LastLogin is nil until the first successful login.
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// NewUser creates an active User with default preferences.
func NewUser(id, email, name string, role Role, passwordHash string, now time.Time) *User {
	return &User{
		ID:           id,
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: passwordHash,
		IsActive:     true,
		Preferences:  DefaultPreferences(),
		CreatedAt:    now,
	}
}

// NormalizeEmail folds an address into its comparison form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HasEmail reports whether the user's address matches email case-insensitively.
func (u *User) HasEmail(email string) bool {
	return NormalizeEmail(u.Email) == NormalizeEmail(email)
}

// CanAuthenticate returns true if the user is allowed to authenticate.
func (u *User) CanAuthenticate() bool {
	return u.IsActive
}

// PublicUser is the view of an account returned to callers.
type PublicUser struct {
	ID          string      `json:"user_id"`
	Email       string      `json:"email"`
	Name        string      `json:"name"`
	Role        Role        `json:"role"`
	Preferences Preferences `json:"preferences"`
}

// Public strips the password digest and bookkeeping fields.
func (u *User) Public() PublicUser {
	prefs := u.Preferences
	if prefs == nil {
		prefs = Preferences{}
	}
	return PublicUser{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Role:        u.Role,
		Preferences: prefs.Clone(),
	}
}

// Default account provisioned on first run when no users exist.
// Local single-user convenience, not a production posture.
const (
	DefaultUserID       = "default_pm"
	DefaultUserEmail    = "pm@aipmtoolkit.local"
	DefaultUserName     = "Product Manager"
	DefaultUserPassword = "aipm2025"
)
