// Package legacy imports unversioned users.json and sessions.json files into
// a record store backend.
package legacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/aipm-identity/internal/domain"
	"github.com/prn-tf/aipm-identity/internal/repository/recordstore"
)

// ErrTargetNotEmpty is returned when the target already holds a collection
// and Options.Force is not set.
var ErrTargetNotEmpty = errors.New("target collection already exists")

// Options controls an import.
type Options struct {
	// Location is assumed for zone-less timestamps. Defaults to UTC.
	Location *time.Location

	// Force overwrites collections already present in the target.
	Force bool

	// SkipExpired drops sessions that expired before Now.
	SkipExpired bool
	Now         time.Time
}

// Result summarizes an import.
type Result struct {
	Users    int
	Sessions int
	Skipped  int
}

type userRecord struct {
	UserID       string             `json:"user_id"`
	Email        string             `json:"email"`
	Name         string             `json:"name"`
	Role         string             `json:"role"`
	PasswordHash string             `json:"password_hash"`
	IsActive     *bool              `json:"is_active"`
	Preferences  domain.Preferences `json:"preferences"`
	CreatedAt    string             `json:"created_at"`
	LastLogin    string             `json:"last_login"`
}

type sessionRecord struct {
	SessionID  string `json:"session_id"`
	UserID     string `json:"user_id"`
	CreatedAt  string `json:"created_at"`
	ExpiresAt  string `json:"expires_at"`
	LastActive string `json:"last_active"`
	IPAddress  string `json:"ip_address"`
	UserAgent  string `json:"user_agent"`
	IsActive   *bool  `json:"is_active"`
}

// Import reads <dir>/users.json and <dir>/sessions.json and saves them to
// target. Missing files are skipped.
func Import(ctx context.Context, dir string, target recordstore.Backend, opts Options, logger zerolog.Logger) (*Result, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	logger = logger.With().Str("component", "legacy-import").Str("dir", dir).Logger()

	result := &Result{}

	users, err := ReadUsers(filepath.Join(dir, recordstore.CollectionUsers+".json"), opts.Location)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if users != nil {
		if err := save(ctx, target, recordstore.CollectionUsers, users, opts.Force, logger); err != nil {
			return nil, err
		}
		result.Users = len(users)
	}

	sessions, err := ReadSessions(filepath.Join(dir, recordstore.CollectionSessions+".json"), opts.Location)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if sessions != nil {
		if opts.SkipExpired {
			for token, s := range sessions {
				if !s.IsUsable(opts.Now) {
					delete(sessions, token)
					result.Skipped++
				}
			}
		}
		if err := save(ctx, target, recordstore.CollectionSessions, sessions, opts.Force, logger); err != nil {
			return nil, err
		}
		result.Sessions = len(sessions)
	}

	logger.Info().
		Int("users", result.Users).
		Int("sessions", result.Sessions).
		Int("skipped", result.Skipped).
		Msg("legacy records imported")

	return result, nil
}

func save[T any](ctx context.Context, target recordstore.Backend, collection string, records map[string]*T, force bool, logger zerolog.Logger) error {
	if !force {
		_, err := target.Read(ctx, collection)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s", ErrTargetNotEmpty, collection)
		case !errors.Is(err, recordstore.ErrCollectionNotFound):
			return fmt.Errorf("inspect target %s: %w", collection, err)
		}
	}
	return recordstore.NewCollection[T](target, collection, nil, logger).Save(ctx, records)
}

// ReadUsers decodes a users file. Versioned documents are accepted too.
func ReadUsers(path string, loc *time.Location) (map[string]*domain.User, error) {
	raw, err := readRecords(path)
	if err != nil {
		return nil, err
	}

	users := make(map[string]*domain.User, len(raw))
	for key, data := range raw {
		var rec userRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("user %s: %w", key, err)
		}
		user, err := rec.toDomain(key, loc)
		if err != nil {
			return nil, fmt.Errorf("user %s: %w", key, err)
		}
		users[user.ID] = user
	}
	return users, nil
}

// ReadSessions decodes a sessions file. Versioned documents are accepted too.
func ReadSessions(path string, loc *time.Location) (map[string]*domain.Session, error) {
	raw, err := readRecords(path)
	if err != nil {
		return nil, err
	}

	sessions := make(map[string]*domain.Session, len(raw))
	for key, data := range raw {
		var rec sessionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("session %s: %w", key, err)
		}
		session, err := rec.toDomain(key, loc)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", key, err)
		}
		sessions[session.Token] = session
	}
	return sessions, nil
}

// readRecords returns the raw records of a bare or versioned document,
// without null entries.
func readRecords(path string) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		SchemaVersion *int                       `json:"schema_version"`
		Records       map[string]json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.SchemaVersion != nil {
		return dropNull(envelope.Records), nil
	}

	var bare map[string]json.RawMessage
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return dropNull(bare), nil
}

func dropNull(records map[string]json.RawMessage) map[string]json.RawMessage {
	for key, data := range records {
		if string(data) == "null" {
			delete(records, key)
		}
	}
	return records
}

func (r userRecord) toDomain(key string, loc *time.Location) (*domain.User, error) {
	id := r.UserID
	if id == "" {
		id = key
	}
	var createdAt time.Time
	if created, err := parseOptional(r.CreatedAt, loc); err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	} else if created != nil {
		createdAt = *created
	}
	lastLogin, err := parseOptional(r.LastLogin, loc)
	if err != nil {
		return nil, fmt.Errorf("last_login: %w", err)
	}

	prefs := r.Preferences
	if prefs == nil {
		prefs = domain.Preferences{}
	}

	return &domain.User{
		ID:           id,
		Email:        domain.NormalizeEmail(r.Email),
		Name:         r.Name,
		Role:         domain.Role(r.Role),
		PasswordHash: r.PasswordHash,
		IsActive:     r.IsActive == nil || *r.IsActive,
		Preferences:  prefs,
		CreatedAt:    createdAt,
		LastLogin:    lastLogin,
	}, nil
}

func (r sessionRecord) toDomain(key string, loc *time.Location) (*domain.Session, error) {
	token := r.SessionID
	if token == "" {
		token = key
	}
	createdAt, err := ParseTimestamp(r.CreatedAt, loc)
	if err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	expiresAt, err := ParseTimestamp(r.ExpiresAt, loc)
	if err != nil {
		return nil, fmt.Errorf("expires_at: %w", err)
	}
	lastActive := createdAt
	if r.LastActive != "" {
		if lastActive, err = ParseTimestamp(r.LastActive, loc); err != nil {
			return nil, fmt.Errorf("last_active: %w", err)
		}
	}

	return &domain.Session{
		Token:         token,
		UserID:        r.UserID,
		CreatedAt:     createdAt,
		ExpiresAt:     expiresAt,
		LastActive:    lastActive,
		SourceAddress: r.IPAddress,
		ClientAgent:   r.UserAgent,
		IsActive:      r.IsActive == nil || *r.IsActive,
	}, nil
}
