package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/prn-tf/aipm-identity/internal/pkg/crypto"
)

// recordKeys are the auth settings persisted in the stored config record.
var recordKeys = []string{
	"session_timeout_hours",
	"max_sessions_per_user",
	"enforce_max_sessions",
	"require_strong_passwords",
	"allow_registration",
	"default_role",
	"enable_guest_mode",
	"secret_key",
}

// LoadAuthRecord overlays the stored auth config record at path onto base.
//
// Keys missing from the record keep the values of base. When the record does
// not exist it is created from base; a missing secret is generated and written
// back so that password digests stay verifiable across restarts.
//
// An unreadable or invalid record is reported as an error together with a
// usable configuration derived from base alone.
func LoadAuthRecord(path string, base AuthConfig) (AuthConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.SetDefault("session_timeout_hours", base.SessionTimeoutHours)
	v.SetDefault("max_sessions_per_user", base.MaxSessionsPerUser)
	v.SetDefault("enforce_max_sessions", base.EnforceMaxSessions)
	v.SetDefault("require_strong_passwords", base.RequireStrongPasswords)
	v.SetDefault("allow_registration", base.AllowRegistration)
	v.SetDefault("default_role", base.DefaultRole)
	v.SetDefault("enable_guest_mode", base.EnableGuestMode)
	v.SetDefault("secret_key", base.SecretKey)

	exists := true
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return ensureSecret(base), fmt.Errorf("stat auth config record: %w", err)
		}
		exists = false
	}

	if exists {
		if err := v.ReadInConfig(); err != nil {
			return ensureSecret(base), fmt.Errorf("read auth config record: %w", err)
		}
	}

	dirty := !exists
	if v.GetString("secret_key") == "" {
		secret, err := crypto.GenerateSecretKey()
		if err != nil {
			return base, err
		}
		v.Set("secret_key", secret)
		dirty = true
	}

	if dirty {
		if err := writeRecord(v, path); err != nil {
			return merge(v, base), fmt.Errorf("write auth config record: %w", err)
		}
	}

	cfg := merge(v, base)
	if err := cfg.Validate(); err != nil {
		return ensureSecret(base), fmt.Errorf("invalid auth config record: %w", err)
	}
	return cfg, nil
}

// merge copies the record keys held by v over base.
func merge(v *viper.Viper, base AuthConfig) AuthConfig {
	cfg := base
	cfg.SessionTimeoutHours = v.GetInt("session_timeout_hours")
	cfg.MaxSessionsPerUser = v.GetInt("max_sessions_per_user")
	cfg.EnforceMaxSessions = v.GetBool("enforce_max_sessions")
	cfg.RequireStrongPasswords = v.GetBool("require_strong_passwords")
	cfg.AllowRegistration = v.GetBool("allow_registration")
	cfg.DefaultRole = v.GetString("default_role")
	cfg.EnableGuestMode = v.GetBool("enable_guest_mode")
	cfg.SecretKey = v.GetString("secret_key")
	return cfg
}

// writeRecord persists exactly the record keys.
func writeRecord(v *viper.Viper, path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}

	out := viper.New()
	out.SetConfigType("json")
	for _, key := range recordKeys {
		out.Set(key, v.Get(key))
	}
	return out.WriteConfigAs(path)
}

// ensureSecret fills an in-memory secret so the service can still start.
// Digests created under it will not survive a restart.
func ensureSecret(cfg AuthConfig) AuthConfig {
	if cfg.SecretKey == "" {
		if secret, err := crypto.GenerateSecretKey(); err == nil {
			cfg.SecretKey = secret
		}
	}
	return cfg
}
