package store

import (
	"context"
	"errors"

	"github.com/prn-tf/aipm-identity/internal/repository/recordstore"
)

// secretHasher names the password hasher secret in the secrets collection.
const secretHasher = "password_hasher"

type secretRecord struct {
	Value string `json:"value"`
}

// SharedSecret returns the hasher secret stored in the backend. When none is
// stored yet, candidate is saved and returned. Every instance sharing the
// backend therefore hashes with the same secret.
func (s *Store) SharedSecret(ctx context.Context, candidate string) (string, error) {
	if candidate == "" {
		return "", errors.New("shared secret: empty candidate")
	}

	secrets := recordstore.NewCollection[secretRecord](s.backend, recordstore.CollectionSecrets, nil, s.logger)

	var secret string
	err := s.withLock(ctx, recordstore.CollectionSecrets, func() error {
		records, err := secrets.LoadForUpdate(ctx)
		if err != nil {
			return err
		}
		if rec, ok := records[secretHasher]; ok && rec.Value != "" {
			secret = rec.Value
			return nil
		}

		records[secretHasher] = &secretRecord{Value: candidate}
		if err := secrets.Save(ctx, records); err != nil {
			return err
		}
		s.logger.Info().Msg("stored password hasher secret in record store")
		secret = candidate
		return nil
	})
	if err != nil {
		return "", err
	}
	return secret, nil
}
