// Package state persists sync state across restarts: the watcher's baseline
// fingerprint and one fingerprint per target, so a restart neither re-pushes
// unchanged content nor re-syncs targets that already hold it.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketTargets = []byte("targets")
	bucketWatch   = []byte("watch")

	keyBaseline = []byte("baseline")
)

// Store is a bbolt-backed fingerprint store. Safe for concurrent use within
// one process; bbolt's own file lock keeps a second process out of the file.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) the state database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketTargets, bucketWatch} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init state db: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Baseline returns the last fingerprint the watcher acted on, or "" when no
// run has recorded one yet.
func (s *Store) Baseline() (string, error) {
	var baseline string
	err := s.db.View(func(tx *bolt.Tx) error {
		baseline = string(tx.Bucket(bucketWatch).Get(keyBaseline))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("read baseline: %w", err)
	}
	return baseline, nil
}

// SetBaseline records the fingerprint the watcher should treat as
// already-known on its next start.
func (s *Store) SetBaseline(fingerprint string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWatch).Put(keyBaseline, []byte(fingerprint))
	})
	if err != nil {
		return fmt.Errorf("write baseline: %w", err)
	}
	return nil
}

// TargetFingerprint returns the fingerprint last pushed successfully to
// target, or "" when the target has never been synced.
func (s *Store) TargetFingerprint(target string) (string, error) {
	var fingerprint string
	err := s.db.View(func(tx *bolt.Tx) error {
		fingerprint = string(tx.Bucket(bucketTargets).Get([]byte(target)))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("read target fingerprint: %w", err)
	}
	return fingerprint, nil
}

// SetTargetFingerprint records a successful push of fingerprint to target.
func (s *Store) SetTargetFingerprint(target, fingerprint string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTargets).Put([]byte(target), []byte(fingerprint))
	})
	if err != nil {
		return fmt.Errorf("write target fingerprint: %w", err)
	}
	return nil
}

// Targets returns every recorded target fingerprint.
func (s *Store) Targets() (map[string]string, error) {
	targets := make(map[string]string)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTargets).ForEach(func(k, v []byte) error {
			targets[string(k)] = string(v)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	return targets, nil
}

// DeleteTarget forgets a target, forcing a push on its next sync.
func (s *Store) DeleteTarget(target string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTargets).Delete([]byte(target))
	})
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	return nil
}
