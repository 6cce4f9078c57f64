// Package creds defines the credential file schema and its content fingerprint.
//
// The credential file is a UTF-8 JSON object mapping a provider name to one
// credential entry. Two entry shapes exist: OAuth token pairs that are
// refreshed out-of-band, and static API keys. Everything else about the
// content is opaque to this program; the fingerprint is computed over the raw
// bytes, so whitespace-only edits count as changes.
package creds

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// EntryType discriminates the two credential entry shapes.
type EntryType string

const (
	// EntryTypeOAuth is a refreshable OAuth token pair.
	EntryTypeOAuth EntryType = "oauth"
	// EntryTypeAPIKey is a static API key.
	EntryTypeAPIKey EntryType = "api"
)

// Entry is one provider's credential.
// The Type tag decides which of the remaining fields are meaningful.
type Entry struct {
	Type EntryType `json:"type"`

	// OAuth fields.
	Access  string `json:"access,omitempty"`
	Refresh string `json:"refresh,omitempty"`
	Expires int64  `json:"expires,omitempty"`

	// API key field.
	Key string `json:"key,omitempty"`
}

// Validate checks that the entry is a well-formed instance of its type.
func (e Entry) Validate() error {
	switch e.Type {
	case EntryTypeOAuth:
		if e.Access == "" {
			return fmt.Errorf("oauth entry missing access token")
		}
		if e.Refresh == "" {
			return fmt.Errorf("oauth entry missing refresh token")
		}
		return nil
	case EntryTypeAPIKey:
		if e.Key == "" {
			return fmt.Errorf("api entry missing key")
		}
		return nil
	default:
		return fmt.Errorf("unknown entry type %q", e.Type)
	}
}

// File is the decoded credential file: provider name -> entry.
type File map[string]Entry

// Decode parses and validates raw credential file content.
// A malformed document or an entry that fails validation is a decode error;
// callers must treat the previous content as still current.
func Decode(raw []byte) (File, error) {
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	for provider, entry := range f {
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("decode credentials: provider %q: %w", provider, err)
		}
	}
	return f, nil
}

// Fingerprint returns the SHA-256 hex digest of raw content.
// It is a pure function of the bytes: byte-identical content always yields
// the same fingerprint, and equality is plain string comparison.
func Fingerprint(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
