// Package auth resolves API keys to caller identities and enforces key
// presence at the HTTP boundary.
package auth

import (
	"encoding/json"
	"fmt"

	"validbus/pkg/domain"
	dErrors "validbus/pkg/domain-errors"
)

// keyEntry is the configuration shape of one registered API key.
type keyEntry struct {
	AppName          string `json:"app_name"`
	CanDeleteRecords bool   `json:"can_delete_records"`
	AccessLevel      string `json:"access_level"`
}

// KeyStore maps API keys to caller identities. Keys are loaded once from
// configuration at startup; the store is read-only afterwards.
type KeyStore struct {
	keys map[string]domain.CallerIdentity
}

// NewKeyStore builds a store from explicit identity pairs.
func NewKeyStore(keys map[string]domain.CallerIdentity) *KeyStore {
	store := &KeyStore{keys: make(map[string]domain.CallerIdentity, len(keys))}
	for key, identity := range keys {
		store.keys[key] = identity
	}
	return store
}

// ParseKeyStore decodes the configured key registry. The JSON shape is a map
// from API key to its grant:
//
//	{"crm-key-1": {"app_name": "CRM", "can_delete_records": true, "access_level": "standard"}}
func ParseKeyStore(raw string) (*KeyStore, error) {
	if raw == "" {
		return NewKeyStore(nil), nil
	}

	var entries map[string]keyEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("parse api key registry: %w", err)
	}

	keys := make(map[string]domain.CallerIdentity, len(entries))
	for key, entry := range entries {
		if entry.AppName == "" {
			return nil, fmt.Errorf("api key registry: key %q has no app_name", redact(key))
		}
		level := domain.AccessLevel(entry.AccessLevel)
		switch level {
		case "":
			level = domain.AccessLevelStandard
		case domain.AccessLevelStandard, domain.AccessLevelGovernance:
		default:
			return nil, fmt.Errorf("api key registry: key %q has unknown access_level %q", redact(key), entry.AccessLevel)
		}
		keys[key] = domain.CallerIdentity{
			AppName:          entry.AppName,
			CanDeleteRecords: entry.CanDeleteRecords,
			AccessLevel:      level,
		}
	}
	return NewKeyStore(keys), nil
}

// Resolve maps an API key to its caller identity.
func (s *KeyStore) Resolve(key string) (domain.CallerIdentity, error) {
	if key == "" {
		return domain.CallerIdentity{}, dErrors.New(dErrors.CodeUnauthorized, "missing API key")
	}
	identity, ok := s.keys[key]
	if !ok {
		return domain.CallerIdentity{}, dErrors.New(dErrors.CodeUnauthorized, "unknown API key")
	}
	return identity, nil
}

// redact keeps enough of a key to identify it in logs without exposing it.
func redact(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + "****"
}
