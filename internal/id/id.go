// Package id generates identifiers for workspace records.
package id

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for nanoid-based identifiers.
const (
	PrefixCollection = "coll"
	PrefixWorkspace  = "ws"
	PrefixClient     = "sse"
)

// Generate creates a prefixed unique ID using NanoID
// Format: prefix-nanoid (e.g., "coll-V1StGXR8_Z5jdHi6B-myT").
//
// Returns an error if the system has insufficient entropy for secure random generation.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// NewEntityID returns a random UUID string. Entity rows are keyed by UUID
// so they stay compatible with rows imported from the hosted Postgres store.
func NewEntityID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return u.String(), nil
}

// IsUUID reports whether s parses as a UUID.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// NamedEntityID returns a UUID derived from scope and name, so seeding the
// same record twice produces the same id.
func NamedEntityID(scope, name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(scope+"/"+name)).String()
}
