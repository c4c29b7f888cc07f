// Package idgen mints identifiers for graph objects. Claims are content-addressed;
// everything else gets a short random nanoid behind a kind prefix.
package idgen

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes by object kind.
const (
	ClaimPrefix      = "c-"
	ArgumentPrefix   = "a-"
	EdgePrefix       = "e-"
	QuestionPrefix   = "q-"
	MovePrefix       = "m-"
	ObligationPrefix = "o-"
)

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 12

// claimHashLen is the number of hex digits of the text digest kept in a claim id.
const claimHashLen = 16

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

func Argument() (string, error)   { return GenerateWithPrefix(ArgumentPrefix) }
func Edge() (string, error)       { return GenerateWithPrefix(EdgePrefix) }
func Question() (string, error)   { return GenerateWithPrefix(QuestionPrefix) }
func Move() (string, error)       { return GenerateWithPrefix(MovePrefix) }
func Obligation() (string, error) { return GenerateWithPrefix(ObligationPrefix) }

// NormalizeClaimText folds case and collapses runs of whitespace.
func NormalizeClaimText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// ClaimID returns the content address of a claim. Texts that normalize to the
// same string share an id. The empty string is returned for blank text.
func ClaimID(text string) string {
	norm := NormalizeClaimText(text)
	if norm == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(norm))
	return ClaimPrefix + hex.EncodeToString(sum[:])[:claimHashLen]
}
