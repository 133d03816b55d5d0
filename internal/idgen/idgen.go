// Package idgen implements ID generation and parsing for braid issue IDs.
//
// braid IDs have a prefix-hash format: "br-a3f8". The hash portion is
// derived from the issue's defining content, so two processes creating the
// same issue independently arrive at the same ID without coordination.
// Hierarchical child IDs use dot notation: "br-a3f8.1", "br-a3f8.1.2".
package idgen

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// MinWidth is the starting number of hex characters in a generated ID.
	MinWidth = 4
	// MaxWidth is the widest hash an ID escalates to on collision.
	MaxWidth = 6
)

// Content holds the defining fields an issue ID is derived from.
// Fields that do not change an issue's identity (status, priority,
// timestamps) are deliberately excluded so that re-submitting the same
// issue reproduces the same ID.
type Content struct {
	Title       string
	Description string
	Type        string
	Actor       string
}

func (c Content) canonical() string {
	return strings.Join([]string{
		strings.TrimSpace(c.Title),
		strings.TrimSpace(c.Description),
		strings.TrimSpace(c.Type),
		strings.TrimSpace(c.Actor),
	}, "\x00")
}

// HashID generates a deterministic ID from the given content at the given
// hex width. The full SHA-256 of the canonicalized content is computed and
// the first `width` hex characters are kept, so widening on collision is a
// prefix extension of the same digest rather than a rehash.
func HashID(prefix string, c Content, width int) string {
	if width < MinWidth {
		width = MinWidth
	}
	if width > MaxWidth {
		width = MaxWidth
	}
	sum := sha256.Sum256([]byte(c.canonical()))
	return prefix + hex.EncodeToString(sum[:])[:width]
}

// ErrIDSpaceExhausted is returned when every hash width collides with an
// existing, differently-contented issue.
var ErrIDSpaceExhausted = fmt.Errorf("id space exhausted at maximum hash width")

// GenerateID derives an ID for the given content, widening the hash from
// MinWidth to MaxWidth while the candidate collides according to taken.
// taken should report true only for IDs held by issues with different
// content; a caller that treats identical content as the same issue keeps
// GenerateID idempotent.
func GenerateID(prefix string, c Content, taken func(id string) bool) (string, error) {
	for width := MinWidth; width <= MaxWidth; width++ {
		id := HashID(prefix, c, width)
		if taken == nil || !taken(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("idgen: %q: %w", c.Title, ErrIDSpaceExhausted)
}

// BuildPrefix normalises a base prefix so the result always ends with
// exactly one dash and never contains double-dashes.
//
//	BuildPrefix("br")  → "br-"
//	BuildPrefix("br-") → "br-"
//	BuildPrefix("")    → ""
func BuildPrefix(base string) string {
	base = strings.TrimRight(base, "-")
	if base == "" {
		return ""
	}
	return base + "-"
}
