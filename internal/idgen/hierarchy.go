package idgen

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// DefaultMaxHierarchyDepth is the default maximum number of dot-notation
// levels allowed in hierarchical child IDs (e.g. br-a3f8.1.2.3 = depth 3).
const DefaultMaxHierarchyDepth = 3

// ErrMaxDepthExceeded is returned when an operation would exceed the maximum
// hierarchy depth for child IDs.
var ErrMaxDepthExceeded = fmt.Errorf("maximum hierarchy depth exceeded")

// IsHierarchicalID reports whether id is a hierarchical child ID.
// An ID is hierarchical if it contains a dot and the suffix after the last
// dot is purely numeric (e.g. "br-a3f8.1" is hierarchical, but
// "my.project-abc" is not).
func IsHierarchicalID(id string) bool {
	dot := strings.LastIndex(id, ".")
	if dot < 0 || dot == len(id)-1 {
		return false
	}
	suffix := id[dot+1:]
	for _, r := range suffix {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// HierarchyDepth returns the nesting depth of an ID by counting dots.
// A root ID like "br-a3f8" has depth 0; "br-a3f8.1" has depth 1, etc.
func HierarchyDepth(id string) int {
	return strings.Count(id, ".")
}

// ChildID returns the composite child ID given a parent ID and child number.
func ChildID(parentID string, childNum int) string {
	return fmt.Sprintf("%s.%d", parentID, childNum)
}

// ParseHierarchicalID splits a hierarchical ID into its immediate parent and
// child number. For example, "br-a3f8.2" returns ("br-a3f8", 2, true).
// Returns ("", 0, false) if the ID is not hierarchical.
func ParseHierarchicalID(id string) (parentID string, childNum int, ok bool) {
	if !IsHierarchicalID(id) {
		return "", 0, false
	}
	dot := strings.LastIndex(id, ".")
	parentID = id[:dot]
	childNum, _ = strconv.Atoi(id[dot+1:])
	return parentID, childNum, true
}

// RootParentID returns the root parent portion of a (possibly hierarchical)
// ID. For hierarchical IDs this is everything before the first dot
// (e.g. "br-a3f8.1.2" → "br-a3f8"). Non-hierarchical IDs are returned
// unchanged.
func RootParentID(id string) string {
	dot := strings.Index(id, ".")
	if dot < 0 {
		return id
	}
	return id[:dot]
}

// CheckHierarchyDepth verifies that parentID is not already at the maximum
// hierarchy depth. If adding a child to parentID would exceed maxDepth,
// it returns ErrMaxDepthExceeded with a descriptive message.
// For example, with maxDepth=3, a parent "br-x.1.2.3" (depth 3) is rejected
// because a child would be at depth 4.
func CheckHierarchyDepth(parentID string, maxDepth int) error {
	depth := HierarchyDepth(parentID)
	if depth >= maxDepth {
		return fmt.Errorf("cannot add child to %s (depth %d): maximum hierarchy depth is %d: %w",
			parentID, depth, maxDepth, ErrMaxDepthExceeded)
	}
	return nil
}
