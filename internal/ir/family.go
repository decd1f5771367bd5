package ir

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// SourceFamily identifies the browser family a bookmark was read from.
// Reconciliation only ever compares records of one family.
type SourceFamily string

const (
	FamilyFirefox SourceFamily = "firefox"
	FamilyChrome  SourceFamily = "chrome"
	FamilyHTML    SourceFamily = "html"
)

// Families lists every known family in display order.
var Families = []SourceFamily{FamilyFirefox, FamilyChrome, FamilyHTML}

// familyAliases maps folded spellings that do not share a family's prefix.
var familyAliases = map[string]SourceFamily{
	"chromium": FamilyChrome,
	"netscape": FamilyHTML,
}

// ErrUnknownFamily is returned by ParseFamily for unrecognized input.
var ErrUnknownFamily = errors.New("unknown source family")

// ParseFamily maps a free-text source label to a family.
//
// Matching is a Unicode case-folded prefix match, so "Firefox",
// "FIREFOX (default-release)" and "firefox_auto" all map to FamilyFirefox.
func ParseFamily(label string) (SourceFamily, error) {
	folded := cases.Fold().String(strings.TrimSpace(label))
	if folded == "" {
		return "", fmt.Errorf("%w: empty label", ErrUnknownFamily)
	}
	for _, f := range Families {
		if strings.HasPrefix(folded, string(f)) {
			return f, nil
		}
	}
	for alias, f := range familyAliases {
		if strings.HasPrefix(folded, alias) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFamily, label)
}

// Valid reports whether f is one of Families.
func (f SourceFamily) Valid() bool {
	for _, known := range Families {
		if f == known {
			return true
		}
	}
	return false
}

// Contains reports whether b is in scope for a reconciliation of family f.
func (f SourceFamily) Contains(b Bookmark) bool {
	return f != "" && b.Family == f
}

func (f SourceFamily) String() string {
	return string(f)
}
