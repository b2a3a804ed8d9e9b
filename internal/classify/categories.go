// Package classify assigns budget categories to allocated order items.
package classify

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"github.com/fernwick/ledgerloom/internal/model"
)

// normalizeCategoryName lower-cases a category name and strips emoji and
// other symbol runes. Ledger categories often carry emoji prefixes that the
// classification service omits or mangles.
func normalizeCategoryName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '&' || r == '-' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(strings.ToLower(b.String())), " ")
}

// maxNameDistance is the edit distance tolerated when reconciling a
// category name returned by the classification service.
const maxNameDistance = 2

// ResolveCategory maps a service-returned category name onto one of the
// enabled categories. Tried in order: exact match, normalized match, small
// edit distance, then word overlap. Returns nil when nothing is close
// enough; the caller treats that as an invalid response.
func ResolveCategory(name string, categories []model.Category) *model.Category {
	for i := range categories {
		if categories[i].Name == name {
			return &categories[i]
		}
	}

	norm := normalizeCategoryName(name)
	if norm == "" {
		return nil
	}
	for i := range categories {
		if normalizeCategoryName(categories[i].Name) == norm {
			return &categories[i]
		}
	}

	var best *model.Category
	bestDist := maxNameDistance + 1
	for i := range categories {
		dist := levenshtein.ComputeDistance(norm, normalizeCategoryName(categories[i].Name))
		if dist < bestDist {
			best = &categories[i]
			bestDist = dist
		}
	}
	if best != nil {
		return best
	}

	// Word overlap catches responses like "Home Improvement Supplies" for a
	// category named "Home Improvement".
	nameWords := strings.Fields(norm)
	for i := range categories {
		catWords := strings.Fields(normalizeCategoryName(categories[i].Name))
		if len(catWords) == 0 {
			continue
		}
		overlap := 0
		for _, w := range catWords {
			for _, nw := range nameWords {
				if w == nw {
					overlap++
					break
				}
			}
		}
		if overlap == len(catWords) {
			return &categories[i]
		}
	}

	return nil
}
