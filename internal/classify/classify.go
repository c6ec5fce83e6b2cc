// Package classify implements the order identifier: it normalizes page text
// and classifies each page against a marketplace pattern set.
package classify

import (
	"regexp"
	"strings"

	"github.com/jackzampolin/labelsplit/internal/marketplace"
	"github.com/jackzampolin/labelsplit/internal/order"
)

var (
	reNonASCII   = regexp.MustCompile(`[^\x00-\x7F]+`)
	reWhitespace = regexp.MustCompile(`\s+`)
	dashReplacer = strings.NewReplacer(
		"â€”", "-", // UTF-8 em dash read as cp1252
		"â€“", "-",
		"—", "-",
		"–", "-",
		"‒", "-",
		"−", "-",
	)
)

// Normalize cleans extracted or OCR text: dash forms become "-", remaining
// non-ASCII runs become spaces, whitespace collapses to single spaces.
func Normalize(text string) string {
	text = dashReplacer.Replace(text)
	text = reNonASCII.ReplaceAllString(text, " ")
	text = reWhitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Identifier classifies page text for one marketplace.
type Identifier struct {
	set *marketplace.PatternSet
}

// New creates an Identifier over a compiled pattern set.
func New(set *marketplace.PatternSet) *Identifier {
	return &Identifier{set: set}
}

// Classify is a pure function of the page text. Tiers, in priority order:
// order key, AWB/manifest number without order key, carrier scanner page.
func (id *Identifier) Classify(text string) order.Classification {
	text = Normalize(text)
	if text == "" {
		return order.Classification{Kind: order.Empty}
	}

	aux := id.auxKey(text)

	if key, ok := id.orderKey(text); ok {
		return order.Classification{Kind: order.OrderStart, OrderKey: key, AuxKey: aux}
	}
	if aux != "" {
		return order.Classification{Kind: order.AmbiguousHeader, AuxKey: aux}
	}
	for _, re := range id.set.Scanner {
		if re.MatchString(text) {
			return order.Classification{Kind: order.ScannerPage}
		}
	}
	return order.Classification{Kind: order.Continuation}
}

// orderKey tries each order pattern; a match whose key fails the layout check
// or collides with the unassigned bucket does not stop the search.
func (id *Identifier) orderKey(text string) (string, bool) {
	for _, re := range id.set.Order {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := joinGroups(m)
		key, ok := id.set.FormatKey(raw)
		if !ok {
			continue
		}
		if key = order.NormalizeKey(key); key != "" && key != order.UnassignedKey {
			return key, true
		}
	}
	return "", false
}

func (id *Identifier) auxKey(text string) string {
	for _, re := range id.set.Aux {
		if m := re.FindStringSubmatch(text); m != nil {
			if aux := order.NormalizeKey(joinGroups(m)); aux != "" {
				return aux
			}
		}
	}
	return ""
}

func joinGroups(m []string) string {
	if len(m) == 1 {
		return m[0]
	}
	var sb strings.Builder
	for _, g := range m[1:] {
		sb.WriteString(g)
	}
	return sb.String()
}
