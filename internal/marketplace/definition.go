// Package marketplace holds the per-marketplace extraction strategies: the
// pattern sets and column aliases that are the only marketplace-specific
// knowledge in the pipeline.
package marketplace

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnknown is returned when a marketplace name has no definition.
var ErrUnknown = errors.New("unknown marketplace")

// Definition is the serializable form of a marketplace pattern set.
type Definition struct {
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// OrderPatterns are tried in order; every non-empty capture group of the
	// first match is concatenated into the order key.
	OrderPatterns []string `json:"order_patterns" yaml:"order_patterns" mapstructure:"order_patterns"`
	// KeyGroups, when set, is the required digit-group layout of the key
	// (e.g. 3-7-7). A key of the wrong total length is treated as no match.
	KeyGroups    []int  `json:"key_groups,omitempty" yaml:"key_groups,omitempty" mapstructure:"key_groups"`
	KeySeparator string `json:"key_separator,omitempty" yaml:"key_separator,omitempty" mapstructure:"key_separator"`

	// AuxPatterns capture an AWB / manifest / shipment number.
	AuxPatterns     []string `json:"aux_patterns,omitempty" yaml:"aux_patterns,omitempty" mapstructure:"aux_patterns"`
	ScannerPatterns []string `json:"scanner_patterns,omitempty" yaml:"scanner_patterns,omitempty" mapstructure:"scanner_patterns"`
	SKUPattern      string   `json:"sku_pattern,omitempty" yaml:"sku_pattern,omitempty" mapstructure:"sku_pattern"`

	Table   TableHints `json:"table" yaml:"table" mapstructure:"table"`
	Columns Columns    `json:"columns" yaml:"columns" mapstructure:"columns"`

	// SplitRatio is the fraction of page height above the cut line for
	// marketplaces printing two documents per physical page. Zero disables it.
	SplitRatio float64 `json:"split_ratio,omitempty" yaml:"split_ratio,omitempty" mapstructure:"split_ratio"`
}

// TableHints drive the heuristic line-item extraction from page tables.
type TableHints struct {
	DescriptionHeaders []string `json:"description_headers,omitempty" yaml:"description_headers,omitempty" mapstructure:"description_headers"`
	QuantityHeaders    []string `json:"quantity_headers,omitempty" yaml:"quantity_headers,omitempty" mapstructure:"quantity_headers"`
	SKUHeaders         []string `json:"sku_headers,omitempty" yaml:"sku_headers,omitempty" mapstructure:"sku_headers"`
	TotalMarker        string   `json:"total_marker,omitempty" yaml:"total_marker,omitempty" mapstructure:"total_marker"`
}

// Columns maps the marketplace order export onto the record projection.
type Columns struct {
	OrderKey   []string `json:"order_key" yaml:"order_key" mapstructure:"order_key"`
	SKU        []string `json:"sku" yaml:"sku" mapstructure:"sku"`
	Quantity   []string `json:"quantity" yaml:"quantity" mapstructure:"quantity"`
	TrackingID []string `json:"tracking_id,omitempty" yaml:"tracking_id,omitempty" mapstructure:"tracking_id"`
	// KeyDelimiter cuts the exported key at its first occurrence
	// (Meesho sub-order numbers carry a "_N" suffix).
	KeyDelimiter string `json:"key_delimiter,omitempty" yaml:"key_delimiter,omitempty" mapstructure:"key_delimiter"`
}

// PatternSet is a compiled Definition.
type PatternSet struct {
	Definition

	Order   []*regexp.Regexp
	Aux     []*regexp.Regexp
	Scanner []*regexp.Regexp
	SKU     *regexp.Regexp
}

// Compile validates def and compiles its patterns.
func Compile(def Definition) (*PatternSet, error) {
	if err := Validate(def); err != nil {
		return nil, err
	}

	ps := &PatternSet{Definition: def}
	var err error
	if ps.Order, err = compileAll(def.Name, "order_patterns", def.OrderPatterns); err != nil {
		return nil, err
	}
	if ps.Aux, err = compileAll(def.Name, "aux_patterns", def.AuxPatterns); err != nil {
		return nil, err
	}
	if ps.Scanner, err = compileAll(def.Name, "scanner_patterns", def.ScannerPatterns); err != nil {
		return nil, err
	}
	if def.SKUPattern != "" {
		if ps.SKU, err = regexp.Compile(def.SKUPattern); err != nil {
			return nil, fmt.Errorf("marketplace %s: invalid sku_pattern: %w", def.Name, err)
		}
	}
	return ps, nil
}

func compileAll(name, field string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("marketplace %s: invalid %s[%d]: %w", name, field, i, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// FormatKey applies the KeyGroups layout to a raw key. It returns false when
// the key does not fit the layout.
func (ps *PatternSet) FormatKey(raw string) (string, bool) {
	if len(ps.KeyGroups) == 0 {
		return raw, raw != ""
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)

	total := 0
	for _, g := range ps.KeyGroups {
		total += g
	}
	if len(digits) != total {
		return "", false
	}

	sep := ps.KeySeparator
	parts := make([]string, 0, len(ps.KeyGroups))
	pos := 0
	for _, g := range ps.KeyGroups {
		parts = append(parts, digits[pos:pos+g])
		pos += g
	}
	return strings.Join(parts, sep), true
}

// Merge overlays the non-empty fields of over onto base.
func Merge(base, over Definition) Definition {
	out := base
	if over.Name != "" {
		out.Name = over.Name
	}
	if len(over.OrderPatterns) > 0 {
		out.OrderPatterns = over.OrderPatterns
	}
	if len(over.KeyGroups) > 0 {
		out.KeyGroups = over.KeyGroups
	}
	if over.KeySeparator != "" {
		out.KeySeparator = over.KeySeparator
	}
	if len(over.AuxPatterns) > 0 {
		out.AuxPatterns = over.AuxPatterns
	}
	if len(over.ScannerPatterns) > 0 {
		out.ScannerPatterns = over.ScannerPatterns
	}
	if over.SKUPattern != "" {
		out.SKUPattern = over.SKUPattern
	}
	if len(over.Table.DescriptionHeaders) > 0 {
		out.Table.DescriptionHeaders = over.Table.DescriptionHeaders
	}
	if len(over.Table.QuantityHeaders) > 0 {
		out.Table.QuantityHeaders = over.Table.QuantityHeaders
	}
	if len(over.Table.SKUHeaders) > 0 {
		out.Table.SKUHeaders = over.Table.SKUHeaders
	}
	if over.Table.TotalMarker != "" {
		out.Table.TotalMarker = over.Table.TotalMarker
	}
	if len(over.Columns.OrderKey) > 0 {
		out.Columns.OrderKey = over.Columns.OrderKey
	}
	if len(over.Columns.SKU) > 0 {
		out.Columns.SKU = over.Columns.SKU
	}
	if len(over.Columns.Quantity) > 0 {
		out.Columns.Quantity = over.Columns.Quantity
	}
	if len(over.Columns.TrackingID) > 0 {
		out.Columns.TrackingID = over.Columns.TrackingID
	}
	if over.Columns.KeyDelimiter != "" {
		out.Columns.KeyDelimiter = over.Columns.KeyDelimiter
	}
	if over.SplitRatio != 0 {
		out.SplitRatio = over.SplitRatio
	}
	return out
}
