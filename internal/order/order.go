// Package order defines the data model shared by the page assignment pipeline:
// pages, page classifications, line items and order buckets.
package order

import (
	"strings"
	"unicode"
)

// UnassignedKey is the bucket key for pages that never resolved to an order.
const UnassignedKey = "UNASSIGNED"

// Table is an extracted page table: ordered rows of ordered cells.
type Table [][]string

// Page is one extracted page of the source document.
type Page struct {
	Index int    // 0-based position in the document
	Text  string // raw text, possibly empty
	Table Table  // optional, nil when no table was detected
	OCR   bool   // text came from the OCR fallback
}

// Kind classifies a page for the assignment engine.
type Kind int

const (
	// Continuation has no recognizable marker and belongs to the current order.
	Continuation Kind = iota
	// OrderStart carries a recognizable order key.
	OrderStart
	// AmbiguousHeader carries an AWB/manifest number but no order key yet.
	AmbiguousHeader
	// ScannerPage is a carrier label ("Ship to"/"Ship from") without order text.
	ScannerPage
	// Empty has no extractable text at all.
	Empty
)

func (k Kind) String() string {
	switch k {
	case Continuation:
		return "continuation"
	case OrderStart:
		return "order_start"
	case AmbiguousHeader:
		return "ambiguous_header"
	case ScannerPage:
		return "scanner_page"
	case Empty:
		return "empty"
	default:
		return "unknown"
	}
}

// Classification is the OrderIdentifier verdict for one page.
type Classification struct {
	Kind     Kind
	OrderKey string // set for OrderStart
	AuxKey   string // AWB / tracking / shipment id, when present
}

// Source records where a line item came from.
type Source int

const (
	SourceNone Source = iota
	SourceRecords
	SourceTable
)

func (s Source) String() string {
	switch s {
	case SourceRecords:
		return "records"
	case SourceTable:
		return "table"
	default:
		return "none"
	}
}

// LineItem is one SKU line of an order.
type LineItem struct {
	SKU        string `json:"sku" yaml:"sku"`
	Quantity   int    `json:"quantity" yaml:"quantity"`
	TrackingID string `json:"tracking_id,omitempty" yaml:"tracking_id,omitempty"`
	Source     Source `json:"-" yaml:"-"`
}

// Bucket collects the pages and line items of one order.
// Pages are kept in assignment order, which is not always document order.
type Bucket struct {
	Key        string
	Pages      []int
	Items      []LineItem
	AuxKeys    []string
	ItemSource Source
	OutputPath string
	Unassigned bool
}

// AddAuxKey records an AWB/tracking key once.
func (b *Bucket) AddAuxKey(aux string) {
	if aux == "" {
		return
	}
	for _, k := range b.AuxKeys {
		if k == aux {
			return
		}
	}
	b.AuxKeys = append(b.AuxKeys, aux)
}

// Mapping is the final order key -> bucket mapping, in bucket creation order.
type Mapping struct {
	buckets []*Bucket
	byKey   map[string]*Bucket
}

// NewMapping returns an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{byKey: make(map[string]*Bucket)}
}

// Get returns the bucket for key, or nil.
func (m *Mapping) Get(key string) *Bucket {
	return m.byKey[key]
}

// Ensure returns the bucket for key, creating it if absent.
// The second return value reports whether the bucket was created.
func (m *Mapping) Ensure(key string) (*Bucket, bool) {
	if b, ok := m.byKey[key]; ok {
		return b, false
	}
	b := &Bucket{Key: key, Unassigned: key == UnassignedKey}
	m.byKey[key] = b
	m.buckets = append(m.buckets, b)
	return b, true
}

// Buckets returns all buckets in creation order.
func (m *Mapping) Buckets() []*Bucket {
	out := make([]*Bucket, len(m.buckets))
	copy(out, m.buckets)
	return out
}

// Len returns the number of buckets, including the unassigned one.
func (m *Mapping) Len() int {
	return len(m.buckets)
}

// Unassigned returns the unassigned bucket, or nil if every page resolved.
func (m *Mapping) Unassigned() *Bucket {
	return m.byKey[UnassignedKey]
}

// PageCount returns the total number of page assignments across buckets.
func (m *Mapping) PageCount() int {
	n := 0
	for _, b := range m.buckets {
		n += len(b.Pages)
	}
	return n
}

// Keys returns bucket keys in creation order.
func (m *Mapping) Keys() []string {
	keys := make([]string, len(m.buckets))
	for i, b := range m.buckets {
		keys[i] = b.Key
	}
	return keys
}

// NormalizeKey canonicalizes an order key so that keys scraped from page text
// and keys read from an order export compare equal.
func NormalizeKey(key string) string {
	var sb strings.Builder
	for _, r := range strings.TrimSpace(key) {
		if unicode.IsSpace(r) {
			continue
		}
		sb.WriteRune(unicode.ToUpper(r))
	}
	return sb.String()
}
