// Package assign implements the page assignment engine: a single-pass state
// machine that binds pages and resolved line items to order buckets.
package assign

import (
	"errors"
	"fmt"

	"github.com/jackzampolin/labelsplit/internal/lineitem"
	"github.com/jackzampolin/labelsplit/internal/order"
)

var (
	// ErrOutOfOrder is returned when pages are not fed in document order.
	ErrOutOfOrder = errors.New("page out of document order")
	// ErrFinished is returned when a page is fed after Finish.
	ErrFinished = errors.New("engine already finished")
)

// State is the engine state between pages.
type State int

const (
	NoCurrentOrder State = iota
	InOrder
	Buffering
)

func (s State) String() string {
	switch s {
	case NoCurrentOrder:
		return "no_current_order"
	case InOrder:
		return "in_order"
	case Buffering:
		return "buffering"
	default:
		return "unknown"
	}
}

// Classifier classifies page text.
type Classifier interface {
	Classify(text string) order.Classification
}

// Resolver resolves the line items of an order.
type Resolver interface {
	Resolve(key, auxKey string, page order.Page) lineitem.Resolution
}

// Engine consumes pages strictly in document order. It performs no I/O;
// progress is reported to observers.
type Engine struct {
	classifier Classifier
	resolver   Resolver
	observers  []Observer

	mapping *order.Mapping
	state   State
	current string // order key while InOrder
	last    string // most recent confirmed order key
	pending []int
	pendAux []string

	next     int
	finished bool
}

// NewEngine creates an engine. classifier may be nil when pages are fed
// through Step with precomputed classifications.
func NewEngine(classifier Classifier, resolver Resolver, observers ...Observer) *Engine {
	return &Engine{
		classifier: classifier,
		resolver:   resolver,
		observers:  observers,
		mapping:    order.NewMapping(),
	}
}

// Subscribe adds an observer.
func (e *Engine) Subscribe(o Observer) {
	e.observers = append(e.observers, o)
}

// State returns the current state.
func (e *Engine) State() State { return e.state }

// CurrentKey returns the order key while InOrder, else "".
func (e *Engine) CurrentKey() string {
	if e.state != InOrder {
		return ""
	}
	return e.current
}

// Pending returns the buffered page indices.
func (e *Engine) Pending() []int {
	out := make([]int, len(e.pending))
	copy(out, e.pending)
	return out
}

// Process classifies page and advances the state machine.
func (e *Engine) Process(page order.Page) (order.Classification, error) {
	if e.classifier == nil {
		return order.Classification{}, fmt.Errorf("engine has no classifier")
	}
	cls := e.classifier.Classify(page.Text)
	return cls, e.Step(page, cls)
}

// Step advances the state machine with an already computed classification.
func (e *Engine) Step(page order.Page, cls order.Classification) error {
	if e.finished {
		return ErrFinished
	}
	if page.Index != e.next {
		return fmt.Errorf("%w: got page %d, want %d", ErrOutOfOrder, page.Index, e.next)
	}
	e.next++

	assigned := ""
	switch cls.Kind {
	case order.OrderStart:
		assigned = e.startOrder(page, cls)

	case order.AmbiguousHeader, order.ScannerPage:
		e.buffer(page.Index, cls.AuxKey)

	default: // Continuation, Empty
		switch e.state {
		case InOrder:
			b := e.mapping.Get(e.current)
			b.Pages = append(b.Pages, page.Index)
			assigned = e.current
		case Buffering:
			e.buffer(page.Index, "")
		default:
			assigned = e.orphan(page.Index)
		}
	}

	e.emit(Event{
		Type:           PageProcessed,
		PageIndex:      page.Index,
		Classification: cls,
		State:          e.state,
		OrderKey:       assigned,
		ItemCount:      e.itemCount(assigned),
		OCR:            page.OCR,
	})
	return nil
}

func (e *Engine) startOrder(page order.Page, cls order.Classification) string {
	key := cls.OrderKey
	b, created := e.mapping.Ensure(key)

	if len(e.pending) > 0 {
		e.flush(b, "confirmed by order start")
	}
	b.Pages = append(b.Pages, page.Index)
	b.AddAuxKey(cls.AuxKey)

	if created || (b.ItemSource != order.SourceRecords && len(b.Items) == 0) {
		e.resolve(b, cls, page)
	}

	e.state = InOrder
	e.current = key
	e.last = key
	return key
}

func (e *Engine) buffer(index int, aux string) {
	e.pending = append(e.pending, index)
	if aux != "" {
		e.pendAux = append(e.pendAux, aux)
	}
	e.state = Buffering
}

// flush moves the pending pages into b, preserving their original order.
func (e *Engine) flush(b *order.Bucket, reason string) {
	pages := e.pending
	b.Pages = append(b.Pages, pages...)
	for _, aux := range e.pendAux {
		b.AddAuxKey(aux)
	}
	e.pending = nil
	e.pendAux = nil

	e.emit(Event{
		Type:      BufferFlushed,
		PageIndex: -1,
		State:     e.state,
		OrderKey:  b.Key,
		Pages:     pages,
		Message:   reason,
	})
}

// orphan places a page that arrived with no current order.
func (e *Engine) orphan(index int) string {
	if e.last != "" {
		b := e.mapping.Get(e.last)
		b.Pages = append(b.Pages, index)
		e.warn(index, e.last, fmt.Sprintf("page %d has no current order, attached to %s", index+1, e.last))
		return e.last
	}
	b, _ := e.mapping.Ensure(order.UnassignedKey)
	b.Pages = append(b.Pages, index)
	e.warn(index, order.UnassignedKey, fmt.Sprintf("page %d precedes any order, kept as unassigned", index+1))
	return order.UnassignedKey
}

func (e *Engine) resolve(b *order.Bucket, cls order.Classification, page order.Page) {
	if e.resolver == nil {
		return
	}
	res := e.resolver.Resolve(b.Key, cls.AuxKey, page)
	for _, w := range res.Warnings {
		e.warn(page.Index, b.Key, w)
	}
	if len(res.Items) > 0 || res.Source == order.SourceRecords {
		b.Items = append(b.Items, res.Items...)
		b.ItemSource = res.Source
	}
	e.emit(Event{
		Type:      OrderResolved,
		PageIndex: page.Index,
		State:     e.state,
		OrderKey:  b.Key,
		ItemCount: len(b.Items),
		Source:    res.Source,
	})
}

// Finish closes the pass and returns the mapping. A buffer still open at the
// end of the document attaches to the last known order, or to the
// unassigned bucket when no order was ever seen.
func (e *Engine) Finish() *order.Mapping {
	if e.finished {
		return e.mapping
	}
	e.finished = true

	if len(e.pending) > 0 {
		if e.last != "" {
			e.flush(e.mapping.Get(e.last), "document ended while buffering")
		} else {
			b, _ := e.mapping.Ensure(order.UnassignedKey)
			pages := e.Pending()
			e.flush(b, "document ended before any order")
			e.warn(-1, order.UnassignedKey, fmt.Sprintf("%d buffered page(s) never matched an order", len(pages)))
		}
	}
	e.state = NoCurrentOrder
	e.current = ""

	for _, b := range e.mapping.Buckets() {
		e.emit(Event{
			Type:      BucketClosed,
			PageIndex: -1,
			OrderKey:  b.Key,
			Pages:     append([]int(nil), b.Pages...),
			ItemCount: len(b.Items),
			Source:    b.ItemSource,
		})
	}
	return e.mapping
}

func (e *Engine) itemCount(key string) int {
	if key == "" {
		return 0
	}
	if b := e.mapping.Get(key); b != nil {
		return len(b.Items)
	}
	return 0
}

func (e *Engine) warn(index int, key, msg string) {
	e.emit(Event{Type: Warning, PageIndex: index, State: e.state, OrderKey: key, Message: msg})
}

func (e *Engine) emit(ev Event) {
	for _, o := range e.observers {
		o.Observe(ev)
	}
}

// Assign runs a full pass over pages.
func Assign(classifier Classifier, resolver Resolver, pages []order.Page, observers ...Observer) (*order.Mapping, error) {
	e := NewEngine(classifier, resolver, observers...)
	for _, p := range pages {
		if _, err := e.Process(p); err != nil {
			return nil, err
		}
	}
	return e.Finish(), nil
}
