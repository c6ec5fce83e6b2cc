package assign

import "github.com/jackzampolin/labelsplit/internal/order"

// EventType identifies an engine event.
type EventType int

const (
	PageProcessed EventType = iota
	BufferFlushed
	OrderResolved
	Warning
	BucketClosed
)

func (t EventType) String() string {
	switch t {
	case PageProcessed:
		return "page_processed"
	case BufferFlushed:
		return "buffer_flushed"
	case OrderResolved:
		return "order_resolved"
	case Warning:
		return "warning"
	case BucketClosed:
		return "bucket_closed"
	default:
		return "unknown"
	}
}

// Event carries enough state for a caller to write a progress log.
// PageIndex is -1 for events not tied to one page.
type Event struct {
	Type           EventType
	PageIndex      int
	Classification order.Classification
	State          State
	OrderKey       string // empty while a page is buffered
	Pages          []int
	ItemCount      int
	Source         order.Source
	OCR            bool
	Message        string
}

// Observer receives engine events synchronously.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f(ev).
func (f ObserverFunc) Observe(ev Event) { f(ev) }
