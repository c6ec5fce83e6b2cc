package assign

import (
	"errors"
	"reflect"
	"testing"

	"github.com/jackzampolin/labelsplit/internal/classify"
	"github.com/jackzampolin/labelsplit/internal/lineitem"
	"github.com/jackzampolin/labelsplit/internal/marketplace"
	"github.com/jackzampolin/labelsplit/internal/order"
	"github.com/jackzampolin/labelsplit/internal/records"
)

func start(key string) order.Classification {
	return order.Classification{Kind: order.OrderStart, OrderKey: key}
}

var (
	scanner = order.Classification{Kind: order.ScannerPage}
	cont    = order.Classification{Kind: order.Continuation}
	empty   = order.Classification{Kind: order.Empty}
	header  = order.Classification{Kind: order.AmbiguousHeader, AuxKey: "AWB9"}
)

// fakeResolver counts calls and returns a fixed item per key.
type fakeResolver struct {
	calls map[string]int
	items map[string][]order.LineItem
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{calls: map[string]int{}, items: map[string][]order.LineItem{}}
}

func (f *fakeResolver) Resolve(key, auxKey string, page order.Page) lineitem.Resolution {
	f.calls[key]++
	items := f.items[key]
	if len(items) == 0 {
		return lineitem.Resolution{Source: order.SourceNone}
	}
	return lineitem.Resolution{Items: items, Source: order.SourceRecords}
}

func run(t *testing.T, seq []order.Classification, r Resolver, obs ...Observer) *order.Mapping {
	t.Helper()
	e := NewEngine(nil, r, obs...)
	for i, cls := range seq {
		if err := e.Step(order.Page{Index: i}, cls); err != nil {
			t.Fatalf("Step(%d): %v", i, err)
		}
	}
	return e.Finish()
}

func pagesOf(m *order.Mapping) map[string][]int {
	out := map[string][]int{}
	for _, b := range m.Buckets() {
		out[b.Key] = b.Pages
	}
	return out
}

func TestEngineTransitions(t *testing.T) {
	tests := []struct {
		name string
		seq  []order.Classification
		want map[string][]int
	}{
		{
			name: "scanner before invoice",
			seq:  []order.Classification{scanner, start("A"), cont, start("B")},
			want: map[string][]int{"A": {0, 1, 2}, "B": {3}},
		},
		{
			name: "scanner after invoice attaches forward",
			seq:  []order.Classification{start("A"), scanner, start("B")},
			want: map[string][]int{"A": {0}, "B": {1, 2}},
		},
		{
			name: "dangling buffer attaches to last order",
			seq:  []order.Classification{start("A"), cont, scanner},
			want: map[string][]int{"A": {0, 1, 2}},
		},
		{
			name: "continuation while buffering",
			seq:  []order.Classification{start("A"), header, cont, empty, start("B"), empty},
			want: map[string][]int{"A": {0}, "B": {1, 2, 3, 4, 5}},
		},
		{
			name: "repeated order key appends",
			seq:  []order.Classification{start("A"), start("B"), start("A"), cont},
			want: map[string][]int{"A": {0, 2, 3}, "B": {1}},
		},
		{
			name: "leading continuation is unassigned",
			seq:  []order.Classification{cont, empty, start("A")},
			want: map[string][]int{order.UnassignedKey: {0, 1}, "A": {2}},
		},
		{
			name: "buffer with no order at all",
			seq:  []order.Classification{scanner, cont},
			want: map[string][]int{order.UnassignedKey: {0, 1}},
		},
		{
			name: "empty document",
			seq:  nil,
			want: map[string][]int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := run(t, tt.seq, nil)
			if got := pagesOf(m); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEveryPageInExactlyOneBucket(t *testing.T) {
	seq := []order.Classification{
		cont, scanner, start("A"), cont, empty, header, scanner,
		start("B"), cont, start("A"), scanner, cont, start("C"), header, cont,
	}
	m := run(t, seq, nil)

	seen := map[int]int{}
	for _, b := range m.Buckets() {
		for _, p := range b.Pages {
			seen[p]++
		}
	}
	for i := range seq {
		if seen[i] != 1 {
			t.Errorf("page %d assigned %d times", i, seen[i])
		}
	}
	if m.PageCount() != len(seq) {
		t.Errorf("page count = %d, want %d", m.PageCount(), len(seq))
	}
}

func TestEngineIdempotent(t *testing.T) {
	seq := []order.Classification{scanner, start("A"), cont, header, start("B"), cont, scanner}
	first := pagesOf(run(t, seq, nil))
	second := pagesOf(run(t, seq, nil))
	if !reflect.DeepEqual(first, second) {
		t.Errorf("runs differ: %v vs %v", first, second)
	}
}

func TestEngineStates(t *testing.T) {
	e := NewEngine(nil, nil)
	if e.State() != NoCurrentOrder {
		t.Fatalf("initial state = %v", e.State())
	}

	steps := []struct {
		cls     order.Classification
		state   State
		key     string
		pending []int
	}{
		{scanner, Buffering, "", []int{0}},
		{cont, Buffering, "", []int{0, 1}},
		{start("A"), InOrder, "A", []int{}},
		{cont, InOrder, "A", []int{}},
		{header, Buffering, "", []int{4}},
	}
	for i, s := range steps {
		if err := e.Step(order.Page{Index: i}, s.cls); err != nil {
			t.Fatal(err)
		}
		if e.State() != s.state {
			t.Errorf("step %d: state = %v, want %v", i, e.State(), s.state)
		}
		if e.CurrentKey() != s.key {
			t.Errorf("step %d: key = %q, want %q", i, e.CurrentKey(), s.key)
		}
		if got := e.Pending(); !reflect.DeepEqual(got, s.pending) {
			t.Errorf("step %d: pending = %v, want %v", i, got, s.pending)
		}
	}
}

func TestEngineOutOfOrder(t *testing.T) {
	e := NewEngine(nil, nil)
	if err := e.Step(order.Page{Index: 0}, start("A")); err != nil {
		t.Fatal(err)
	}
	err := e.Step(order.Page{Index: 2}, cont)
	if !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("got %v, want ErrOutOfOrder", err)
	}

	e.Finish()
	if err := e.Step(order.Page{Index: 1}, cont); !errors.Is(err, ErrFinished) {
		t.Errorf("got %v, want ErrFinished", err)
	}
}

func TestEngineResolvesOncePerBucket(t *testing.T) {
	r := newFakeResolver()
	r.items["A"] = []order.LineItem{{SKU: "X", Quantity: 1, Source: order.SourceRecords}}

	m := run(t, []order.Classification{start("A"), start("B"), start("A"), start("B")}, r)

	if r.calls["A"] != 1 {
		t.Errorf("A resolved %d times, want 1", r.calls["A"])
	}
	// B has no items yet, so each OrderStart retries
	if r.calls["B"] != 2 {
		t.Errorf("B resolved %d times, want 2", r.calls["B"])
	}
	if got := m.Get("A").Items; len(got) != 1 || got[0].SKU != "X" {
		t.Errorf("A items = %+v", got)
	}
	if m.Get("A").ItemSource != order.SourceRecords {
		t.Errorf("A source = %v", m.Get("A").ItemSource)
	}
}

func TestEngineEvents(t *testing.T) {
	var events []Event
	obs := ObserverFunc(func(ev Event) { events = append(events, ev) })

	run(t, []order.Classification{cont, scanner, start("A")}, nil, obs)

	var types []EventType
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	want := []EventType{
		Warning, PageProcessed, // orphan page 0
		PageProcessed,                // buffered page 1
		BufferFlushed, PageProcessed, // page 2 confirms A
		BucketClosed, BucketClosed,
	}
	if !reflect.DeepEqual(types, want) {
		t.Fatalf("events = %v, want %v", types, want)
	}

	if events[2].OrderKey != "" || events[2].State != Buffering {
		t.Errorf("buffered page event = %+v", events[2])
	}
	if !reflect.DeepEqual(events[3].Pages, []int{1}) || events[3].OrderKey != "A" {
		t.Errorf("flush event = %+v", events[3])
	}
	if events[4].OrderKey != "A" || events[4].Classification.Kind != order.OrderStart {
		t.Errorf("page event = %+v", events[4])
	}
}

func TestAssignRecordsWin(t *testing.T) {
	def, _ := marketplace.Builtin(marketplace.Amazon)
	ps, err := marketplace.Compile(def)
	if err != nil {
		t.Fatal(err)
	}
	ix, err := records.Build([][]string{
		{"order-id", "sku", "quantity-purchased"},
		{"408-1234567-7654321", "EXPORT-SKU", "3"},
	}, def.Columns)
	if err != nil {
		t.Fatal(err)
	}

	pages := []order.Page{
		{Index: 0, Text: "Ship To: Jane Doe, Pune"},
		{
			Index: 1,
			Text:  "Order Number: 408-1234567-7654321 Invoice",
			Table: order.Table{
				{"Description", "Qty"},
				{"Table thing (TABLE-SKU) HSN: 1", "9"},
			},
		},
		{Index: 2, Text: "Order Id: 171 0000000 0000001", Table: order.Table{
			{"Description", "Qty"},
			{"Mug (MUG-01) HSN: 6912", "2"},
			{"Total", "2"},
		}},
	}

	m, err := Assign(classify.New(ps), lineitem.NewResolver(ix, ps), pages)
	if err != nil {
		t.Fatal(err)
	}

	a := m.Get("408-1234567-7654321")
	if a == nil {
		t.Fatalf("missing bucket, have %v", m.Keys())
	}
	if !reflect.DeepEqual(a.Pages, []int{0, 1}) {
		t.Errorf("pages = %v", a.Pages)
	}
	want := []order.LineItem{{SKU: "EXPORT-SKU", Quantity: 3, Source: order.SourceRecords}}
	if !reflect.DeepEqual(a.Items, want) {
		t.Errorf("items = %+v, want %+v", a.Items, want)
	}

	b := m.Get("171-0000000-0000001")
	if b == nil || len(b.Items) != 1 || b.Items[0].SKU != "MUG-01" || b.ItemSource != order.SourceTable {
		t.Errorf("table fallback bucket = %+v", b)
	}
}
