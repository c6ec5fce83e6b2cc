package marketplace

import "sort"

const (
	Amazon   = "amazon"
	Flipkart = "flipkart"
	Meesho   = "meesho"
	FirstCry = "firstcry"
)

var shipMarkers = []string{`(?i)Ship\s*to\s*:`, `(?i)Ship\s*from\s*:`}

var builtins = map[string]Definition{
	Amazon: {
		Name: Amazon,
		// "Order Id", with l/1/I OCR confusion, or "Order Number".
		OrderPatterns: []string{
			`(?i)Order\s*(?:[1lI]d|Number)\s*:\s*[^0-9]*?(\d+)[\s.\-~]*(\d+)[\s.\-~]*(\d+)`,
		},
		KeyGroups:    []int{3, 7, 7},
		KeySeparator: "-",
		AuxPatterns: []string{
			`(?i)\bAWB\s*(?:No\.?|Number)?\s*:?\s*([A-Z0-9]{8,})`,
			`(?i)\bTracking\s*(?:ID|No\.?|Number)\s*:?\s*([A-Z0-9]{8,})`,
		},
		ScannerPatterns: shipMarkers,
		SKUPattern:      `\(([^)]+)\)\s*HSN:`,
		Table: TableHints{
			DescriptionHeaders: []string{"description"},
			QuantityHeaders:    []string{"qty"},
			TotalMarker:        "total",
		},
		Columns: Columns{
			OrderKey: []string{"order-id", "Order ID", "Order Id"},
			SKU:      []string{"sku"},
			Quantity: []string{"quantity-purchased"},
		},
	},
	Flipkart: {
		Name: Flipkart,
		OrderPatterns: []string{
			`(?i)E-?Kart\s*Logistics\s*(OD\d+)`,
			`\b(OD\d{8,})\b`,
		},
		AuxPatterns: []string{
			`(?i)\bAWB\s*No\.?\s*:?\s*([A-Z0-9]{8,})`,
		},
		ScannerPatterns: shipMarkers,
		SKUPattern:      `^\s*(?:\d+\s+)?([^\s|]+)\s*\|`,
		Table: TableHints{
			DescriptionHeaders: []string{"description", "sku id"},
			QuantityHeaders:    []string{"qty"},
			TotalMarker:        "total",
		},
		Columns: Columns{
			OrderKey:   []string{"Order Id", "Order ID"},
			SKU:        []string{"SKU"},
			Quantity:   []string{"Quantity"},
			TrackingID: []string{"Tracking ID", "AWB No"},
		},
		SplitRatio: 0.46,
	},
	Meesho: {
		Name: Meesho,
		OrderPatterns: []string{
			`(?i)Purchase\s*Order\s*No\.?\s*:?\s*(\d+)`,
		},
		AuxPatterns: []string{
			`(\b[A-Z0-9]{6,}\b)\s*Product\s*Details`,
		},
		ScannerPatterns: shipMarkers,
		Table: TableHints{
			DescriptionHeaders: []string{"sku"},
			QuantityHeaders:    []string{"qty"},
			SKUHeaders:         []string{"sku"},
			TotalMarker:        "total",
		},
		Columns: Columns{
			OrderKey:     []string{"Sub Order No.", "Sub Order No"},
			SKU:          []string{"SKU"},
			Quantity:     []string{"Qty.", "Qty", "Quantity"},
			TrackingID:   []string{"AWB"},
			KeyDelimiter: "_",
		},
		SplitRatio: 0.345,
	},
	FirstCry: {
		Name: FirstCry,
		OrderPatterns: []string{
			`(?i)Order\s*No\s*:\s*([A-Z0-9]+)\b`,
			`(?i)W(\w+)\w\s+Sold\s+By`,
		},
		AuxPatterns: []string{
			`(?i)Shipment\s*ID\s*:\s*(\d+)`,
		},
		ScannerPatterns: shipMarkers,
		SKUPattern:      `(?i)Style\s*Code\s*:\s*"([^"]+)"`,
		Table: TableHints{
			DescriptionHeaders: []string{"item name", "item"},
			QuantityHeaders:    []string{"qty"},
			TotalMarker:        "total",
		},
		Columns: Columns{
			OrderKey:   []string{"Order ID", "Order Id"},
			SKU:        []string{"Vendor Style Code"},
			Quantity:   []string{"Total Qty"},
			TrackingID: []string{"AWB No"},
		},
	},
}

// Builtin returns a copy of the built-in definition for name.
func Builtin(name string) (Definition, bool) {
	def, ok := builtins[name]
	return def, ok
}

// BuiltinNames returns the built-in marketplace names, sorted.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
