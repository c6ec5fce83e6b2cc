// Package output renders command results as YAML, JSON or a plain table.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Format defines the output format for CLI commands.
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// Default is the format used when --output is unset or unknown.
var Default Format = FormatYAML

// current is set by the root command's --output flag.
var current = Default

// Tabular is implemented by results that have a human-readable table form.
type Tabular interface {
	Header() []string
	Rows() [][]string
}

// ParseFormat maps a flag value onto a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatYAML, FormatJSON, FormatTable:
		return f, nil
	case "":
		return Default, nil
	default:
		return "", fmt.Errorf("unknown output format: %s", s)
	}
}

// SetFormat sets the global output format, falling back to Default.
func SetFormat(s string) {
	f, err := ParseFormat(s)
	if err != nil {
		f = Default
	}
	current = f
}

// CurrentFormat returns the global output format.
func CurrentFormat() Format {
	return current
}

// Print writes data to stdout in the global format.
func Print(data any) error {
	return Write(os.Stdout, current, data)
}

// Write writes data to w in the given format. The table format needs a
// Tabular value; anything else falls back to YAML.
func Write(w io.Writer, format Format, data any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	case FormatTable:
		t, ok := data.(Tabular)
		if !ok {
			return Write(w, FormatYAML, data)
		}
		return writeTable(w, t)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

func writeTable(w io.Writer, t Tabular) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(t.Header(), "\t")))
	for _, row := range t.Rows() {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
