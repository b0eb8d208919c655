// Package report renders the information panels, statistics and histograms
// shown by the inspector shell.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Grouped formats n with underscores between thousands: 123_123_123.
func Grouped(n uint64) string {
	return strings.ReplaceAll(printer.Sprintf("%d", n), ",", "_")
}

// FileSize formats a byte count with decimal SI prefixes and three digits
// after the point. Counts below 1024 are printed exactly.
func FileSize(n uint64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	return humanize.SIWithDigits(float64(n), 3, "B")
}

// Bytes formats a byte count both ways: "1.024 kB (1_024 B)".
func Bytes(n uint64) string {
	return fmt.Sprintf("%s (%s B)", FileSize(n), Grouped(n))
}

// Field is one labelled line of a panel.
type Field struct {
	Key   string
	Value string
}

// Panel is an ordered list of fields.
type Panel []Field

// Add appends a field.
func (p *Panel) Add(key, format string, args ...any) {
	*p = append(*p, Field{Key: key, Value: fmt.Sprintf(format, args...)})
}

// Get returns the value for key, or "".
func (p Panel) Get(key string) string {
	for _, f := range p {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}

// Render writes the panel with values aligned after the longest key.
func (p Panel) Render(w io.Writer) error {
	width := 0
	for _, f := range p {
		width = max(width, len(f.Key))
	}
	for _, f := range p {
		if _, err := fmt.Fprintf(w, "%-*s  %s\n", width+1, f.Key+":", f.Value); err != nil {
			return err
		}
	}
	return nil
}

func (p Panel) String() string {
	var sb strings.Builder
	_ = p.Render(&sb)
	return sb.String()
}
