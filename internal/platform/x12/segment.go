// Package x12 provides low-level assembly of ANSI X12 EDI segments and
// envelope elements. It knows nothing about claims: higher layers decide
// which segments to emit and in what order, this package only guarantees
// that each segment is delimited, sanitized, and terminated correctly.
package x12

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Separators holds the four delimiter characters of an X12 interchange.
// All four are reserved: they may never appear inside element data, so
// the builder strips them from every value it is given.
type Separators struct {
	Element    string // element separator (ISA is defined around it)
	Segment    string // segment terminator
	Component  string // component (sub-element) separator
	Repetition string // repetition separator (ISA11)
}

// DefaultSeparators returns the delimiters used by virtually every US
// healthcare trading partner: * ~ : ^.
func DefaultSeparators() Separators {
	return Separators{
		Element:    "*",
		Segment:    "~",
		Component:  ":",
		Repetition: "^",
	}
}

// reserved returns the characters that must never survive inside element data.
func (s Separators) reserved() string {
	return s.Element + s.Segment + s.Component + s.Repetition
}

// Sanitize removes the reserved delimiter characters from a value and trims
// surrounding whitespace. Any gap here corrupts segment boundaries silently,
// so every element value passes through this single function.
func (s Separators) Sanitize(value string) string {
	if value == "" {
		return ""
	}
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(s.reserved(), r) {
			return -1
		}
		return r
	}, value)
	return strings.TrimSpace(cleaned)
}

// SegmentBuilder assembles a single X12 segment: an identifier followed by
// ordered elements joined with the element separator and closed with the
// segment terminator. Trailing empty elements are dropped at build time, as
// the X12 grammar requires.
type SegmentBuilder struct {
	id        string
	elements  []string
	seps      Separators
	lineBreak bool
}

// NewSegment starts a segment with the given identifier (e.g. "NM1").
func NewSegment(id string, seps Separators) *SegmentBuilder {
	return &SegmentBuilder{id: id, seps: seps}
}

// LineBreak makes Build append a newline after the segment terminator.
// Readable output for humans; clearinghouses accept both forms.
func (b *SegmentBuilder) LineBreak(on bool) *SegmentBuilder {
	b.lineBreak = on
	return b
}

// Add appends one element. Strings are sanitized; numbers are stringified.
// Accepts string, int, int64, float64 and decimal.Decimal; other types go
// through fmt.Sprint and are then sanitized like strings.
func (b *SegmentBuilder) Add(value interface{}) *SegmentBuilder {
	b.elements = append(b.elements, b.stringify(value))
	return b
}

// AddComponent appends one element whose sub-values are joined with the
// component separator. Trailing empty sub-values are trimmed first.
func (b *SegmentBuilder) AddComponent(values ...interface{}) *SegmentBuilder {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, b.stringify(v))
	}
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	b.elements = append(b.elements, strings.Join(parts, b.seps.Component))
	return b
}

func (b *SegmentBuilder) stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return b.seps.Sanitize(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case decimal.Decimal:
		return v.StringFixed(2)
	default:
		return b.seps.Sanitize(fmt.Sprint(v))
	}
}

// Build drops trailing empty elements, joins identifier and elements with the
// element separator, and appends the segment terminator.
func (b *SegmentBuilder) Build() string {
	elems := b.elements
	for len(elems) > 0 && elems[len(elems)-1] == "" {
		elems = elems[:len(elems)-1]
	}

	var sb strings.Builder
	sb.WriteString(b.id)
	for _, e := range elems {
		sb.WriteString(b.seps.Element)
		sb.WriteString(e)
	}
	sb.WriteString(b.seps.Segment)
	if b.lineBreak {
		sb.WriteByte('\n')
	}
	return sb.String()
}
