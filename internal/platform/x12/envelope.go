package x12

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Envelope segment identifiers.
const (
	ISASegmentID = "ISA"
	IEASegmentID = "IEA"
	GSSegmentID  = "GS"
	GESegmentID  = "GE"
	STSegmentID  = "ST"
	SESegmentID  = "SE"
	HLSegmentID  = "HL"
)

// ISA elements are fixed width, left-aligned, space padded. The interchange
// header is the only X12 segment with positional byte semantics.
const (
	ISALenAuthInfoQualifier     = 2
	ISALenAuthInfo              = 10
	ISALenSecurityInfoQualifier = 2
	ISALenSecurityInfo          = 10
	ISALenSenderIDQualifier     = 2
	ISALenSenderID              = 15
	ISALenReceiverIDQualifier   = 2
	ISALenReceiverID            = 15
	ISALenControlNumber         = 9
	ISALenVersion               = 5
)

// Control number widths for the three envelope levels.
const (
	InterchangeControlDigits = 9
	GroupControlDigits       = 9
	TransactionControlDigits = 4
)

// FunctionalIDHealthcareClaim is the GS01 functional identifier code for an
// 837 transaction set.
const FunctionalIDHealthcareClaim = "HC"

// PadISA left-aligns a value in a fixed-width ISA element, truncating when
// too long and space-padding when too short.
func PadISA(value string, width int) string {
	if len(value) > width {
		return value[:width]
	}
	return value + strings.Repeat(" ", width-len(value))
}

// PadControlNumber renders a control number as a zero-padded decimal string
// of the given width. Numbers wider than the field are truncated to their
// low-order digits so the envelope stays structurally valid.
func PadControlNumber(n int64, width int) string {
	s := fmt.Sprintf("%0*d", width, n)
	if len(s) > width {
		s = s[len(s)-width:]
	}
	return s
}

// FormatDate renders a date as CCYYMMDD, the format used everywhere outside
// the ISA header.
func FormatDate(t time.Time) string {
	return t.Format("20060102")
}

// FormatShortDate renders a date as YYMMDD for ISA09.
func FormatShortDate(t time.Time) string {
	return t.Format("060102")
}

// FormatTime renders a time as HHMM.
func FormatTime(t time.Time) string {
	return t.Format("1504")
}

// FormatDateRange renders a from-through pair as CCYYMMDD-CCYYMMDD, the RD8
// format used by statement and service period DTP segments.
func FormatDateRange(from, through time.Time) string {
	return FormatDate(from) + "-" + FormatDate(through)
}

// FormatAmount renders a monetary amount with exactly two decimal places.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
