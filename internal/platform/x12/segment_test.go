package x12

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestBuild_JoinsElementsAndTerminates(t *testing.T) {
	seg := NewSegment("NM1", DefaultSeparators()).
		Add("85").
		Add("2").
		Add("ACME MEDICAL GROUP").
		Build()

	if seg != "NM1*85*2*ACME MEDICAL GROUP~" {
		t.Errorf("unexpected segment: %q", seg)
	}
}

func TestBuild_TrimsTrailingEmptyElements(t *testing.T) {
	seg := NewSegment("REF", DefaultSeparators()).
		Add("EI").
		Add("123456789").
		Add("").
		Add("").
		Build()

	if seg != "REF*EI*123456789~" {
		t.Errorf("expected trailing empties removed, got %q", seg)
	}
}

func TestBuild_KeepsInteriorEmptyElements(t *testing.T) {
	seg := NewSegment("NM1", DefaultSeparators()).
		Add("IL").
		Add("1").
		Add("DOE").
		Add("JANE").
		Add("").
		Add("").
		Add("").
		Add("MI").
		Add("MEM123").
		Build()

	if seg != "NM1*IL*1*DOE*JANE****MI*MEM123~" {
		t.Errorf("unexpected segment: %q", seg)
	}
}

func TestAdd_StripsReservedCharacters(t *testing.T) {
	seg := NewSegment("N3", DefaultSeparators()).
		Add("123 MAIN ST ~*:^ APT 2").
		Build()

	for _, reserved := range []string{"~", "*", ":", "^"} {
		body := strings.TrimSuffix(strings.TrimPrefix(seg, "N3*"), "~")
		if strings.Contains(body, reserved) {
			t.Errorf("reserved character %q leaked into element data: %q", reserved, seg)
		}
	}
	if !strings.Contains(seg, "123 MAIN ST") {
		t.Errorf("expected street preserved, got %q", seg)
	}
}

func TestAdd_NumericValues(t *testing.T) {
	seg := NewSegment("SV1", DefaultSeparators()).
		Add("UN").
		Add(3).
		Add(decimal.NewFromFloat(120)).
		Build()

	if seg != "SV1*UN*3*120.00~" {
		t.Errorf("unexpected segment: %q", seg)
	}
}

func TestAddComponent_JoinsWithComponentSeparator(t *testing.T) {
	seg := NewSegment("SV1", DefaultSeparators()).
		AddComponent("HC", "99213", "25").
		Build()

	if seg != "SV1*HC:99213:25~" {
		t.Errorf("unexpected segment: %q", seg)
	}
}

func TestAddComponent_TrimsTrailingEmptySubValues(t *testing.T) {
	seg := NewSegment("HI", DefaultSeparators()).
		AddComponent("ABK", "E119", "", "").
		Build()

	if seg != "HI*ABK:E119~" {
		t.Errorf("unexpected segment: %q", seg)
	}
}

func TestBuild_CustomSeparators(t *testing.T) {
	seps := Separators{Element: "|", Segment: "\\", Component: ">", Repetition: "!"}
	seg := NewSegment("ST", seps).
		Add("837").
		AddComponent("005010X222A1", "X").
		Build()

	if seg != "ST|837|005010X222A1>X\\" {
		t.Errorf("unexpected segment: %q", seg)
	}
}

func TestBuild_LineBreak(t *testing.T) {
	seg := NewSegment("SE", DefaultSeparators()).
		LineBreak(true).
		Add(25).
		Add("0001").
		Build()

	if seg != "SE*25*0001~\n" {
		t.Errorf("unexpected segment: %q", seg)
	}
}

func TestSanitize(t *testing.T) {
	seps := DefaultSeparators()
	tests := []struct {
		input    string
		expected string
	}{
		{"plain", "plain"},
		{"  padded  ", "padded"},
		{"a*b", "ab"},
		{"a~b", "ab"},
		{"a:b", "ab"},
		{"a^b", "ab"},
		{"*~:^", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := seps.Sanitize(tt.input); got != tt.expected {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
