package claims

import (
	"regexp"
	"strings"
)

// Code format patterns. ICD-10-CM is checked with the decimal point removed;
// ICD-10-PCS never uses the letters I, L or O.
var (
	icd10cmPattern  = regexp.MustCompile(`^[A-TV-Z][0-9]{2}[0-9A-Z]{0,4}$`)
	icd10pcsPattern = regexp.MustCompile(`^[0-9A-HJ-KM-NP-Z]{7}$`)
	cptPattern      = regexp.MustCompile(`^[0-9]{5}$`)
	hcpcsPattern    = regexp.MustCompile(`^[A-V][0-9]{4}$`)
	revenuePattern  = regexp.MustCompile(`^[0-9]{4}$`)
	modifierPattern = regexp.MustCompile(`^[A-Z0-9]{2}$`)
)

// NormalizeDiagnosisCode uppercases a diagnosis code and removes the decimal
// point, which is display formatting only and never transmitted.
func NormalizeDiagnosisCode(code string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), ".", ""))
}

// ValidICD10CM reports whether code is a well-formed ICD-10-CM diagnosis
// code: a letter other than U, two digits, then up to four alphanumerics
// (3 to 7 characters with the decimal point ignored).
func ValidICD10CM(code string) bool {
	return icd10cmPattern.MatchString(NormalizeDiagnosisCode(code))
}

// ValidICD10PCS reports whether code is a well-formed ICD-10-PCS procedure
// code: exactly 7 alphanumerics drawn from the PCS character set.
func ValidICD10PCS(code string) bool {
	return icd10pcsPattern.MatchString(strings.ToUpper(strings.TrimSpace(code)))
}

// ValidProcedureCode reports whether code is a well-formed CPT code
// (5 digits) or HCPCS Level II code (letter A-V plus 4 digits).
func ValidProcedureCode(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	return cptPattern.MatchString(code) || hcpcsPattern.MatchString(code)
}

// ValidRevenueCode reports whether code is a 4-digit revenue code.
func ValidRevenueCode(code string) bool {
	return revenuePattern.MatchString(code)
}

// ValidModifier reports whether m is a well-formed procedure modifier.
func ValidModifier(m string) bool {
	return modifierPattern.MatchString(m)
}

// RevenueCodeTotalCharges is the summary revenue line payers expect on every
// institutional claim.
const RevenueCodeTotalCharges = "0001"

// deniedDiagnosisCodes are codes that payers reject so consistently that
// submitting them is almost always a data-entry problem upstream.
var deniedDiagnosisCodes = map[string]string{
	"R69":   "illness, unspecified",
	"Z719":  "counseling, unspecified",
	"R6889": "other general symptoms and signs",
	"Z0000": "encounter for general exam without abnormal findings",
}

// DeniedDiagnosis returns the description of a chronically denied diagnosis
// code, or "" when the code is not on the denylist. Codes are compared with
// the decimal point removed.
func DeniedDiagnosis(code string) string {
	return deniedDiagnosisCodes[NormalizeDiagnosisCode(code)]
}

// UnspecifiedDiagnosis reports whether a diagnosis code looks like an
// "unspecified" variant: four or more characters ending in 9. These pass
// format checks but invite medical-necessity denials.
func UnspecifiedDiagnosis(code string) bool {
	c := NormalizeDiagnosisCode(code)
	return len(c) >= 4 && strings.HasSuffix(c, "9")
}

// exclusiveModifierPairs lists modifier combinations that contradict each
// other on a single service line.
var exclusiveModifierPairs = [][2]string{
	{"26", "TC"},
	{"LT", "RT"},
	{"50", "LT"},
	{"50", "RT"},
	{"51", "59"},
	{"76", "77"},
}

// ExclusiveModifierPair returns the first mutually exclusive pair present in
// the modifier list, or ok=false when none conflict.
func ExclusiveModifierPair(modifiers []string) (pair [2]string, ok bool) {
	present := make(map[string]bool, len(modifiers))
	for _, m := range modifiers {
		present[strings.ToUpper(m)] = true
	}
	for _, p := range exclusiveModifierPairs {
		if present[p[0]] && present[p[1]] {
			return p, true
		}
	}
	return [2]string{}, false
}

// MaxModifiersPerLine is the SV1/SV2 composite limit.
const MaxModifiersPerLine = 4

// MaxDiagnosisPointers is the SV107 composite limit.
const MaxDiagnosisPointers = 4

// defaultFilingLimitDays applies when the filing indicator has no specific
// entry in the table below.
const defaultFilingLimitDays = 365

// filingLimitDays maps SBR09 claim filing indicator codes to the payer
// class's typical timely filing window in days from the earliest service
// date. These are conservative industry defaults, not per-contract values.
var filingLimitDays = map[string]int{
	"CI": 90,  // commercial insurance
	"HM": 90,  // HMO
	"BL": 180, // Blue Cross / Blue Shield
	"WC": 180, // workers' compensation
	"MA": 365, // Medicare Part A
	"MB": 365, // Medicare Part B
	"MC": 365, // Medicaid
	"CH": 365, // TRICARE
	"09": 365, // self-pay
}

// FilingLimitDays returns the timely filing window for a claim filing
// indicator code, falling back to the 365-day default.
func FilingLimitDays(filingIndicator string) int {
	if days, ok := filingLimitDays[strings.ToUpper(filingIndicator)]; ok {
		return days
	}
	return defaultFilingLimitDays
}
