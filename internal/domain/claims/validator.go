package claims

import (
	"fmt"
	"strings"
	"time"
)

// Severity splits validation findings into submission blockers and advisories.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationIssue is one finding. Code is stable and machine-matchable,
// Field is a dotted path into the claim ("service_lines[2].modifiers"), and
// Message is for humans.
type ValidationIssue struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Field    string   `json:"field"`
	Severity Severity `json:"severity"`
}

// ValidationResult is the outcome of running a claim through the validator.
// Valid is true exactly when Errors is empty; warnings never block submission.
type ValidationResult struct {
	Valid    bool              `json:"isValid"`
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
}

func (r *ValidationResult) addError(code, field, format string, args ...interface{}) {
	r.Errors = append(r.Errors, ValidationIssue{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Field:    field,
		Severity: SeverityError,
	})
}

func (r *ValidationResult) addWarning(code, field, format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, ValidationIssue{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Field:    field,
		Severity: SeverityWarning,
	})
}

func (r *ValidationResult) finish() {
	if r.Errors == nil {
		r.Errors = []ValidationIssue{}
	}
	if r.Warnings == nil {
		r.Warnings = []ValidationIssue{}
	}
	r.Valid = len(r.Errors) == 0
}

// Stable issue codes. API clients match on these, so they are append-only.
const (
	CodeMissingRequiredField       = "MISSING_REQUIRED_FIELD"
	CodeFieldTooLong               = "FIELD_TOO_LONG"
	CodeInvalidNPI                 = "INVALID_NPI"
	CodeInvalidTaxID               = "INVALID_TAX_ID"
	CodeInvalidDiagnosisCode       = "INVALID_DIAGNOSIS_CODE"
	CodeInvalidDiagnosisQualifier  = "INVALID_DIAGNOSIS_QUALIFIER"
	CodeInvalidProcedureCode       = "INVALID_PROCEDURE_CODE"
	CodeInvalidRevenueCode         = "INVALID_REVENUE_CODE"
	CodeInvalidModifier            = "INVALID_MODIFIER"
	CodeDuplicateModifier          = "DUPLICATE_MODIFIER"
	CodeTooManyModifiers           = "TOO_MANY_MODIFIERS"
	CodeMutuallyExclusiveModifiers = "MUTUALLY_EXCLUSIVE_MODIFIERS"
	CodeInvalidDiagnosisPointer    = "INVALID_DIAGNOSIS_POINTER"
	CodeMissingDiagnosisPointer    = "MISSING_DIAGNOSIS_POINTER"
	CodeTooManyDiagnosisPointers   = "TOO_MANY_DIAGNOSIS_POINTERS"
	CodeInvalidUnits               = "INVALID_UNITS"
	CodeInvalidChargeAmount        = "INVALID_CHARGE_AMOUNT"
	CodeMissingOriginalClaim       = "MISSING_ORIGINAL_CLAIM_NUMBER"
	CodeMissingStatementDates      = "MISSING_STATEMENT_DATES"
	CodeMissingServiceLines        = "MISSING_SERVICE_LINES"
	CodeMissingTotalRevenueLine    = "MISSING_TOTAL_REVENUE_LINE"
	CodeFrequentlyDeniedDiagnosis  = "FREQUENTLY_DENIED_DIAGNOSIS"
	CodeUnspecifiedDiagnosis       = "UNSPECIFIED_DIAGNOSIS"
	CodeTimelyFilingExceeded       = "TIMELY_FILING_EXCEEDED"
	CodeApproachingFilingDeadline  = "APPROACHING_FILING_DEADLINE"
	CodeFutureServiceDate          = "FUTURE_SERVICE_DATE"
)

// maxPatientControlNumberLen is the CLM01 limit.
const maxPatientControlNumberLen = 20

// Validator runs the pre-submission rule pipeline over a claim. It is
// stateless and safe for concurrent use; the clock is injectable so
// timely-filing rules can be tested against a fixed date.
type Validator struct {
	now func() time.Time
}

// NewValidator returns a validator using the wall clock.
func NewValidator() *Validator {
	return &Validator{now: time.Now}
}

// NewValidatorAt returns a validator whose "today" is fixed, for
// deterministic timely-filing evaluation.
func NewValidatorAt(now func() time.Time) *Validator {
	return &Validator{now: now}
}

// ValidateProfessional runs every rule applicable to an 837P claim and
// returns the collected findings. It never mutates the claim.
func (v *Validator) ValidateProfessional(c *ProfessionalClaim) ValidationResult {
	var res ValidationResult

	v.checkHeader(&res, &c.Header)
	v.checkBillingProvider(&res, &c.Billing)
	v.checkOptionalProvider(&res, c.RenderingProvider, "rendering_provider")
	v.checkOptionalProvider(&res, c.ReferringProvider, "referring_provider")
	v.checkOptionalProvider(&res, c.ServiceFacility, "service_facility")
	v.checkSubscriber(&res, &c.Subscriber)
	v.checkPatient(&res, &c.Patient)
	v.checkPayer(&res, &c.Payer)
	v.checkDiagnoses(&res, &c.Diagnoses, false)

	if len(c.ServiceLines) == 0 {
		res.addError(CodeMissingServiceLines, "service_lines",
			"claim has no service lines")
	}
	pointerMax := c.Diagnoses.PointerCount()
	for i := range c.ServiceLines {
		v.checkServiceLine(&res, &c.ServiceLines[i], i, pointerMax)
	}

	v.checkTimelyFiling(&res, c.Payer.FilingIndicatorCode, earliestProfessionalDate(c))

	res.finish()
	return res
}

// ValidateInstitutional runs every rule applicable to an 837I claim.
func (v *Validator) ValidateInstitutional(c *InstitutionalClaim) ValidationResult {
	var res ValidationResult

	v.checkHeader(&res, &c.Header)
	v.checkInstitutionalHeader(&res, &c.Header)
	v.checkBillingProvider(&res, &c.Billing)
	v.checkOptionalProvider(&res, c.AttendingProvider, "attending_provider")
	v.checkOptionalProvider(&res, c.OperatingProvider, "operating_provider")
	v.checkOptionalProvider(&res, c.ServiceFacility, "service_facility")
	v.checkSubscriber(&res, &c.Subscriber)
	v.checkPatient(&res, &c.Patient)
	v.checkPayer(&res, &c.Payer)
	v.checkDiagnoses(&res, &c.Diagnoses, true)
	v.checkRevenueLines(&res, c)

	v.checkTimelyFiling(&res, c.Payer.FilingIndicatorCode, earliestInstitutionalDate(c))

	res.finish()
	return res
}

func (v *Validator) checkHeader(res *ValidationResult, h *ClaimHeader) {
	if h.PatientControlNumber == "" {
		res.addError(CodeMissingRequiredField, "header.patient_control_number",
			"patient control number is required")
	} else if len(h.PatientControlNumber) > maxPatientControlNumberLen {
		res.addError(CodeFieldTooLong, "header.patient_control_number",
			"patient control number exceeds %d characters", maxPatientControlNumberLen)
	}
	if h.TotalChargeAmount.IsNegative() {
		res.addError(CodeInvalidChargeAmount, "header.total_charge_amount",
			"total charge amount must not be negative")
	}
	if h.FrequencyCode.RequiresOriginalClaim() && h.OriginalClaimNumber == "" {
		res.addError(CodeMissingOriginalClaim, "header.original_claim_number",
			"frequency code %s requires the original claim number", h.FrequencyCode)
	}
}

func (v *Validator) checkInstitutionalHeader(res *ValidationResult, h *ClaimHeader) {
	if h.StatementFromDate == nil || h.StatementThroughDate == nil {
		res.addError(CodeMissingStatementDates, "header.statement_from_date",
			"institutional claims require statement from and through dates")
		return
	}
	if h.StatementThroughDate.Before(*h.StatementFromDate) {
		res.addError(CodeMissingStatementDates, "header.statement_through_date",
			"statement through date precedes statement from date")
	}
}

func (v *Validator) checkBillingProvider(res *ValidationResult, b *BillingProvider) {
	if b.LastNameOrOrg == "" {
		res.addError(CodeMissingRequiredField, "billing.last_name_or_org",
			"billing provider name is required")
	}
	if b.NPI == "" {
		res.addError(CodeMissingRequiredField, "billing.npi",
			"billing provider NPI is required")
	} else if !ValidNPI(b.NPI) {
		res.addError(CodeInvalidNPI, "billing.npi",
			"billing provider NPI %q fails the check-digit validation", b.NPI)
	}
	if b.TaxID == "" {
		res.addError(CodeMissingRequiredField, "billing.tax_id",
			"billing provider tax ID is required")
	} else if !ValidTaxID(b.TaxID) {
		res.addError(CodeInvalidTaxID, "billing.tax_id",
			"billing provider tax ID must be exactly 9 digits")
	}
	if b.Address.Empty() {
		res.addError(CodeMissingRequiredField, "billing.address",
			"billing provider address is required")
	}
}

func (v *Validator) checkOptionalProvider(res *ValidationResult, p *Provider, field string) {
	if p == nil {
		return
	}
	if p.NPI != "" && !ValidNPI(p.NPI) {
		res.addError(CodeInvalidNPI, field+".npi",
			"%s NPI %q fails the check-digit validation", strings.ReplaceAll(field, "_", " "), p.NPI)
	}
	if p.TaxID != "" && !ValidTaxID(p.TaxID) {
		res.addError(CodeInvalidTaxID, field+".tax_id",
			"%s tax ID must be exactly 9 digits", strings.ReplaceAll(field, "_", " "))
	}
}

func (v *Validator) checkSubscriber(res *ValidationResult, s *SubscriberInfo) {
	if s.LastName == "" {
		res.addError(CodeMissingRequiredField, "subscriber.last_name",
			"subscriber last name is required")
	}
	if s.MemberID == "" {
		res.addError(CodeMissingRequiredField, "subscriber.member_id",
			"subscriber member ID is required")
	}
	if s.DateOfBirth.IsZero() {
		res.addError(CodeMissingRequiredField, "subscriber.date_of_birth",
			"subscriber date of birth is required")
	}
	if s.Gender == "" {
		res.addError(CodeMissingRequiredField, "subscriber.gender",
			"subscriber gender is required")
	}
	if s.Address.Empty() {
		res.addError(CodeMissingRequiredField, "subscriber.address",
			"subscriber address is required")
	}
}

func (v *Validator) checkPatient(res *ValidationResult, p *PatientInfo) {
	if p.RelationshipToSubscriber == "" {
		res.addError(CodeMissingRequiredField, "patient.relationship_to_subscriber",
			"relationship to subscriber is required")
		return
	}
	// The subscriber's demographics stand in for the patient on self claims.
	if p.IsSubscriber() {
		return
	}
	if p.LastName == "" {
		res.addError(CodeMissingRequiredField, "patient.last_name",
			"patient last name is required when the patient is not the subscriber")
	}
	if p.DateOfBirth.IsZero() {
		res.addError(CodeMissingRequiredField, "patient.date_of_birth",
			"patient date of birth is required when the patient is not the subscriber")
	}
	if p.Gender == "" {
		res.addError(CodeMissingRequiredField, "patient.gender",
			"patient gender is required when the patient is not the subscriber")
	}
	if p.Address.Empty() {
		res.addError(CodeMissingRequiredField, "patient.address",
			"patient address is required when the patient is not the subscriber")
	}
}

func (v *Validator) checkPayer(res *ValidationResult, p *PayerInfo) {
	if p.PayerID == "" {
		res.addError(CodeMissingRequiredField, "payer.payer_id",
			"payer ID is required")
	}
	if p.Name == "" {
		res.addError(CodeMissingRequiredField, "payer.name",
			"payer name is required")
	}
	if p.FilingIndicatorCode == "" {
		res.addError(CodeMissingRequiredField, "payer.filing_indicator_code",
			"claim filing indicator code is required")
	}
}

func (v *Validator) checkDiagnoses(res *ValidationResult, d *DiagnosisSet, institutional bool) {
	v.checkDiagnosis(res, d.Principal, "diagnoses.principal")
	for i, dx := range d.Secondary {
		v.checkDiagnosis(res, dx, fmt.Sprintf("diagnoses.secondary[%d]", i))
	}
	if institutional {
		if d.Admitting != nil {
			v.checkDiagnosis(res, *d.Admitting, "diagnoses.admitting")
		}
		for i, dx := range d.PatientReason {
			v.checkDiagnosis(res, dx, fmt.Sprintf("diagnoses.patient_reason[%d]", i))
		}
		for i, dx := range d.ExternalCause {
			v.checkDiagnosis(res, dx, fmt.Sprintf("diagnoses.external_cause[%d]", i))
		}
	}
}

func (v *Validator) checkDiagnosis(res *ValidationResult, d Diagnosis, field string) {
	if d.Code == "" {
		res.addError(CodeMissingRequiredField, field+".code",
			"diagnosis code is required")
		return
	}
	if d.Qualifier != "" && !d.Qualifier.Valid() {
		res.addError(CodeInvalidDiagnosisQualifier, field+".qualifier",
			"unknown diagnosis qualifier %q", string(d.Qualifier))
		return
	}

	system := d.Qualifier.CodeSystem()
	if system == CodeSystemUnknown {
		system = CodeSystemICD10CM
	}
	switch system {
	case CodeSystemICD10CM:
		if !ValidICD10CM(d.Code) {
			res.addError(CodeInvalidDiagnosisCode, field+".code",
				"%q is not a well-formed ICD-10-CM code", d.Code)
			return
		}
	case CodeSystemICD10PCS:
		if !ValidICD10PCS(d.Code) {
			res.addError(CodeInvalidDiagnosisCode, field+".code",
				"%q is not a well-formed ICD-10-PCS code", d.Code)
			return
		}
	}

	if desc := DeniedDiagnosis(d.Code); desc != "" {
		res.addWarning(CodeFrequentlyDeniedDiagnosis, field+".code",
			"diagnosis %s (%s) is frequently denied by payers", d.Code, desc)
	} else if system == CodeSystemICD10CM && UnspecifiedDiagnosis(d.Code) {
		res.addWarning(CodeUnspecifiedDiagnosis, field+".code",
			"diagnosis %s is an unspecified code; a more specific code reduces denial risk", d.Code)
	}
}

func (v *Validator) checkServiceLine(res *ValidationResult, line *ProcedureInfo, idx, pointerMax int) {
	field := fmt.Sprintf("service_lines[%d]", idx)

	if line.ProcedureCode == "" {
		res.addError(CodeMissingRequiredField, field+".procedure_code",
			"service line %d is missing a procedure code", idx+1)
	} else if !ValidProcedureCode(line.ProcedureCode) {
		res.addError(CodeInvalidProcedureCode, field+".procedure_code",
			"%q is not a valid CPT or HCPCS code", line.ProcedureCode)
	}

	v.checkModifiers(res, line.Modifiers, field)
	v.checkUnitsAndCharge(res, line.Units, line.ChargeAmount.IsNegative(), field)
	v.checkPointers(res, line.DiagnosisPointers, pointerMax, field, true)
	v.checkServiceDate(res, line.ServiceDate, field)
}

func (v *Validator) checkRevenueLines(res *ValidationResult, c *InstitutionalClaim) {
	if len(c.RevenueLines) == 0 {
		res.addError(CodeMissingServiceLines, "revenue_lines",
			"institutional claim has no revenue code lines")
		return
	}

	pointerMax := c.Diagnoses.PointerCount()
	hasTotal := false
	for i := range c.RevenueLines {
		line := &c.RevenueLines[i]
		field := fmt.Sprintf("revenue_lines[%d]", i)

		if !ValidRevenueCode(line.RevenueCode) {
			res.addError(CodeInvalidRevenueCode, field+".revenue_code",
				"%q is not a 4-digit revenue code", line.RevenueCode)
		} else if line.RevenueCode == RevenueCodeTotalCharges {
			hasTotal = true
		}
		if line.ProcedureCode != "" && !ValidProcedureCode(line.ProcedureCode) {
			res.addError(CodeInvalidProcedureCode, field+".procedure_code",
				"%q is not a valid CPT or HCPCS code", line.ProcedureCode)
		}

		v.checkModifiers(res, line.Modifiers, field)
		v.checkUnitsAndCharge(res, line.Units, line.ChargeAmount.IsNegative(), field)
		v.checkPointers(res, line.DiagnosisPointers, pointerMax, field, false)
		v.checkServiceDate(res, line.ServiceDate, field)
	}

	if !hasTotal {
		res.addWarning(CodeMissingTotalRevenueLine, "revenue_lines",
			"claim is missing the %s total charges revenue line", RevenueCodeTotalCharges)
	}
}

func (v *Validator) checkModifiers(res *ValidationResult, modifiers []string, field string) {
	if len(modifiers) > MaxModifiersPerLine {
		res.addError(CodeTooManyModifiers, field+".modifiers",
			"at most %d modifiers are allowed per line", MaxModifiersPerLine)
	}
	seen := make(map[string]bool, len(modifiers))
	for _, m := range modifiers {
		if !ValidModifier(m) {
			res.addError(CodeInvalidModifier, field+".modifiers",
				"modifier %q must be two uppercase alphanumerics", m)
			continue
		}
		if seen[m] {
			res.addError(CodeDuplicateModifier, field+".modifiers",
				"modifier %s appears more than once", m)
		}
		seen[m] = true
	}
	if pair, ok := ExclusiveModifierPair(modifiers); ok {
		res.addError(CodeMutuallyExclusiveModifiers, field+".modifiers",
			"modifiers %s and %s are mutually exclusive", pair[0], pair[1])
	}
}

func (v *Validator) checkUnitsAndCharge(res *ValidationResult, units int, negativeCharge bool, field string) {
	if units < 1 {
		res.addError(CodeInvalidUnits, field+".units",
			"units must be at least 1")
	}
	if negativeCharge {
		res.addError(CodeInvalidChargeAmount, field+".charge_amount",
			"charge amount must not be negative")
	}
}

// checkPointers validates diagnosis pointers against the pointer-addressable
// diagnosis list. An out-of-range pointer is a validation error, never a
// formatting fault.
func (v *Validator) checkPointers(res *ValidationResult, pointers []int, max int, field string, required bool) {
	if len(pointers) == 0 {
		if required {
			res.addError(CodeMissingDiagnosisPointer, field+".diagnosis_pointers",
				"each service line must point at one or more diagnoses")
		}
		return
	}
	if len(pointers) > MaxDiagnosisPointers {
		res.addError(CodeTooManyDiagnosisPointers, field+".diagnosis_pointers",
			"at most %d diagnosis pointers are allowed per line", MaxDiagnosisPointers)
	}
	for _, p := range pointers {
		if p < 1 || p > max {
			res.addError(CodeInvalidDiagnosisPointer, field+".diagnosis_pointers",
				"diagnosis pointer %d is out of range 1..%d", p, max)
		}
	}
}

func (v *Validator) checkServiceDate(res *ValidationResult, d time.Time, field string) {
	if d.IsZero() {
		res.addError(CodeMissingRequiredField, field+".service_date",
			"service date is required")
		return
	}
	if d.After(v.now()) {
		res.addWarning(CodeFutureServiceDate, field+".service_date",
			"service date %s is in the future", d.Format("2006-01-02"))
	}
}

// checkTimelyFiling compares the elapsed days since the earliest service
// date against the payer class's filing window. Exceeding the window is an
// error; entering the last 10% of it is a warning.
func (v *Validator) checkTimelyFiling(res *ValidationResult, filingIndicator string, earliest time.Time) {
	if earliest.IsZero() {
		return
	}
	now := v.now()
	if earliest.After(now) {
		return // future dates are flagged per line
	}

	limit := FilingLimitDays(filingIndicator)
	elapsed := int(now.Sub(earliest).Hours() / 24)

	switch {
	case elapsed > limit:
		res.addError(CodeTimelyFilingExceeded, "service_lines",
			"earliest service date is %d days old, beyond the %d-day filing limit for %s",
			elapsed, limit, filingIndicator)
	case float64(elapsed) >= float64(limit)*0.9:
		res.addWarning(CodeApproachingFilingDeadline, "service_lines",
			"earliest service date is %d days old, within 10%% of the %d-day filing limit",
			elapsed, limit)
	}
}

func earliestProfessionalDate(c *ProfessionalClaim) time.Time {
	var earliest time.Time
	for _, line := range c.ServiceLines {
		if line.ServiceDate.IsZero() {
			continue
		}
		if earliest.IsZero() || line.ServiceDate.Before(earliest) {
			earliest = line.ServiceDate
		}
	}
	return earliest
}

func earliestInstitutionalDate(c *InstitutionalClaim) time.Time {
	if c.Header.StatementFromDate != nil {
		return *c.Header.StatementFromDate
	}
	var earliest time.Time
	for _, line := range c.RevenueLines {
		if line.ServiceDate.IsZero() {
			continue
		}
		if earliest.IsZero() || line.ServiceDate.Before(earliest) {
			earliest = line.ServiceDate
		}
	}
	return earliest
}
