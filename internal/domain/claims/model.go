// Package claims holds the X12 837 claims engine: the claim data model,
// the pre-submission validator, the 837P/837I formatter, and the
// submission workflow that ties them to storage and transport metadata.
package claims

import (
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

// EntityType distinguishes a person from an organization in NM1 segments.
type EntityType string

const (
	EntityPerson       EntityType = "1"
	EntityOrganization EntityType = "2"
)

// FrequencyCode is the claim frequency (CLM05-3): original, replacement or void.
type FrequencyCode string

const (
	FrequencyOriginal    FrequencyCode = "1"
	FrequencyReplacement FrequencyCode = "7"
	FrequencyVoid        FrequencyCode = "8"
)

// RequiresOriginalClaim reports whether this frequency references a prior
// claim (replacement and void both do).
func (f FrequencyCode) RequiresOriginalClaim() bool {
	return f == FrequencyReplacement || f == FrequencyVoid
}

// UsageIndicator is ISA15: production, test, or information/interop.
type UsageIndicator string

const (
	UsageProduction UsageIndicator = "P"
	UsageTest       UsageIndicator = "T"
	UsageInterop    UsageIndicator = "I"
)

// CodeSystem identifies the coding system a diagnosis or procedure code
// belongs to, derived from its qualifier.
type CodeSystem int

const (
	CodeSystemUnknown CodeSystem = iota
	CodeSystemICD10CM
	CodeSystemICD10PCS
)

// DiagnosisQualifier is the HI composite qualifier for a diagnosis. It is a
// closed set: the validator and formatter switch over it exhaustively so a
// new qualifier cannot silently fall through.
type DiagnosisQualifier string

const (
	// Professional (and shared) qualifiers.
	QualPrincipalICD10CM DiagnosisQualifier = "ABK"
	QualOtherICD10CM     DiagnosisQualifier = "ABF"
	QualICD10PCS         DiagnosisQualifier = "ABJ"

	// Institutional HI qualifiers.
	QualInstPrincipal     DiagnosisQualifier = "BK"
	QualInstAdmitting     DiagnosisQualifier = "BJ"
	QualInstOther         DiagnosisQualifier = "BF"
	QualInstReasonVisit   DiagnosisQualifier = "PR"
	QualInstExternalCause DiagnosisQualifier = "BN"
)

// CodeSystem maps the qualifier to the coding system its code must conform to.
func (q DiagnosisQualifier) CodeSystem() CodeSystem {
	switch q {
	case QualPrincipalICD10CM, QualOtherICD10CM,
		QualInstPrincipal, QualInstAdmitting, QualInstOther,
		QualInstReasonVisit, QualInstExternalCause:
		return CodeSystemICD10CM
	case QualICD10PCS:
		return CodeSystemICD10PCS
	default:
		return CodeSystemUnknown
	}
}

// Valid reports whether q is one of the known qualifiers.
func (q DiagnosisQualifier) Valid() bool {
	return q.CodeSystem() != CodeSystemUnknown
}

// Address is a postal address rendered into N3/N4 segments.
type Address struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2,omitempty"`
	City  string `json:"city"`
	State string `json:"state"`
	ZIP   string `json:"zip"`
}

// Empty reports whether no address component is populated.
func (a Address) Empty() bool {
	return a.Line1 == "" && a.City == "" && a.State == "" && a.ZIP == ""
}

// Provider describes any provider role on a claim: billing, rendering,
// referring, attending, operating, or service facility. LastNameOrOrg holds
// the organization name when EntityType is EntityOrganization.
type Provider struct {
	EntityType    EntityType `json:"entity_type"`
	LastNameOrOrg string     `json:"last_name_or_org"`
	FirstName     string     `json:"first_name,omitempty"`
	MiddleName    string     `json:"middle_name,omitempty"`
	NPI           string     `json:"npi"`
	TaxID         string     `json:"tax_id,omitempty"`
	TaxonomyCode  string     `json:"taxonomy_code,omitempty"`
	Address       Address    `json:"address"`
}

// BillingProvider is the 2010AA provider. It may bill from one address and
// receive payment at another (2010AB pay-to loop).
type BillingProvider struct {
	Provider
	PayToAddress *Address `json:"pay_to_address,omitempty"`
}

// RelationshipSelf is the relationship-to-subscriber code meaning the patient
// is the subscriber. When it applies, the patient hierarchical level and
// loop 2010CA are omitted entirely.
const RelationshipSelf = "18"

// PatientInfo identifies the patient when they are not the subscriber.
type PatientInfo struct {
	LastName                 string    `json:"last_name"`
	FirstName                string    `json:"first_name"`
	MiddleName               string    `json:"middle_name,omitempty"`
	DateOfBirth              time.Time `json:"date_of_birth"`
	Gender                   string    `json:"gender"` // M, F, U
	Address                  Address   `json:"address"`
	RelationshipToSubscriber string    `json:"relationship_to_subscriber"`
}

// IsSubscriber reports whether the patient is the subscriber (code 18).
func (p PatientInfo) IsSubscriber() bool {
	return p.RelationshipToSubscriber == RelationshipSelf
}

// SubscriberInfo identifies the insured member (loop 2010BA).
type SubscriberInfo struct {
	LastName    string    `json:"last_name"`
	FirstName   string    `json:"first_name"`
	MiddleName  string    `json:"middle_name,omitempty"`
	DateOfBirth time.Time `json:"date_of_birth"`
	Gender      string    `json:"gender"`
	Address     Address   `json:"address"`
	MemberID    string    `json:"member_id"`
	GroupNumber string    `json:"group_number,omitempty"`
}

// PayerInfo identifies the destination payer (loop 2010BB). The filing
// indicator code (SBR09) drives the timely-filing limit.
type PayerInfo struct {
	PayerID             string  `json:"payer_id"`
	Name                string  `json:"name"`
	FilingIndicatorCode string  `json:"filing_indicator_code"`
	Address             Address `json:"address,omitempty"`
}

// Diagnosis is one code plus the HI qualifier it is reported under.
type Diagnosis struct {
	Code      string             `json:"code"`
	Qualifier DiagnosisQualifier `json:"qualifier"`
}

// DiagnosisSet holds the claim's diagnoses. Principal is required; the
// admitting, patient-reason and external-cause categories apply to
// institutional claims only. Service-line diagnosis pointers index into the
// pointer list: position 1 is the principal, positions 2..n the secondaries.
type DiagnosisSet struct {
	Principal     Diagnosis   `json:"principal"`
	Secondary     []Diagnosis `json:"secondary,omitempty"`
	Admitting     *Diagnosis  `json:"admitting,omitempty"`
	PatientReason []Diagnosis `json:"patient_reason,omitempty"`
	ExternalCause []Diagnosis `json:"external_cause,omitempty"`
}

// PointerList returns the diagnoses addressable by service-line pointers, in
// pointer order: the principal first, then the secondaries.
func (d DiagnosisSet) PointerList() []Diagnosis {
	list := make([]Diagnosis, 0, 1+len(d.Secondary))
	list = append(list, d.Principal)
	list = append(list, d.Secondary...)
	return list
}

// PointerCount returns the number of pointer-addressable diagnoses.
func (d DiagnosisSet) PointerCount() int {
	return 1 + len(d.Secondary)
}

// ProcedureInfo is one professional service line (loop 2400, SV1).
type ProcedureInfo struct {
	ProcedureCode     string          `json:"procedure_code"` // CPT or HCPCS Level II
	Modifiers         []string        `json:"modifiers,omitempty"`
	Units             int             `json:"units"`
	ChargeAmount      decimal.Decimal `json:"charge_amount"`
	ServiceDate       time.Time       `json:"service_date"`
	ServiceDateEnd    *time.Time      `json:"service_date_end,omitempty"`
	DiagnosisPointers []int           `json:"diagnosis_pointers"`
	PlaceOfService    string          `json:"place_of_service,omitempty"`
	RenderingProvider *Provider       `json:"rendering_provider,omitempty"`
}

// RevenueCodeLine is one institutional service line (loop 2400, SV2).
type RevenueCodeLine struct {
	RevenueCode       string          `json:"revenue_code"` // 4 digits
	ProcedureCode     string          `json:"procedure_code,omitempty"`
	Modifiers         []string        `json:"modifiers,omitempty"`
	Units             int             `json:"units"`
	ChargeAmount      decimal.Decimal `json:"charge_amount"`
	ServiceDate       time.Time       `json:"service_date"`
	DiagnosisPointers []int           `json:"diagnosis_pointers,omitempty"`
}

// ClaimHeader carries claim-level fields shared by both claim variants plus
// the institutional-only admission block.
type ClaimHeader struct {
	PatientControlNumber     string          `json:"patient_control_number"` // CLM01, max 20 chars
	TotalChargeAmount        decimal.Decimal `json:"total_charge_amount"`
	FrequencyCode            FrequencyCode   `json:"frequency_code"`
	OriginalClaimNumber      string          `json:"original_claim_number,omitempty"` // required for frequency 7/8
	ReleaseOfInformation     string          `json:"release_of_information"`          // CLM09, Y or I
	ProviderSignatureOnFile  string          `json:"provider_signature_on_file"`      // CLM06, Y or N
	AssignmentOfBenefits     string          `json:"assignment_of_benefits"`          // CLM08, Y/N/W
	AcceptAssignmentCode     string          `json:"accept_assignment_code"`          // CLM07, A/B/C
	PriorAuthorizationNumber string          `json:"prior_authorization_number,omitempty"`
	ReferralNumber           string          `json:"referral_number,omitempty"`

	// Professional: CLM05-1 place of service.
	PlaceOfServiceCode string `json:"place_of_service_code,omitempty"`

	// Institutional only.
	FacilityTypeCode     string     `json:"facility_type_code,omitempty"` // CLM05-1 (bill type, first two digits)
	StatementFromDate    *time.Time `json:"statement_from_date,omitempty"`
	StatementThroughDate *time.Time `json:"statement_through_date,omitempty"`
	AdmissionDate        *time.Time `json:"admission_date,omitempty"`
	AdmissionHour        string     `json:"admission_hour,omitempty"` // HHMM
	DischargeHour        string     `json:"discharge_hour,omitempty"` // HHMM
	AdmissionTypeCode    string     `json:"admission_type_code,omitempty"`
	AdmissionSourceCode  string     `json:"admission_source_code,omitempty"`
	PatientStatusCode    string     `json:"patient_status_code,omitempty"`
}

// ProfessionalClaim is the input to the 837P formatter.
type ProfessionalClaim struct {
	Header            ClaimHeader     `json:"header"`
	Billing           BillingProvider `json:"billing"`
	RenderingProvider *Provider       `json:"rendering_provider,omitempty"`
	ReferringProvider *Provider       `json:"referring_provider,omitempty"`
	ServiceFacility   *Provider       `json:"service_facility,omitempty"`
	Subscriber        SubscriberInfo  `json:"subscriber"`
	Patient           PatientInfo     `json:"patient"`
	Payer             PayerInfo       `json:"payer"`
	Diagnoses         DiagnosisSet    `json:"diagnoses"`
	ServiceLines      []ProcedureInfo `json:"service_lines"`
}

// InstitutionalClaim is the input to the 837I formatter.
type InstitutionalClaim struct {
	Header            ClaimHeader       `json:"header"`
	Billing           BillingProvider   `json:"billing"`
	AttendingProvider *Provider         `json:"attending_provider,omitempty"`
	OperatingProvider *Provider         `json:"operating_provider,omitempty"`
	ServiceFacility   *Provider         `json:"service_facility,omitempty"`
	Subscriber        SubscriberInfo    `json:"subscriber"`
	Patient           PatientInfo       `json:"patient"`
	Payer             PayerInfo         `json:"payer"`
	Diagnoses         DiagnosisSet      `json:"diagnoses"`
	RevenueLines      []RevenueCodeLine `json:"revenue_lines"`
}

// InterchangeInfo is the ISA envelope identity: who is sending, who is
// receiving, and under which control number. Production callers supply
// persisted monotonic control numbers; NewInterchangeInfo is a convenience
// for tests and ad-hoc rendering.
type InterchangeInfo struct {
	SenderQualifier   string         `json:"sender_qualifier"` // ISA05, usually ZZ
	SenderID          string         `json:"sender_id"`
	SenderName        string         `json:"sender_name,omitempty"` // loop 1000A NM1
	ReceiverQualifier string         `json:"receiver_qualifier"`
	ReceiverID        string         `json:"receiver_id"`
	ReceiverName      string         `json:"receiver_name,omitempty"` // loop 1000B NM1
	ControlNumber     int64          `json:"control_number"`          // 9 digits
	Date              time.Time      `json:"date"`
	Usage             UsageIndicator `json:"usage"`
	AckRequested      bool           `json:"ack_requested"`
}

// FunctionalGroupInfo is the GS envelope metadata.
type FunctionalGroupInfo struct {
	SenderCode    string    `json:"sender_code"`
	ReceiverCode  string    `json:"receiver_code"`
	ControlNumber int64     `json:"control_number"` // 9 digits
	Date          time.Time `json:"date"`
}

// TransactionSetInfo is the ST envelope metadata.
type TransactionSetInfo struct {
	ControlNumber int64 `json:"control_number"` // 4 digits
}

// Envelope bundles the three envelope levels for one formatting call.
// Exactly one functional group and one transaction set are emitted per call.
type Envelope struct {
	Interchange InterchangeInfo     `json:"interchange"`
	Group       FunctionalGroupInfo `json:"group"`
	Transaction TransactionSetInfo  `json:"transaction"`
}

// NewInterchangeInfo builds interchange metadata with a random 9-digit
// control number and the current time. Not collision-safe across a trading
// partner relationship; production callers should supply persisted numbers.
func NewInterchangeInfo(senderID, receiverID string) InterchangeInfo {
	return InterchangeInfo{
		SenderQualifier:   "ZZ",
		SenderID:          senderID,
		ReceiverQualifier: "ZZ",
		ReceiverID:        receiverID,
		ControlNumber:     rand.Int63n(1_000_000_000),
		Date:              time.Now(),
		Usage:             UsageProduction,
	}
}

// NewFunctionalGroupInfo builds group metadata with a random control number.
func NewFunctionalGroupInfo(senderCode, receiverCode string) FunctionalGroupInfo {
	return FunctionalGroupInfo{
		SenderCode:    senderCode,
		ReceiverCode:  receiverCode,
		ControlNumber: rand.Int63n(1_000_000_000),
		Date:          time.Now(),
	}
}

// NewTransactionSetInfo builds transaction metadata with a random 4-digit
// control number.
func NewTransactionSetInfo() TransactionSetInfo {
	return TransactionSetInfo{ControlNumber: rand.Int63n(10_000)}
}
