package claims

import (
	"fmt"
	"strings"
	"time"

	"github.com/clearclaim/clearclaim/internal/platform/x12"
)

// Implementation convention versions for the two claim variants.
const (
	VersionProfessional  = "005010X222A1"
	VersionInstitutional = "005010X223A2"
)

// FormatOptions controls delimiter choice and whether segments are emitted
// one per line. The defaults match what clearinghouses expect.
type FormatOptions struct {
	Separators x12.Separators
	LineBreaks bool
}

// DefaultFormatOptions returns * ~ : ^ with no line breaks.
func DefaultFormatOptions() FormatOptions {
	return FormatOptions{Separators: x12.DefaultSeparators()}
}

// StructuralError reports a claim that cannot be rendered into a valid 837
// at all: a required loop has no data to build from. The formatter returns
// it instead of emitting a partial interchange.
type StructuralError struct {
	Field string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("claim cannot be rendered: missing %s", e.Field)
}

// Formatter renders claims into X12 837 interchanges. It is pure: the same
// claim and envelope always produce byte-identical output, and it is safe
// for concurrent use because all rendering state lives per call.
type Formatter struct {
	opts FormatOptions
}

// NewFormatter returns a formatter with the given options.
func NewFormatter(opts FormatOptions) *Formatter {
	if opts.Separators == (x12.Separators{}) {
		opts.Separators = x12.DefaultSeparators()
	}
	return &Formatter{opts: opts}
}

// renderer holds the per-invocation output buffer and the two counters the
// 837 grammar needs: the segment count from ST through SE, and the HL
// hierarchical ID, which starts at zero and is incremented before each HL
// segment is emitted.
type renderer struct {
	out           strings.Builder
	opts          FormatOptions
	inTransaction bool
	txSegments    int
	hl            int
}

func (f *Formatter) newRenderer() *renderer {
	return &renderer{opts: f.opts}
}

func (r *renderer) seg(id string) *x12.SegmentBuilder {
	return x12.NewSegment(id, r.opts.Separators).LineBreak(r.opts.LineBreaks)
}

func (r *renderer) emit(b *x12.SegmentBuilder) {
	r.out.WriteString(b.Build())
	if r.inTransaction {
		r.txSegments++
	}
}

// nextHL increments the hierarchical counter and emits the HL segment.
// A parent of zero means top of the hierarchy (the billing provider level).
func (r *renderer) nextHL(parent int, levelCode string, hasChild bool) int {
	r.hl++
	parentID := ""
	if parent > 0 {
		parentID = fmt.Sprintf("%d", parent)
	}
	child := "0"
	if hasChild {
		child = "1"
	}
	r.emit(r.seg(x12.HLSegmentID).
		Add(r.hl).
		Add(parentID).
		Add(levelCode).
		Add(child))
	return r.hl
}

// interchangeHeader emits ISA and GS. The ISA segment has fixed-width
// positional elements, so it is assembled directly rather than through the
// segment builder, whose sanitizer would strip the padding.
func (r *renderer) interchangeHeader(env Envelope, version string) {
	seps := r.opts.Separators

	usage := env.Interchange.Usage
	if usage == "" {
		usage = UsageProduction
	}
	ack := "0"
	if env.Interchange.AckRequested {
		ack = "1"
	}
	date := env.Interchange.Date
	if date.IsZero() {
		date = time.Now()
	}

	isa := []string{
		x12.ISASegmentID,
		x12.PadISA("00", x12.ISALenAuthInfoQualifier),
		x12.PadISA("", x12.ISALenAuthInfo),
		x12.PadISA("00", x12.ISALenSecurityInfoQualifier),
		x12.PadISA("", x12.ISALenSecurityInfo),
		x12.PadISA(orDefault(env.Interchange.SenderQualifier, "ZZ"), x12.ISALenSenderIDQualifier),
		x12.PadISA(env.Interchange.SenderID, x12.ISALenSenderID),
		x12.PadISA(orDefault(env.Interchange.ReceiverQualifier, "ZZ"), x12.ISALenReceiverIDQualifier),
		x12.PadISA(env.Interchange.ReceiverID, x12.ISALenReceiverID),
		x12.FormatShortDate(date),
		x12.FormatTime(date),
		seps.Repetition,
		x12.PadISA("00501", x12.ISALenVersion),
		x12.PadControlNumber(env.Interchange.ControlNumber, x12.InterchangeControlDigits),
		ack,
		string(usage),
		seps.Component,
	}
	r.out.WriteString(strings.Join(isa, seps.Element))
	r.out.WriteString(seps.Segment)
	if r.opts.LineBreaks {
		r.out.WriteByte('\n')
	}

	groupDate := env.Group.Date
	if groupDate.IsZero() {
		groupDate = date
	}
	r.emit(r.seg(x12.GSSegmentID).
		Add(x12.FunctionalIDHealthcareClaim).
		Add(orDefault(env.Group.SenderCode, env.Interchange.SenderID)).
		Add(orDefault(env.Group.ReceiverCode, env.Interchange.ReceiverID)).
		Add(x12.FormatDate(groupDate)).
		Add(x12.FormatTime(groupDate)).
		Add(env.Group.ControlNumber).
		Add("X").
		Add(version))
}

func (r *renderer) interchangeTrailer(env Envelope) {
	r.emit(r.seg(x12.GESegmentID).
		Add(1).
		Add(env.Group.ControlNumber))
	r.emit(r.seg(x12.IEASegmentID).
		Add(1).
		Add(x12.PadControlNumber(env.Interchange.ControlNumber, x12.InterchangeControlDigits)))
}

// transactionHeader emits ST and BHT and starts the SE01 segment count.
func (r *renderer) transactionHeader(env Envelope, version string) {
	r.inTransaction = true
	date := env.Interchange.Date
	if date.IsZero() {
		date = time.Now()
	}
	txCtl := x12.PadControlNumber(env.Transaction.ControlNumber, x12.TransactionControlDigits)

	r.emit(r.seg(x12.STSegmentID).
		Add("837").
		Add(txCtl).
		Add(version))
	r.emit(r.seg("BHT").
		Add("0019").
		Add("00").
		Add(txCtl).
		Add(x12.FormatDate(date)).
		Add(x12.FormatTime(date)).
		Add("CH"))
}

// transactionTrailer emits SE with the segment count from ST through SE
// inclusive, then stops counting.
func (r *renderer) transactionTrailer(env Envelope) {
	count := r.txSegments + 1 // SE counts itself
	r.emit(r.seg(x12.SESegmentID).
		Add(count).
		Add(x12.PadControlNumber(env.Transaction.ControlNumber, x12.TransactionControlDigits)))
	r.inTransaction = false
}

// submitterReceiverLoops emits loops 1000A and 1000B from the interchange
// identity.
func (r *renderer) submitterReceiverLoops(env Envelope) {
	r.emit(r.seg("NM1").
		Add("41").
		Add("2").
		Add(orDefault(env.Interchange.SenderName, env.Interchange.SenderID)).
		Add("").Add("").Add("").Add("").
		Add("46").
		Add(env.Interchange.SenderID))
	r.emit(r.seg("NM1").
		Add("40").
		Add("2").
		Add(orDefault(env.Interchange.ReceiverName, env.Interchange.ReceiverID)).
		Add("").Add("").Add("").Add("").
		Add("46").
		Add(env.Interchange.ReceiverID))
}

// billingProviderLoop emits the 2000A HL and loops 2010AA and 2010AB.
// Returns the billing provider's HL ID for use as the subscriber's parent.
func (r *renderer) billingProviderLoop(b *BillingProvider) int {
	id := r.nextHL(0, "20", true)
	if b.TaxonomyCode != "" {
		r.emit(r.seg("PRV").
			Add("BI").
			Add("PXC").
			Add(b.TaxonomyCode))
	}

	r.nameSegment("85", &b.Provider)
	r.addressSegments(b.Address)
	if b.TaxID != "" {
		r.emit(r.seg("REF").
			Add("EI").
			Add(b.TaxID))
	}

	if b.PayToAddress != nil && !b.PayToAddress.Empty() {
		r.emit(r.seg("NM1").
			Add("87").
			Add("2"))
		r.addressSegments(*b.PayToAddress)
	}
	return id
}

// subscriberLoop emits the 2000B HL, SBR, and loops 2010BA and 2010BB.
// Returns the subscriber's HL ID.
func (r *renderer) subscriberLoop(sub *SubscriberInfo, payer *PayerInfo, patientIsSubscriber bool, parent int) int {
	id := r.nextHL(parent, "22", !patientIsSubscriber)

	relationship := ""
	if patientIsSubscriber {
		relationship = RelationshipSelf
	}
	r.emit(r.seg("SBR").
		Add("P").
		Add(relationship).
		Add(sub.GroupNumber).
		Add("").Add("").Add("").Add("").Add("").
		Add(payer.FilingIndicatorCode))

	seg := r.seg("NM1").
		Add("IL").
		Add("1").
		Add(sub.LastName).
		Add(sub.FirstName).
		Add(sub.MiddleName).
		Add("").Add("")
	if sub.MemberID != "" {
		seg.Add("MI").Add(sub.MemberID)
	}
	r.emit(seg)
	r.addressSegments(sub.Address)
	if patientIsSubscriber && !sub.DateOfBirth.IsZero() {
		r.demographicSegment(sub.DateOfBirth, sub.Gender)
	}

	seg = r.seg("NM1").
		Add("PR").
		Add("2").
		Add(payer.Name).
		Add("").Add("").Add("").Add("")
	if payer.PayerID != "" {
		seg.Add("PI").Add(payer.PayerID)
	}
	r.emit(seg)
	r.addressSegments(payer.Address)
	return id
}

// patientLoop emits the 2000C HL, PAT, and loop 2010CA. Only called when the
// patient is not the subscriber.
func (r *renderer) patientLoop(p *PatientInfo, parent int) {
	r.nextHL(parent, "23", false)
	r.emit(r.seg("PAT").
		Add(p.RelationshipToSubscriber))
	r.emit(r.seg("NM1").
		Add("QC").
		Add("1").
		Add(p.LastName).
		Add(p.FirstName).
		Add(p.MiddleName))
	r.addressSegments(p.Address)
	if !p.DateOfBirth.IsZero() {
		r.demographicSegment(p.DateOfBirth, p.Gender)
	}
}

// nameSegment emits an NM1 for a provider role, with the XX/NPI pair only
// when an NPI is present.
func (r *renderer) nameSegment(entityCode string, p *Provider) {
	seg := r.seg("NM1").
		Add(entityCode).
		Add(string(p.EntityType)).
		Add(p.LastNameOrOrg).
		Add(p.FirstName).
		Add(p.MiddleName).
		Add("").Add("")
	if p.NPI != "" {
		seg.Add("XX").Add(p.NPI)
	}
	r.emit(seg)
}

func (r *renderer) addressSegments(a Address) {
	if a.Empty() {
		return
	}
	if a.Line1 != "" {
		r.emit(r.seg("N3").
			Add(a.Line1).
			Add(a.Line2))
	}
	r.emit(r.seg("N4").
		Add(a.City).
		Add(a.State).
		Add(a.ZIP))
}

func (r *renderer) demographicSegment(dob time.Time, gender string) {
	r.emit(r.seg("DMG").
		Add("D8").
		Add(x12.FormatDate(dob)).
		Add(orDefault(gender, "U")))
}

// claimReferences emits the claim-level REF segments shared by both variants.
func (r *renderer) claimReferences(h *ClaimHeader) {
	if h.FrequencyCode.RequiresOriginalClaim() && h.OriginalClaimNumber != "" {
		r.emit(r.seg("REF").
			Add("F8").
			Add(h.OriginalClaimNumber))
	}
	if h.PriorAuthorizationNumber != "" {
		r.emit(r.seg("REF").
			Add("G1").
			Add(h.PriorAuthorizationNumber))
	}
	if h.ReferralNumber != "" {
		r.emit(r.seg("REF").
			Add("9F").
			Add(h.ReferralNumber))
	}
}

// diagnosisHI emits HI segments for one qualifier category, chunking when
// the list exceeds the batch limit. The qualifier recorded on the diagnosis
// wins; the category default fills in when it is absent.
func (r *renderer) diagnosisHI(diagnoses []Diagnosis, fallback DiagnosisQualifier, batch int) {
	for start := 0; start < len(diagnoses); start += batch {
		end := start + batch
		if end > len(diagnoses) {
			end = len(diagnoses)
		}
		seg := r.seg("HI")
		for _, d := range diagnoses[start:end] {
			q := d.Qualifier
			if q == "" {
				q = fallback
			}
			seg.AddComponent(string(q), NormalizeDiagnosisCode(d.Code))
		}
		r.emit(seg)
	}
}

// pointerElements maps a service line's diagnosis pointers onto up to four
// component values, dropping any pointer outside the addressable range so a
// bad pointer can never corrupt the segment. Validation reports it upstream.
func pointerElements(pointers []int, max int) []interface{} {
	out := make([]interface{}, 0, 4)
	for _, p := range pointers {
		if p < 1 || p > max {
			continue
		}
		out = append(out, p)
		if len(out) == 4 {
			break
		}
	}
	return out
}

func (r *renderer) serviceDateDTP(from time.Time, through *time.Time) {
	if through != nil && !through.Equal(from) {
		r.emit(r.seg("DTP").
			Add("472").
			Add("RD8").
			Add(x12.FormatDateRange(from, *through)))
		return
	}
	r.emit(r.seg("DTP").
		Add("472").
		Add("D8").
		Add(x12.FormatDate(from)))
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
