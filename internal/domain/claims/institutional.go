package claims

import "github.com/clearclaim/clearclaim/internal/platform/x12"

// Institutional HI batch limits per diagnosis category.
const (
	institutionalSecondaryBatch     = 11
	institutionalReasonVisitBatch   = 3
	institutionalExternalCauseBatch = 12
)

// Format837I renders an institutional claim into a complete
// single-transaction X12 837I interchange.
func (f *Formatter) Format837I(c *InstitutionalClaim, env Envelope) (string, error) {
	if err := institutionalStructure(c); err != nil {
		return "", err
	}

	r := f.newRenderer()
	r.interchangeHeader(env, VersionInstitutional)
	r.transactionHeader(env, VersionInstitutional)
	r.submitterReceiverLoops(env)

	billingHL := r.billingProviderLoop(&c.Billing)
	patientIsSubscriber := c.Patient.IsSubscriber()
	subscriberHL := r.subscriberLoop(&c.Subscriber, &c.Payer, patientIsSubscriber, billingHL)
	if !patientIsSubscriber {
		r.patientLoop(&c.Patient, subscriberHL)
	}

	r.institutionalClaimLoop(c)

	for i := range c.RevenueLines {
		r.institutionalRevenueLine(&c.RevenueLines[i], i+1)
	}

	r.transactionTrailer(env)
	r.interchangeTrailer(env)
	return r.out.String(), nil
}

func institutionalStructure(c *InstitutionalClaim) error {
	switch {
	case c.Header.PatientControlNumber == "":
		return &StructuralError{Field: "patient control number"}
	case c.Billing.LastNameOrOrg == "" || c.Billing.NPI == "":
		return &StructuralError{Field: "billing provider"}
	case c.Subscriber.LastName == "" && c.Subscriber.MemberID == "":
		return &StructuralError{Field: "subscriber"}
	case c.Payer.Name == "" && c.Payer.PayerID == "":
		return &StructuralError{Field: "payer"}
	case c.Diagnoses.Principal.Code == "":
		return &StructuralError{Field: "principal diagnosis"}
	case c.Header.StatementFromDate == nil || c.Header.StatementThroughDate == nil:
		return &StructuralError{Field: "statement dates"}
	case len(c.RevenueLines) == 0:
		return &StructuralError{Field: "revenue code lines"}
	}
	return nil
}

// institutionalClaimLoop emits loop 2300: CLM, the statement and admission
// DTP segments, CL1, claim references, the per-category HI segments, and the
// 2310 provider loops.
func (r *renderer) institutionalClaimLoop(c *InstitutionalClaim) {
	h := &c.Header
	r.emit(r.seg("CLM").
		Add(h.PatientControlNumber).
		Add(h.TotalChargeAmount).
		Add("").Add("").
		AddComponent(h.FacilityTypeCode, "A", orDefault(string(h.FrequencyCode), string(FrequencyOriginal))).
		Add(orDefault(h.ProviderSignatureOnFile, "Y")).
		Add(orDefault(h.AcceptAssignmentCode, "A")).
		Add(orDefault(h.AssignmentOfBenefits, "Y")).
		Add(orDefault(h.ReleaseOfInformation, "Y")))

	r.emit(r.seg("DTP").
		Add("434").
		Add("RD8").
		Add(x12.FormatDateRange(*h.StatementFromDate, *h.StatementThroughDate)))
	if h.AdmissionDate != nil {
		if h.AdmissionHour != "" {
			r.emit(r.seg("DTP").
				Add("435").
				Add("DT").
				Add(x12.FormatDate(*h.AdmissionDate) + h.AdmissionHour))
		} else {
			r.emit(r.seg("DTP").
				Add("435").
				Add("D8").
				Add(x12.FormatDate(*h.AdmissionDate)))
		}
	}
	if h.DischargeHour != "" {
		r.emit(r.seg("DTP").
			Add("096").
			Add("TM").
			Add(h.DischargeHour))
	}
	if h.AdmissionTypeCode != "" || h.AdmissionSourceCode != "" || h.PatientStatusCode != "" {
		r.emit(r.seg("CL1").
			Add(h.AdmissionTypeCode).
			Add(h.AdmissionSourceCode).
			Add(h.PatientStatusCode))
	}

	r.claimReferences(h)
	r.institutionalDiagnoses(&c.Diagnoses)

	if p := c.AttendingProvider; p != nil {
		r.nameSegment("71", p)
		if p.TaxonomyCode != "" {
			r.emit(r.seg("PRV").
				Add("AT").
				Add("PXC").
				Add(p.TaxonomyCode))
		}
	}
	if p := c.OperatingProvider; p != nil {
		r.nameSegment("72", p)
	}
	if p := c.ServiceFacility; p != nil {
		r.nameSegment("77", p)
		r.addressSegments(p.Address)
	}
}

// institutionalDiagnoses emits one HI group per qualifier category, chunking
// any category that exceeds its batch limit.
func (r *renderer) institutionalDiagnoses(d *DiagnosisSet) {
	r.diagnosisHI([]Diagnosis{d.Principal}, QualInstPrincipal, 1)
	if d.Admitting != nil {
		r.diagnosisHI([]Diagnosis{*d.Admitting}, QualInstAdmitting, 1)
	}
	r.diagnosisHI(d.Secondary, QualInstOther, institutionalSecondaryBatch)
	r.diagnosisHI(d.PatientReason, QualInstReasonVisit, institutionalReasonVisitBatch)
	r.diagnosisHI(d.ExternalCause, QualInstExternalCause, institutionalExternalCauseBatch)
}

// institutionalRevenueLine emits one loop 2400: LX, SV2, and the service
// date DTP. SV2 carries no diagnosis pointer composite; pointers on revenue
// lines are validated but not transmitted.
func (r *renderer) institutionalRevenueLine(line *RevenueCodeLine, number int) {
	r.emit(r.seg("LX").Add(number))

	sv2 := r.seg("SV2").Add(line.RevenueCode)
	if line.ProcedureCode != "" {
		procedure := make([]interface{}, 0, 2+MaxModifiersPerLine)
		procedure = append(procedure, "HC", line.ProcedureCode)
		for i, m := range line.Modifiers {
			if i == MaxModifiersPerLine {
				break
			}
			procedure = append(procedure, m)
		}
		sv2.AddComponent(procedure...)
	} else {
		sv2.Add("")
	}
	sv2.Add(line.ChargeAmount).
		Add("UN").
		Add(line.Units)
	r.emit(sv2)

	if !line.ServiceDate.IsZero() {
		r.serviceDateDTP(line.ServiceDate, nil)
	}
}
