package claims

// professionalHIBatch is the maximum number of diagnosis composites per HI
// segment on an 837P claim.
const professionalHIBatch = 11

// Format837P renders a professional claim into a complete single-transaction
// X12 837P interchange. Claims missing the loops the grammar cannot do
// without come back as a *StructuralError with no output.
func (f *Formatter) Format837P(c *ProfessionalClaim, env Envelope) (string, error) {
	if err := professionalStructure(c); err != nil {
		return "", err
	}

	r := f.newRenderer()
	r.interchangeHeader(env, VersionProfessional)
	r.transactionHeader(env, VersionProfessional)
	r.submitterReceiverLoops(env)

	billingHL := r.billingProviderLoop(&c.Billing)
	patientIsSubscriber := c.Patient.IsSubscriber()
	subscriberHL := r.subscriberLoop(&c.Subscriber, &c.Payer, patientIsSubscriber, billingHL)
	if !patientIsSubscriber {
		r.patientLoop(&c.Patient, subscriberHL)
	}

	r.professionalClaimLoop(c)

	pointerMax := c.Diagnoses.PointerCount()
	for i := range c.ServiceLines {
		r.professionalServiceLine(&c.ServiceLines[i], i+1, pointerMax)
	}

	r.transactionTrailer(env)
	r.interchangeTrailer(env)
	return r.out.String(), nil
}

func professionalStructure(c *ProfessionalClaim) error {
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
	case len(c.ServiceLines) == 0:
		return &StructuralError{Field: "service lines"}
	}
	return nil
}

// professionalClaimLoop emits loop 2300: CLM, claim references, the HI
// diagnosis segments, and the claim-level 2310 provider loops.
func (r *renderer) professionalClaimLoop(c *ProfessionalClaim) {
	h := &c.Header
	r.emit(r.seg("CLM").
		Add(h.PatientControlNumber).
		Add(h.TotalChargeAmount).
		Add("").Add("").
		AddComponent(h.PlaceOfServiceCode, "B", orDefault(string(h.FrequencyCode), string(FrequencyOriginal))).
		Add(orDefault(h.ProviderSignatureOnFile, "Y")).
		Add(orDefault(h.AcceptAssignmentCode, "A")).
		Add(orDefault(h.AssignmentOfBenefits, "Y")).
		Add(orDefault(h.ReleaseOfInformation, "Y")))

	r.claimReferences(h)

	list := c.Diagnoses.PointerList()
	resolved := make([]Diagnosis, len(list))
	for i, d := range list {
		q := d.Qualifier
		if q == "" {
			if i == 0 {
				q = QualPrincipalICD10CM
			} else {
				q = QualOtherICD10CM
			}
		}
		resolved[i] = Diagnosis{Code: d.Code, Qualifier: q}
	}
	r.diagnosisHI(resolved, QualOtherICD10CM, professionalHIBatch)

	if p := c.ReferringProvider; p != nil {
		r.nameSegment("DN", p)
	}
	if p := c.RenderingProvider; p != nil {
		r.nameSegment("82", p)
		if p.TaxonomyCode != "" {
			r.emit(r.seg("PRV").
				Add("PE").
				Add("PXC").
				Add(p.TaxonomyCode))
		}
	}
	if p := c.ServiceFacility; p != nil {
		r.nameSegment("77", p)
		r.addressSegments(p.Address)
	}
}

// professionalServiceLine emits one loop 2400: LX, SV1, the service date
// DTP, and the line-level rendering provider override when present.
func (r *renderer) professionalServiceLine(line *ProcedureInfo, number, pointerMax int) {
	r.emit(r.seg("LX").Add(number))

	procedure := make([]interface{}, 0, 2+MaxModifiersPerLine)
	procedure = append(procedure, "HC", line.ProcedureCode)
	for i, m := range line.Modifiers {
		if i == MaxModifiersPerLine {
			break
		}
		procedure = append(procedure, m)
	}

	sv1 := r.seg("SV1").
		AddComponent(procedure...).
		Add(line.ChargeAmount).
		Add("UN").
		Add(line.Units).
		Add(line.PlaceOfService).
		Add("")
	if pointers := pointerElements(line.DiagnosisPointers, pointerMax); len(pointers) > 0 {
		sv1.AddComponent(pointers...)
	}
	r.emit(sv1)

	r.serviceDateDTP(line.ServiceDate, line.ServiceDateEnd)

	if p := line.RenderingProvider; p != nil {
		r.nameSegment("82", p)
	}
}
