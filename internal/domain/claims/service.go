package claims

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnvelopeIdentity is the sender half of every interchange this installation
// produces, plus the usage indicator the trading partner expects.
type EnvelopeIdentity struct {
	SenderID     string
	SenderName   string
	ReceiverID   string
	ReceiverName string
	Usage        UsageIndicator
}

// SubmissionResult is what claim generation returns: the validator's verdict
// and, when the claim is clean, the rendered interchange and its durable
// submission record.
type SubmissionResult struct {
	SubmissionID uuid.UUID        `json:"submissionId"`
	Validation   ValidationResult `json:"validation"`
	X12          string           `json:"x12,omitempty"`
}

// Service drives the validate-then-generate workflow: a claim is validated,
// and only a clean claim draws control numbers, is rendered, and is recorded.
type Service struct {
	controls    ControlNumberRepository
	submissions SubmissionRepository
	validator   *Validator
	formatter   *Formatter
	identity    EnvelopeIdentity
}

func NewService(controls ControlNumberRepository, submissions SubmissionRepository, identity EnvelopeIdentity) *Service {
	if identity.Usage == "" {
		identity.Usage = UsageProduction
	}
	return &Service{
		controls:    controls,
		submissions: submissions,
		validator:   NewValidator(),
		formatter:   NewFormatter(DefaultFormatOptions()),
		identity:    identity,
	}
}

// ValidateProfessional runs the rule pipeline without generating anything.
func (s *Service) ValidateProfessional(c *ProfessionalClaim) ValidationResult {
	return s.validator.ValidateProfessional(c)
}

// ValidateInstitutional runs the rule pipeline without generating anything.
func (s *Service) ValidateInstitutional(c *InstitutionalClaim) ValidationResult {
	return s.validator.ValidateInstitutional(c)
}

// SubmitProfessional validates and, when clean, renders and records an 837P.
// An invalid claim comes back with its findings and no X12; the control
// number sequence is not advanced for it.
func (s *Service) SubmitProfessional(ctx context.Context, c *ProfessionalClaim) (*SubmissionResult, error) {
	res := s.validator.ValidateProfessional(c)
	if !res.Valid {
		return &SubmissionResult{Validation: res}, nil
	}

	env, nums, err := s.drawEnvelope(ctx, c.Payer.PayerID)
	if err != nil {
		return nil, err
	}
	x12Body, err := s.formatter.Format837P(c, env)
	if err != nil {
		return nil, err
	}

	sub, err := s.record(ctx, ClaimTypeProfessional, c.Header.PatientControlNumber, c.Payer.PayerID, nums, res, x12Body)
	if err != nil {
		return nil, err
	}
	return &SubmissionResult{SubmissionID: sub.ID, Validation: res, X12: x12Body}, nil
}

// SubmitInstitutional validates and, when clean, renders and records an 837I.
func (s *Service) SubmitInstitutional(ctx context.Context, c *InstitutionalClaim) (*SubmissionResult, error) {
	res := s.validator.ValidateInstitutional(c)
	if !res.Valid {
		return &SubmissionResult{Validation: res}, nil
	}

	env, nums, err := s.drawEnvelope(ctx, c.Payer.PayerID)
	if err != nil {
		return nil, err
	}
	x12Body, err := s.formatter.Format837I(c, env)
	if err != nil {
		return nil, err
	}

	sub, err := s.record(ctx, ClaimTypeInstitutional, c.Header.PatientControlNumber, c.Payer.PayerID, nums, res, x12Body)
	if err != nil {
		return nil, err
	}
	return &SubmissionResult{SubmissionID: sub.ID, Validation: res, X12: x12Body}, nil
}

// GetSubmission returns a stored submission by ID.
func (s *Service) GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error) {
	return s.submissions.GetByID(ctx, id)
}

// ListSubmissionsByPayer pages through stored submissions for one payer.
func (s *Service) ListSubmissionsByPayer(ctx context.Context, payerID string, limit, offset int) ([]*Submission, int, error) {
	return s.submissions.ListByPayer(ctx, payerID, limit, offset)
}

func (s *Service) drawEnvelope(ctx context.Context, payerID string) (Envelope, ControlNumbers, error) {
	nums, err := s.controls.Next(ctx, payerID)
	if err != nil {
		return Envelope{}, ControlNumbers{}, fmt.Errorf("allocating control numbers: %w", err)
	}
	now := time.Now().UTC()
	env := Envelope{
		Interchange: InterchangeInfo{
			SenderQualifier:   "ZZ",
			SenderID:          s.identity.SenderID,
			SenderName:        s.identity.SenderName,
			ReceiverQualifier: "ZZ",
			ReceiverID:        s.identity.ReceiverID,
			ReceiverName:      s.identity.ReceiverName,
			ControlNumber:     nums.Interchange,
			Date:              now,
			Usage:             s.identity.Usage,
		},
		Group: FunctionalGroupInfo{
			SenderCode:    s.identity.SenderID,
			ReceiverCode:  s.identity.ReceiverID,
			ControlNumber: nums.Group,
			Date:          now,
		},
		Transaction: TransactionSetInfo{ControlNumber: nums.Transaction},
	}
	return env, nums, nil
}

func (s *Service) record(ctx context.Context, claimType, pcn, payerID string, nums ControlNumbers, res ValidationResult, x12Body string) (*Submission, error) {
	sub := &Submission{
		ClaimType:            claimType,
		PatientControlNumber: pcn,
		PayerID:              payerID,
		InterchangeControl:   nums.Interchange,
		GroupControl:         nums.Group,
		TransactionControl:   nums.Transaction,
		WarningCount:         len(res.Warnings),
		Warnings:             res.Warnings,
		X12:                  x12Body,
	}
	if err := s.submissions.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("recording submission: %w", err)
	}
	return sub, nil
}
