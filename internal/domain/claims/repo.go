package claims

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ControlNumbers is one allocation of envelope control numbers for a trading
// partner: interchange and group numbers grow without bound, the transaction
// number wraps at its 4-digit field width.
type ControlNumbers struct {
	Interchange int64
	Group       int64
	Transaction int64
}

// ControlNumberRepository hands out monotonically increasing control numbers
// per trading partner. Allocations must be safe under concurrent submitters:
// two claims to the same payer may never share an interchange number.
type ControlNumberRepository interface {
	Next(ctx context.Context, partnerID string) (ControlNumbers, error)
}

// Submission is the durable record of one generated interchange: which claim
// it carried, under which control numbers, and what the validator said.
type Submission struct {
	ID                   uuid.UUID         `json:"id"`
	ClaimType            string            `json:"claim_type"` // professional or institutional
	PatientControlNumber string            `json:"patient_control_number"`
	PayerID              string            `json:"payer_id"`
	InterchangeControl   int64             `json:"interchange_control"`
	GroupControl         int64             `json:"group_control"`
	TransactionControl   int64             `json:"transaction_control"`
	WarningCount         int               `json:"warning_count"`
	Warnings             []ValidationIssue `json:"warnings,omitempty"`
	X12                  string            `json:"x12"`
	CreatedAt            time.Time         `json:"created_at"`
}

const (
	ClaimTypeProfessional  = "professional"
	ClaimTypeInstitutional = "institutional"
)

// SubmissionRepository stores generated interchanges.
type SubmissionRepository interface {
	Create(ctx context.Context, s *Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Submission, error)
	ListByPayer(ctx context.Context, payerID string, limit, offset int) ([]*Submission, int, error)
}
