package claims

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clearclaim/clearclaim/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== ControlNumber Repository ===========

type controlNumberRepoPG struct{ pool *pgxpool.Pool }

func NewControlNumberRepoPG(pool *pgxpool.Pool) ControlNumberRepository {
	return &controlNumberRepoPG{pool: pool}
}

func (r *controlNumberRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

// Next allocates the three control numbers in one atomic upsert. The row
// lock taken by the UPDATE serializes concurrent submitters for the same
// partner, so no two interchanges share a number. The transaction number
// wraps at its 4-digit field width.
func (r *controlNumberRepoPG) Next(ctx context.Context, partnerID string) (ControlNumbers, error) {
	var n ControlNumbers
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO control_numbers (partner_id, interchange_ctl, group_ctl, transaction_ctl)
		VALUES ($1, 1, 1, 1)
		ON CONFLICT (partner_id) DO UPDATE SET
			interchange_ctl = control_numbers.interchange_ctl + 1,
			group_ctl       = control_numbers.group_ctl + 1,
			transaction_ctl = (control_numbers.transaction_ctl % 9999) + 1,
			updated_at      = NOW()
		RETURNING interchange_ctl, group_ctl, transaction_ctl`,
		partnerID).Scan(&n.Interchange, &n.Group, &n.Transaction)
	return n, err
}

// =========== Submission Repository ===========

type submissionRepoPG struct{ pool *pgxpool.Pool }

func NewSubmissionRepoPG(pool *pgxpool.Pool) SubmissionRepository {
	return &submissionRepoPG{pool: pool}
}

func (r *submissionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const subCols = `id, claim_type, patient_control_number, payer_id,
	interchange_ctl, group_ctl, transaction_ctl,
	warning_count, warnings, x12, created_at`

func (r *submissionRepoPG) scanSubmission(row pgx.Row) (*Submission, error) {
	var s Submission
	var warnings []byte
	err := row.Scan(&s.ID, &s.ClaimType, &s.PatientControlNumber, &s.PayerID,
		&s.InterchangeControl, &s.GroupControl, &s.TransactionControl,
		&s.WarningCount, &warnings, &s.X12, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &s.Warnings); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

func (r *submissionRepoPG) Create(ctx context.Context, s *Submission) error {
	s.ID = uuid.New()
	warnings, err := json.Marshal(s.Warnings)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO submission (id, claim_type, patient_control_number, payer_id,
			interchange_ctl, group_ctl, transaction_ctl,
			warning_count, warnings, x12)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		s.ID, s.ClaimType, s.PatientControlNumber, s.PayerID,
		s.InterchangeControl, s.GroupControl, s.TransactionControl,
		s.WarningCount, warnings, s.X12)
	return err
}

func (r *submissionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Submission, error) {
	return r.scanSubmission(r.conn(ctx).QueryRow(ctx, `SELECT `+subCols+` FROM submission WHERE id = $1`, id))
}

func (r *submissionRepoPG) ListByPayer(ctx context.Context, payerID string, limit, offset int) ([]*Submission, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM submission WHERE payer_id = $1`, payerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+subCols+` FROM submission WHERE payer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, payerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Submission
	for rows.Next() {
		s, err := r.scanSubmission(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, nil
}
