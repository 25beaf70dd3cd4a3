package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/clearclaim/clearclaim/internal/domain/claims"
	"github.com/clearclaim/clearclaim/internal/platform/auth"
	"github.com/clearclaim/clearclaim/internal/platform/middleware"
)

// memControlRepo hands out sequential control numbers per partner, standing
// in for the Postgres-backed upsert.
type memControlRepo struct {
	mu   sync.Mutex
	next map[string]int64
}

func (r *memControlRepo) Next(ctx context.Context, partnerID string) (claims.ControlNumbers, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.next == nil {
		r.next = make(map[string]int64)
	}
	r.next[partnerID]++
	n := r.next[partnerID]
	return claims.ControlNumbers{Interchange: n, Group: n, Transaction: n}, nil
}

type memSubmissionRepo struct {
	mu    sync.Mutex
	items []*claims.Submission
}

func (r *memSubmissionRepo) Create(ctx context.Context, s *claims.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	r.items = append(r.items, s)
	return nil
}

func (r *memSubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*claims.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.items {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("submission %s: %w", id, pgx.ErrNoRows)
}

func (r *memSubmissionRepo) ListByPayer(ctx context.Context, payerID string, limit, offset int) ([]*claims.Submission, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*claims.Submission
	for _, s := range r.items {
		if s.PayerID == payerID {
			matched = append(matched, s)
		}
	}
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// newTestServer wires the API exactly the way the serve command does, with
// in-memory repositories instead of Postgres.
func newTestServer() (*echo.Echo, *memSubmissionRepo) {
	subs := &memSubmissionRepo{}
	svc := claims.NewService(&memControlRepo{}, subs, claims.EnvelopeIdentity{
		SenderID:     "SUB01",
		SenderName:   "CLEARCLAIM",
		ReceiverID:   "RCV01",
		ReceiverName: "CLEARINGHOUSE",
		Usage:        claims.UsageTest,
	})

	e := echo.New()
	e.Use(middleware.RequestID())
	e.Use(auth.DevAuthMiddleware())
	api := e.Group("/api/v1")
	claims.NewHandler(svc).RegisterRoutes(api)
	return e, subs
}

func professionalClaimJSON(serviceDate time.Time, npi string) string {
	return fmt.Sprintf(`{
		"header": {
			"patient_control_number": "PCN0001",
			"total_charge_amount": "145.00",
			"frequency_code": "1",
			"release_of_information": "Y",
			"provider_signature_on_file": "Y",
			"assignment_of_benefits": "Y",
			"accept_assignment_code": "A",
			"place_of_service_code": "11"
		},
		"billing": {
			"entity_type": "2",
			"last_name_or_org": "ACME MEDICAL GROUP",
			"npi": %q,
			"tax_id": "123456789",
			"address": {"line1": "100 MAIN ST", "city": "METROPOLIS", "state": "NY", "zip": "10001"}
		},
		"subscriber": {
			"last_name": "DOE",
			"first_name": "JANE",
			"date_of_birth": "1980-04-12T00:00:00Z",
			"gender": "F",
			"member_id": "MEM123",
			"address": {"line1": "2 OAK AVE", "city": "METROPOLIS", "state": "NY", "zip": "10002"}
		},
		"patient": {"relationship_to_subscriber": "18"},
		"payer": {"payer_id": "60054", "name": "AETNA", "filing_indicator_code": "CI"},
		"diagnoses": {"principal": {"code": "I10"}},
		"service_lines": [{
			"procedure_code": "99213",
			"units": 1,
			"charge_amount": "145.00",
			"service_date": %q,
			"diagnosis_pointers": [1]
		}]
	}`, npi, serviceDate.UTC().Format(time.RFC3339))
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestGenerateProfessional_EndToEnd(t *testing.T) {
	e, subs := newTestServer()
	body := professionalClaimJSON(time.Now().AddDate(0, 0, -5), "1234567893")

	rec := doJSON(e, http.MethodPost, "/api/v1/claims/professional/generate", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		SubmissionID *uuid.UUID `json:"submissionId"`
		Valid        bool       `json:"isValid"`
		X12          string     `json:"x12"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.Valid {
		t.Error("expected isValid true")
	}
	if resp.SubmissionID == nil {
		t.Fatal("expected a submission ID")
	}
	if !strings.HasPrefix(resp.X12, "ISA*") || !strings.Contains(resp.X12, "005010X222A1") {
		t.Errorf("unexpected X12 payload: %.60q", resp.X12)
	}

	if len(subs.items) != 1 {
		t.Fatalf("expected 1 stored submission, got %d", len(subs.items))
	}
	if subs.items[0].ID != *resp.SubmissionID {
		t.Error("stored submission ID does not match response")
	}
}

func TestGenerateProfessional_InvalidReturns422(t *testing.T) {
	e, subs := newTestServer()
	body := professionalClaimJSON(time.Now().AddDate(0, 0, -5), "1234567890")

	rec := doJSON(e, http.MethodPost, "/api/v1/claims/professional/generate", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Valid  bool                     `json:"isValid"`
		Errors []claims.ValidationIssue `json:"errors"`
		X12    string                   `json:"x12"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Valid {
		t.Error("expected isValid false")
	}
	if resp.X12 != "" {
		t.Error("expected no X12 for invalid claim")
	}
	found := false
	for _, iss := range resp.Errors {
		if iss.Code == claims.CodeInvalidNPI {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s in errors, got %v", claims.CodeInvalidNPI, resp.Errors)
	}
	if len(subs.items) != 0 {
		t.Errorf("invalid claim must not be stored, got %d submissions", len(subs.items))
	}
}

func TestValidateProfessional_DoesNotStore(t *testing.T) {
	e, subs := newTestServer()
	body := professionalClaimJSON(time.Now().AddDate(0, 0, -5), "1234567893")

	rec := doJSON(e, http.MethodPost, "/api/v1/claims/professional/validate", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp claims.ValidationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.Valid {
		t.Errorf("expected valid claim, errors: %v", resp.Errors)
	}
	if len(subs.items) != 0 {
		t.Error("validate must not create submissions")
	}
}

func TestSubmissionLookupAndListing(t *testing.T) {
	e, _ := newTestServer()
	body := professionalClaimJSON(time.Now().AddDate(0, 0, -5), "1234567893")

	// Two submissions for the same payer.
	for i := 0; i < 2; i++ {
		rec := doJSON(e, http.MethodPost, "/api/v1/claims/professional/generate", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("generate %d: expected 200, got %d", i, rec.Code)
		}
	}

	rec := doJSON(e, http.MethodGet, "/api/v1/submissions?payer_id=60054", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var list struct {
		Data  []claims.Submission `json:"data"`
		Total int                 `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if list.Total != 2 || len(list.Data) != 2 {
		t.Fatalf("expected 2 submissions, got total=%d len=%d", list.Total, len(list.Data))
	}

	// Control numbers advance per payer.
	if list.Data[0].InterchangeControl == list.Data[1].InterchangeControl {
		t.Error("expected distinct interchange control numbers")
	}

	// Fetch one by ID.
	rec = doJSON(e, http.MethodGet, "/api/v1/submissions/"+list.Data[0].ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}

	// Unknown payer lists empty.
	rec = doJSON(e, http.MethodGet, "/api/v1/submissions?payer_id=NOPE", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list unknown payer: expected 200, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal empty list: %v", err)
	}
	if list.Total != 0 {
		t.Errorf("expected 0 submissions for unknown payer, got %d", list.Total)
	}

	// Missing payer_id is a 400.
	rec = doJSON(e, http.MethodGet, "/api/v1/submissions", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without payer_id, got %d", rec.Code)
	}

	// An ID that exists nowhere is a 404, not a server error.
	rec = doJSON(e, http.MethodGet, "/api/v1/submissions/"+uuid.New().String(), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown id, got %d", rec.Code)
	}
}

// failingSubmissionRepo stands in for a database that is down.
type failingSubmissionRepo struct {
	memSubmissionRepo
}

func (r *failingSubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*claims.Submission, error) {
	return nil, errors.New("connection refused")
}

func TestGetSubmission_RepoFailureIsServerError(t *testing.T) {
	e := echo.New()
	svc := claims.NewService(&memControlRepo{}, &failingSubmissionRepo{}, claims.EnvelopeIdentity{
		SenderID:     "SUB01",
		SenderName:   "CLEARCLAIM",
		ReceiverID:   "RCV01",
		ReceiverName: "CLEARINGHOUSE",
		Usage:        claims.UsageTest,
	})
	claims.NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))

	rec := doJSON(e, http.MethodGet, "/api/v1/submissions/"+uuid.New().String(), "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 when the repository fails, got %d", rec.Code)
	}
}

func TestGenerate_MalformedJSON(t *testing.T) {
	e, _ := newTestServer()
	rec := doJSON(e, http.MethodPost, "/api/v1/claims/professional/generate", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestGenerateInstitutional_EndToEnd(t *testing.T) {
	e, subs := newTestServer()
	from := time.Now().AddDate(0, 0, -10)
	through := time.Now().AddDate(0, 0, -7)
	svc := time.Now().AddDate(0, 0, -9)
	body := fmt.Sprintf(`{
		"header": {
			"patient_control_number": "INST0001",
			"total_charge_amount": "5200.00",
			"frequency_code": "1",
			"release_of_information": "Y",
			"provider_signature_on_file": "Y",
			"assignment_of_benefits": "Y",
			"accept_assignment_code": "A",
			"facility_type_code": "11",
			"statement_from_date": %q,
			"statement_through_date": %q
		},
		"billing": {
			"entity_type": "2",
			"last_name_or_org": "GENERAL HOSPITAL",
			"npi": "1234567893",
			"tax_id": "123456789",
			"address": {"line1": "1 HOSPITAL WAY", "city": "METROPOLIS", "state": "NY", "zip": "10001"}
		},
		"subscriber": {
			"last_name": "DOE",
			"first_name": "JANE",
			"date_of_birth": "1980-04-12T00:00:00Z",
			"gender": "F",
			"member_id": "MEM123",
			"address": {"line1": "2 OAK AVE", "city": "METROPOLIS", "state": "NY", "zip": "10002"}
		},
		"patient": {"relationship_to_subscriber": "18"},
		"payer": {"payer_id": "00431", "name": "MEDICARE", "filing_indicator_code": "MA"},
		"diagnoses": {"principal": {"code": "I10"}},
		"revenue_lines": [
			{"revenue_code": "0450", "procedure_code": "99283", "units": 1, "charge_amount": "5200.00", "service_date": %q},
			{"revenue_code": "0001", "units": 1, "charge_amount": "5200.00", "service_date": %q}
		]
	}`, from.UTC().Format(time.RFC3339), through.UTC().Format(time.RFC3339),
		svc.UTC().Format(time.RFC3339), svc.UTC().Format(time.RFC3339))

	rec := doJSON(e, http.MethodPost, "/api/v1/claims/institutional/generate", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Valid bool   `json:"isValid"`
		X12   string `json:"x12"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.Valid {
		t.Fatalf("expected valid claim: %s", rec.Body.String())
	}
	if !strings.Contains(resp.X12, "005010X223A2") {
		t.Error("expected institutional implementation guide version in X12")
	}
	if len(subs.items) != 1 || subs.items[0].ClaimType != claims.ClaimTypeInstitutional {
		t.Error("expected one stored institutional submission")
	}
}
