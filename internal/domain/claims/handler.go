package claims

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/clearclaim/clearclaim/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/claims/professional/validate", h.ValidateProfessional)
	api.POST("/claims/professional/generate", h.GenerateProfessional)
	api.POST("/claims/institutional/validate", h.ValidateInstitutional)
	api.POST("/claims/institutional/generate", h.GenerateInstitutional)
	api.GET("/submissions", h.ListSubmissions)
	api.GET("/submissions/:id", h.GetSubmission)
}

// generateResponse is the wire shape of a generate call. The validation
// findings ride alongside the rendered interchange so a caller never has to
// make a second request to see why a claim was rejected.
type generateResponse struct {
	SubmissionID *uuid.UUID        `json:"submissionId,omitempty"`
	Valid        bool              `json:"isValid"`
	Errors       []ValidationIssue `json:"errors"`
	Warnings     []ValidationIssue `json:"warnings"`
	X12          string            `json:"x12,omitempty"`
}

func (h *Handler) ValidateProfessional(c echo.Context) error {
	var claim ProfessionalClaim
	if err := c.Bind(&claim); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, h.svc.ValidateProfessional(&claim))
}

func (h *Handler) ValidateInstitutional(c echo.Context) error {
	var claim InstitutionalClaim
	if err := c.Bind(&claim); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, h.svc.ValidateInstitutional(&claim))
}

func (h *Handler) GenerateProfessional(c echo.Context) error {
	var claim ProfessionalClaim
	if err := c.Bind(&claim); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.SubmitProfessional(c.Request().Context(), &claim)
	return h.generateReply(c, res, err)
}

func (h *Handler) GenerateInstitutional(c echo.Context) error {
	var claim InstitutionalClaim
	if err := c.Bind(&claim); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.SubmitInstitutional(c.Request().Context(), &claim)
	return h.generateReply(c, res, err)
}

func (h *Handler) generateReply(c echo.Context, res *SubmissionResult, err error) error {
	if err != nil {
		var structural *StructuralError
		if errors.As(err, &structural) {
			return echo.NewHTTPError(http.StatusBadRequest, structural.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	body := generateResponse{
		Valid:    res.Validation.Valid,
		Errors:   res.Validation.Errors,
		Warnings: res.Validation.Warnings,
		X12:      res.X12,
	}
	if res.SubmissionID != uuid.Nil {
		body.SubmissionID = &res.SubmissionID
	}
	if !res.Validation.Valid {
		return c.JSON(http.StatusUnprocessableEntity, body)
	}
	return c.JSON(http.StatusOK, body)
}

func (h *Handler) GetSubmission(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sub, err := h.svc.GetSubmission(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "submission not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sub)
}

func (h *Handler) ListSubmissions(c echo.Context) error {
	payerID := c.QueryParam("payer_id")
	if payerID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "payer_id is required")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSubmissionsByPayer(c.Request().Context(), payerID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
