package http

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/facturasoft/verifactu-api/internal/application/dto"
	appverifactu "github.com/facturasoft/verifactu-api/internal/application/verifactu"
	"github.com/facturasoft/verifactu-api/internal/domain"
)

// InvoiceHandler maneja el alta, consulta y anulación de facturas (protegido).
type InvoiceHandler struct {
	intake *appverifactu.IntakeUseCase
	submit *appverifactu.SubmitUseCase
}

// NewInvoiceHandler construye el handler.
func NewInvoiceHandler(intake *appverifactu.IntakeUseCase, submit *appverifactu.SubmitUseCase) *InvoiceHandler {
	return &InvoiceHandler{intake: intake, submit: submit}
}

// List devuelve las facturas de la empresa.
// GET /api/companies/:company_id/invoices
func (h *InvoiceHandler) List(c *fiber.Ctx) error {
	invoices, err := h.intake.List(c.Context(), c.Params("company_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"data": invoices})
}

// GetByID devuelve una factura con sus líneas.
// GET /api/companies/:company_id/invoices/:id
func (h *InvoiceHandler) GetByID(c *fiber.Ctx) error {
	invoice, err := h.intake.Get(c.Context(), c.Params("company_id"), c.Params("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(invoice)
}

// Create da de alta una factura F1/F2 según haya NIF de destinatario.
// POST /api/companies/:company_id/invoices
func (h *InvoiceHandler) Create(c *fiber.Ctx) error {
	in, ok := parseBody(c)
	if !ok {
		return nil
	}
	invoice, err := h.intake.Create(c.Context(), c.Params("company_id"), in)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(invoice)
}

// Rectify emite una rectificativa por diferencias (R1/R5) sobre las facturas
// indicadas (ids separados por comas).
// POST /api/companies/:company_id/invoices/:id/rect
func (h *InvoiceHandler) Rectify(c *fiber.Ctx) error {
	return h.rectify(c, h.intake.Rectify)
}

// RectifyInsolvency emite una rectificativa R2 (concurso de acreedores).
// POST /api/companies/:company_id/invoices/:id/rect2
func (h *InvoiceHandler) RectifyInsolvency(c *fiber.Ctx) error {
	return h.rectify(c, h.intake.RectifyInsolvency)
}

// RectifySubstitute emite una rectificativa por sustitución (R1/R5, S).
// POST /api/companies/:company_id/invoices/:id/rectsust
func (h *InvoiceHandler) RectifySubstitute(c *fiber.Ctx) error {
	return h.rectify(c, h.intake.RectifySubstitute)
}

// Substitute emite una F3 en sustitución de facturas simplificadas.
// POST /api/companies/:company_id/invoices/:id/sust
func (h *InvoiceHandler) Substitute(c *fiber.Ctx) error {
	return h.rectify(c, h.intake.Substitute)
}

// Void anula facturas ya confirmadas enviando registros de anulación.
// PUT /api/companies/:company_id/invoices/:id/voided
func (h *InvoiceHandler) Void(c *fiber.Ctx) error {
	ids, ok := parseIDs(c)
	if !ok {
		return nil
	}
	result, err := h.submit.Void(c.Context(), c.Params("company_id"), ids)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(result)
}

// QR devuelve la URL de validación AEAT del código QR tributario.
// GET /api/companies/:company_id/invoices/:id/qr
func (h *InvoiceHandler) QR(c *fiber.Ctx) error {
	url, err := h.intake.ValidationURL(c.Context(), c.Params("company_id"), c.Params("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(dto.QRResponse{URL: url})
}

type rectifyFn func(ctx context.Context, companyID string, ids []string, in dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error)

func (h *InvoiceHandler) rectify(c *fiber.Ctx, fn rectifyFn) error {
	ids, ok := parseIDs(c)
	if !ok {
		return nil
	}
	in, ok := parseBody(c)
	if !ok {
		return nil
	}
	invoice, err := fn(c.Context(), c.Params("company_id"), ids, in)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(invoice)
}

func parseBody(c *fiber.Ctx) (dto.CreateInvoiceRequest, bool) {
	var in dto.CreateInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
		return in, false
	}
	return in, true
}

func parseIDs(c *fiber.Ctx) ([]string, bool) {
	raw := strings.Split(c.Params("id"), ",")
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		_ = c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "ids no indicados"})
		return nil, false
	}
	return ids, true
}

// errorJSON mapea errores de dominio a códigos HTTP.
func errorJSON(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrCompanyNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrNoInvoiceLines):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrAlreadyVoided),
		errors.Is(err, domain.ErrNotSubmitted),
		errors.Is(err, domain.ErrAlreadyReferenced),
		errors.Is(err, domain.ErrInvalidInvoiceType),
		errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}
