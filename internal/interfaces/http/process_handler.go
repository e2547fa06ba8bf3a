package http

import (
	"github.com/gofiber/fiber/v2"

	appverifactu "github.com/facturasoft/verifactu-api/internal/application/verifactu"
)

// ProcessHandler dispara el barrido de pendientes y la consulta de registros
// presentados (protegido).
type ProcessHandler struct {
	submit *appverifactu.SubmitUseCase
	query  *appverifactu.QueryUseCase
}

// NewProcessHandler construye el handler.
func NewProcessHandler(submit *appverifactu.SubmitUseCase, query *appverifactu.QueryUseCase) *ProcessHandler {
	return &ProcessHandler{submit: submit, query: query}
}

// Process envía las facturas pendientes de todas las empresas en ventana.
// GET /api/process
func (h *ProcessHandler) Process(c *fiber.Ctx) error {
	resp, err := h.submit.ProcessPending(c.Context())
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(resp)
}

// Query consulta los registros presentados de una empresa en un periodo
// (?year=YYYY&month=MM, por defecto el actual).
// GET /api/companies/:company_id/query
func (h *ProcessHandler) Query(c *fiber.Ctx) error {
	resp, err := h.query.Records(c.Context(), c.Params("company_id"), c.QueryInt("year"), c.QueryInt("month"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(resp)
}
