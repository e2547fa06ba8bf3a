package http

import (
	"github.com/gofiber/fiber/v2"

	appverifactu "github.com/facturasoft/verifactu-api/internal/application/verifactu"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	IntakeUC *appverifactu.IntakeUseCase
	SubmitUC *appverifactu.SubmitUseCase
	QueryUC  *appverifactu.QueryUseCase
	APIToken string
}

// Router registra las rutas de la API. Todas van protegidas por el token
// estático del backend.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", TokenMiddleware(deps.APIToken))

	processHandler := NewProcessHandler(deps.SubmitUC, deps.QueryUC)
	api.Get("/process", processHandler.Process)

	companies := api.Group("/companies/:company_id")
	companies.Get("/query", processHandler.Query)

	invoices := companies.Group("/invoices")
	invoiceHandler := NewInvoiceHandler(deps.IntakeUC, deps.SubmitUC)
	invoices.Get("/", invoiceHandler.List)
	invoices.Post("/", invoiceHandler.Create)
	invoices.Get("/:id", invoiceHandler.GetByID)
	invoices.Get("/:id/qr", invoiceHandler.QR)
	invoices.Post("/:id/rect", invoiceHandler.Rectify)
	invoices.Post("/:id/rect2", invoiceHandler.RectifyInsolvency)
	invoices.Post("/:id/rectsust", invoiceHandler.RectifySubstitute)
	invoices.Post("/:id/sust", invoiceHandler.Substitute)
	invoices.Put("/:id/voided", invoiceHandler.Void)
}
