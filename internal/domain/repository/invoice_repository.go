package repository

import (
	"context"
	"time"

	"github.com/facturasoft/verifactu-api/internal/domain/entity"
)

// InvoiceRepository define el puerto de persistencia para facturas y líneas.
//
// Los campos de cadena (verifactu_dt, verifactu_err, verifactu_csv,
// fingerprint, voided) solo se escriben vía UpdateConfirmation y SetVoided;
// no existe borrado de facturas confirmadas.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	CreateLine(ctx context.Context, line *entity.InvoiceLine) error

	GetByID(ctx context.Context, companyID, id string) (*entity.Invoice, error)
	// GetByIDs devuelve las facturas de la empresa cuyos ids coincidan,
	// ordenadas por fecha de expedición.
	GetByIDs(ctx context.Context, companyID string, ids []string) ([]*entity.Invoice, error)
	ListByCompany(ctx context.Context, companyID string) ([]*entity.Invoice, error)

	// GetPending devuelve las facturas sin respuesta de la AEAT
	// (verifactu_dt IS NULL), de más antigua a más reciente, acotadas a limit.
	GetPending(ctx context.Context, companyID string, limit int) ([]*entity.Invoice, error)

	GetLines(ctx context.Context, invoiceID string) ([]*entity.InvoiceLine, error)
	// GetVatBreakdown agrega las líneas por tipo impositivo (Desglose).
	GetVatBreakdown(ctx context.Context, invoiceID string) ([]entity.VatBreakdown, error)

	// GetReferencing devuelve las facturas referenciadas por la rectificativa
	// o sustitutiva invoiceID (invoice_ref_id = invoiceID), por fecha.
	GetReferencing(ctx context.Context, invoiceID string) ([]*entity.Invoice, error)
	// SetReference marca la factura original como referenciada por refID.
	SetReference(ctx context.Context, invoiceID, refID string) error

	// GetLastConfirmed devuelve el último registro confirmado de la cadena de
	// la empresa (fingerprint NOT NULL, orden verifactu_dt DESC, id DESC) o
	// nil si la cadena está vacía.
	GetLastConfirmed(ctx context.Context, companyID string) (*entity.Invoice, error)

	// MaxNumber devuelve el mayor número asignado en la empresa para el año y
	// la familia de serie ("F" o "R"); 0 si no hay facturas.
	MaxNumber(ctx context.Context, companyID string, year int, family string) (int, error)

	// UpdateConfirmation persiste el resultado de una línea de respuesta AEAT.
	// fingerprint nil conserva la huella existente (respuesta sin timestamp de
	// presentación).
	UpdateConfirmation(ctx context.Context, id string, dt time.Time, errCode int, csv string, fingerprint *string) error
	SetVoided(ctx context.Context, id string) error
}
