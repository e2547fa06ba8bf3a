package verifactu

import (
	"context"

	"github.com/facturasoft/verifactu-api/internal/domain/repository"
	"github.com/facturasoft/verifactu-api/internal/infrastructure/aeat"
)

// AuthorityGateway es el puerto hacia el servicio VerifactuSOAP de la AEAT.
// Lo implementa aeat.Client; los tests lo sustituyen por un fake.
type AuthorityGateway interface {
	Submit(ctx context.Context, test bool, envelope []byte) (*aeat.SubmitResponse, error)
	Query(ctx context.Context, test bool, envelope []byte) (*aeat.QueryResponse, error)
}

// InvoicingTxRunner ejecuta una función con un repo de facturas dentro de una
// transacción (alta de cabecera, líneas y marcas de referencia atómicas).
type InvoicingTxRunner interface {
	RunInvoicing(ctx context.Context, fn func(invoiceRepo repository.InvoiceRepository) error) error
}

// AuditLog es el registro de interacciones con la AEAT (una línea por
// resultado). Lo implementa logger.AuditFile.
type AuditLog interface {
	Append(text string)
}
