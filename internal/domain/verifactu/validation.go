// Reglas de admisión previas a cualquier envío: se validan de forma síncrona
// en la toma de datos y nunca llegan a la AEAT si fallan.

package verifactu

import (
	"github.com/facturasoft/verifactu-api/internal/domain"
	"github.com/facturasoft/verifactu-api/internal/domain/entity"
)

// CanVoid comprueba que una factura es anulable: enviada a la AEAT, no
// anulada ya y no referenciada por una rectificativa o sustitutiva.
func CanVoid(inv *entity.Invoice) error {
	switch {
	case inv.Voided:
		return domain.ErrAlreadyVoided
	case !inv.Sent():
		return domain.ErrNotSubmitted
	case inv.RefInvoiceID != nil:
		return domain.ErrAlreadyReferenced
	}
	return nil
}

// CanReference comprueba que una factura puede ser referenciada por una
// rectificativa o sustitutiva: tipo original admitido, sin referencia previa
// y sin anular. allowed son los tipos de la factura original que la
// operación acepta (ej: F1 y F2 para una R1/R5).
func CanReference(inv *entity.Invoice, allowed ...string) error {
	ok := false
	for _, t := range allowed {
		if inv.Type == t {
			ok = true
			break
		}
	}
	switch {
	case !ok:
		return domain.ErrInvalidInvoiceType
	case inv.RefInvoiceID != nil:
		return domain.ErrAlreadyReferenced
	case inv.Voided:
		return domain.ErrAlreadyVoided
	}
	return nil
}
