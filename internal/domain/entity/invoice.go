package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de factura del registro VeriFactu (L2 del esquema AEAT).
const (
	TypeF1 = "F1" // Factura completa
	TypeF2 = "F2" // Factura simplificada (art. 7.2 y 7.3 RD 1619/2012)
	TypeF3 = "F3" // Factura en sustitución de simplificadas
	TypeR1 = "R1" // Rectificativa (error fundado en derecho, art. 80)
	TypeR2 = "R2" // Rectificativa (concurso de acreedores)
	TypeR5 = "R5" // Rectificativa sobre simplificadas
)

// Subtipos de rectificativa (TipoRectificativa).
const (
	RectIncremental = "I" // Por diferencias
	RectSubstitute  = "S" // Por sustitución
)

// Invoice representa una factura emitida y su estado de cadena VeriFactu.
//
// Los campos de cadena (VerifactuDT, VerifactuErr, Fingerprint, Voided) los
// escribe únicamente el reconciliador tras la respuesta de la AEAT; la huella
// confirmada nunca se reescribe, solo se añade.
type Invoice struct {
	ID        string
	CompanyID string
	Number    int       // Secuencia por empresa, año y familia (F/R)
	IssueDate time.Time // Fecha de expedición (dt)
	Type      string    // F1, F2, F3, R1, R2, R5
	SType     string    // "" | I | S (solo rectificativas)

	// RefInvoiceID apunta a la rectificativa/sustitutiva que referencia esta
	// factura; una factura referenciada no puede anularse ni re-referenciarse.
	RefInvoiceID *string

	// Destinatario. CustomerVatID vacío = factura sin identificación (art. 6.1.d).
	CustomerName  string
	CustomerVatID string
	Address       string
	PostalCode    string
	City          string
	State         string
	Country       string
	Email         string

	NetTotal   decimal.Decimal // Base imponible total
	TaxTotal   decimal.Decimal // Cuota de IVA total (CuotaTotal)
	GrandTotal decimal.Decimal // Importe total (ImporteTotal)

	Ref      string // Referencia libre del cliente
	Comments string // DescripcionOperacion si no está vacío

	// Estado de cadena VeriFactu.
	VerifactuDT  *time.Time // Timestamp de presentación confirmado (UTC); nil = pendiente
	VerifactuErr int        // Código de error AEAT; 0 = aceptada
	VerifactuCSV string     // CSVs devueltos por la AEAT, uno por línea
	Fingerprint  *string    // Huella confirmada; nil hasta que la AEAT devuelve timestamp
	Voided       bool       // true solo tras una anulación aceptada

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Sent indica si la factura ya tiene respuesta de la AEAT (aceptada o rechazada).
func (i *Invoice) Sent() bool { return i.VerifactuDT != nil }

// Rejected indica si la AEAT rechazó el último envío.
func (i *Invoice) Rejected() bool { return i.VerifactuErr != 0 }

// IsRectifying indica si el tipo referencia facturas anteriores (R* o F3).
func (i *Invoice) IsRectifying() bool {
	return len(i.Type) > 0 && (i.Type[0] == 'R' || i.Type == TypeF3)
}

// InvoiceLine es una línea descriptiva de la factura. Las líneas se agregan
// por tipo impositivo para el Desglose del registro.
type InvoiceLine struct {
	ID        string
	InvoiceID string
	Num       int
	Descr     string
	Units     decimal.Decimal
	Price     decimal.Decimal // Precio unitario sin IVA
	VatRate   decimal.Decimal // Tipo impositivo en % (0 = exenta/no sujeta)
	Base      decimal.Decimal // Base imponible de la línea (bi)
	Tax       decimal.Decimal // Cuota de IVA de la línea (tvat)
	Total     decimal.Decimal
}

// VatBreakdown es el agregado por tipo impositivo de las líneas de una
// factura (entrada del Desglose y de ImporteRectificacion).
type VatBreakdown struct {
	VatRate decimal.Decimal
	Base    decimal.Decimal
	Tax     decimal.Decimal
}
