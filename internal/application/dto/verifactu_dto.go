package dto

import "github.com/shopspring/decimal"

// CreateInvoiceRequest body para POST /invoices y los endpoints de
// rectificación. El tipo de factura lo decide el servidor: F1/F2 según haya
// NIF de destinatario, R1/R2/R5/F3 según el endpoint.
type CreateInvoiceRequest struct {
	Name       string               `json:"name"`
	VatID      string               `json:"vat_id,omitempty"`
	Address    string               `json:"address,omitempty"`
	PostalCode string               `json:"postal_code,omitempty"`
	City       string               `json:"city,omitempty"`
	State      string               `json:"state,omitempty"`
	Country    string               `json:"country,omitempty"`
	Email      string               `json:"email,omitempty"`
	Ref        string               `json:"ref,omitempty"`
	Comments   string               `json:"comments,omitempty"`
	Lines      []InvoiceLineRequest `json:"lines"`
}

// InvoiceLineRequest línea de factura. Units vacío cuenta como 1; Vat 0 o
// ausente marca la línea como exenta/no sujeta.
type InvoiceLineRequest struct {
	Descr string          `json:"descr"`
	Units decimal.Decimal `json:"units,omitempty"`
	Price decimal.Decimal `json:"price"`
	Vat   decimal.Decimal `json:"vat,omitempty"`
}

// InvoiceResponse factura con su estado de cadena VeriFactu.
type InvoiceResponse struct {
	ID           string                `json:"id"`
	CompanyID    string                `json:"company_id"`
	Number       int                   `json:"number"`
	NumberFormat string                `json:"number_format"`
	Date         string                `json:"date"`
	Type         string                `json:"type"`
	SType        string                `json:"stype,omitempty"`
	RefInvoiceID string                `json:"invoice_ref_id,omitempty"`
	Name         string                `json:"name"`
	VatID        string                `json:"vat_id,omitempty"`
	Address      string                `json:"address,omitempty"`
	PostalCode   string                `json:"postal_code,omitempty"`
	City         string                `json:"city,omitempty"`
	State        string                `json:"state,omitempty"`
	Country      string                `json:"country,omitempty"`
	Email        string                `json:"email,omitempty"`
	NetTotal     decimal.Decimal       `json:"net_total"`
	TaxTotal     decimal.Decimal       `json:"tax_total"`
	GrandTotal   decimal.Decimal       `json:"grand_total"`
	Ref          string                `json:"ref,omitempty"`
	Comments     string                `json:"comments,omitempty"`
	VerifactuDT  string                `json:"verifactu_dt,omitempty"`
	VerifactuErr int                   `json:"verifactu_err"`
	VerifactuCSV string                `json:"verifactu_csv,omitempty"`
	Fingerprint  string                `json:"fingerprint,omitempty"`
	Voided       bool                  `json:"voided"`
	Lines        []InvoiceLineResponse `json:"lines,omitempty"`
}

// InvoiceLineResponse línea en la respuesta, con los importes calculados.
type InvoiceLineResponse struct {
	ID    string          `json:"id"`
	Num   int             `json:"num"`
	Descr string          `json:"descr"`
	Units decimal.Decimal `json:"units"`
	Price decimal.Decimal `json:"price"`
	Vat   decimal.Decimal `json:"vat"`
	Base  decimal.Decimal `json:"bi"`
	Tax   decimal.Decimal `json:"tvat"`
	Total decimal.Decimal `json:"total"`
}

// SendLineResult resultado de un registro dentro de un lote enviado.
type SendLineResult struct {
	ID       string `json:"id,omitempty"`
	Num      string `json:"num"`
	ErrCode  string `json:"cod_error,omitempty"`
	ErrDescr string `json:"descr_error,omitempty"`
}

// SendResult resultado de un lote: registros aceptados y rechazados, o un
// mensaje cuando no hubo envío (sin pendientes, espera activa, fallo de
// transporte).
type SendResult struct {
	Message string           `json:"message,omitempty"`
	OK      []SendLineResult `json:"ok"`
	KO      []SendLineResult `json:"ko"`
}

// ProcessResponse resultado del barrido de pendientes, por empresa.
type ProcessResponse struct {
	Companies map[string]*SendResult `json:"companies"`
}

// QueriedRecordResponse registro devuelto por la consulta de un periodo.
type QueriedRecordResponse struct {
	IssuerVatID string `json:"id_emisor"`
	NumSerie    string `json:"num_serie"`
	IssueDate   string `json:"fecha_expedicion"`
	Type        string `json:"tipo,omitempty"`
	TaxTotal    string `json:"cuota_total,omitempty"`
	GrandTotal  string `json:"importe_total,omitempty"`
	Fingerprint string `json:"huella,omitempty"`
	Status      string `json:"estado,omitempty"`
	PresentedAt string `json:"timestamp_presentacion,omitempty"`
}

// QueryRecordsResponse respuesta completa de la consulta.
type QueryRecordsResponse struct {
	Year    int                     `json:"year"`
	Month   string                  `json:"month"`
	Records []QueriedRecordResponse `json:"records"`
}

// QRResponse URL de validación del código QR de una factura.
type QRResponse struct {
	URL string `json:"url"`
}
