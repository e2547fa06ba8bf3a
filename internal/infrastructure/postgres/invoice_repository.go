package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/facturasoft/verifactu-api/internal/domain/entity"
	"github.com/facturasoft/verifactu-api/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

const invoiceColumns = `id, company_id, number, dt, type, stype, invoice_ref_id,
	customer_name, customer_vat_id, address, postal_code, city, state, country, email,
	net_total, tax_total, grand_total, ref, comments,
	verifactu_dt, verifactu_err, verifactu_csv, fingerprint, voided, created_at, updated_at`

func scanInvoice(row pgx.Row) (*entity.Invoice, error) {
	var inv entity.Invoice
	var stype, customerVat, address, postal, city, state, country, email, ref, comments, csv *string
	err := row.Scan(
		&inv.ID, &inv.CompanyID, &inv.Number, &inv.IssueDate, &inv.Type, &stype, &inv.RefInvoiceID,
		&inv.CustomerName, &customerVat, &address, &postal, &city, &state, &country, &email,
		&inv.NetTotal, &inv.TaxTotal, &inv.GrandTotal, &ref, &comments,
		&inv.VerifactuDT, &inv.VerifactuErr, &csv, &inv.Fingerprint, &inv.Voided,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.SType = derefStr(stype)
	inv.CustomerVatID = derefStr(customerVat)
	inv.Address = derefStr(address)
	inv.PostalCode = derefStr(postal)
	inv.City = derefStr(city)
	inv.State = derefStr(state)
	inv.Country = derefStr(country)
	inv.Email = derefStr(email)
	inv.Ref = derefStr(ref)
	inv.Comments = derefStr(comments)
	inv.VerifactuCSV = derefStr(csv)
	return &inv, nil
}

func (r *InvoiceRepo) queryInvoices(ctx context.Context, sql string, args ...any) ([]*entity.Invoice, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	defer rows.Close()

	var out []*entity.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// Create persiste la cabecera de la factura (campos de cadena en NULL).
func (r *InvoiceRepo) Create(ctx context.Context, invoice *entity.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.New().String()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO invoices (id, company_id, number, dt, type, stype,
			customer_name, customer_vat_id, address, postal_code, city, state, country, email,
			net_total, tax_total, grand_total, ref, comments, verifactu_err, voided, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, 0, false, $20, $21)`,
		invoice.ID, invoice.CompanyID, invoice.Number, invoice.IssueDate, invoice.Type, nullIfEmpty(invoice.SType),
		invoice.CustomerName, nullIfEmpty(invoice.CustomerVatID), nullIfEmpty(invoice.Address),
		nullIfEmpty(invoice.PostalCode), nullIfEmpty(invoice.City), nullIfEmpty(invoice.State),
		nullIfEmpty(invoice.Country), nullIfEmpty(invoice.Email),
		invoice.NetTotal, invoice.TaxTotal, invoice.GrandTotal,
		nullIfEmpty(invoice.Ref), nullIfEmpty(invoice.Comments),
		invoice.CreatedAt, invoice.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("número de factura duplicado: %w", err)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// CreateLine persiste una línea de la factura.
func (r *InvoiceRepo) CreateLine(ctx context.Context, line *entity.InvoiceLine) error {
	if line.ID == "" {
		line.ID = uuid.New().String()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO invoice_lines (id, invoice_id, num, descr, units, price, vat_rate, base, tax, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		line.ID, line.InvoiceID, line.Num, line.Descr, line.Units, line.Price,
		line.VatRate, line.Base, line.Tax, line.Total,
	)
	if err != nil {
		return fmt.Errorf("insert invoice line: %w", err)
	}
	return nil
}

// GetByID obtiene una factura de la empresa; nil si no existe.
func (r *InvoiceRepo) GetByID(ctx context.Context, companyID, id string) (*entity.Invoice, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 AND company_id = $2`, id, companyID)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

// GetByIDs devuelve las facturas de la empresa con esos ids, por fecha.
func (r *InvoiceRepo) GetByIDs(ctx context.Context, companyID string, ids []string) ([]*entity.Invoice, error) {
	return r.queryInvoices(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE company_id = $1 AND id = ANY($2) ORDER BY dt, id`,
		companyID, ids)
}

// ListByCompany devuelve todas las facturas de la empresa por fecha.
func (r *InvoiceRepo) ListByCompany(ctx context.Context, companyID string) ([]*entity.Invoice, error) {
	return r.queryInvoices(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE company_id = $1 ORDER BY dt, id`, companyID)
}

// GetPending devuelve las facturas sin respuesta de la AEAT, las más antiguas
// primero, acotadas a limit (la AEAT admite 1000 por lote).
func (r *InvoiceRepo) GetPending(ctx context.Context, companyID string, limit int) ([]*entity.Invoice, error) {
	return r.queryInvoices(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE company_id = $1 AND verifactu_dt IS NULL
		 ORDER BY dt, id LIMIT $2`, companyID, limit)
}

// GetLines devuelve las líneas de la factura en orden.
func (r *InvoiceRepo) GetLines(ctx context.Context, invoiceID string) ([]*entity.InvoiceLine, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, invoice_id, num, descr, units, price, vat_rate, base, tax, total
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY num`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("query invoice lines: %w", err)
	}
	defer rows.Close()

	var out []*entity.InvoiceLine
	for rows.Next() {
		var l entity.InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Num, &l.Descr, &l.Units, &l.Price,
			&l.VatRate, &l.Base, &l.Tax, &l.Total); err != nil {
			return nil, fmt.Errorf("scan invoice line: %w", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

// GetVatBreakdown agrega las líneas por tipo impositivo (para el Desglose).
func (r *InvoiceRepo) GetVatBreakdown(ctx context.Context, invoiceID string) ([]entity.VatBreakdown, error) {
	rows, err := r.q.Query(ctx, `
		SELECT vat_rate, SUM(base) AS base, SUM(tax) AS tax
		FROM invoice_lines WHERE invoice_id = $1
		GROUP BY vat_rate ORDER BY vat_rate`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("query vat breakdown: %w", err)
	}
	defer rows.Close()

	var out []entity.VatBreakdown
	for rows.Next() {
		var b entity.VatBreakdown
		if err := rows.Scan(&b.VatRate, &b.Base, &b.Tax); err != nil {
			return nil, fmt.Errorf("scan vat breakdown: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetReferencing devuelve las facturas referenciadas por la rectificativa invoiceID.
func (r *InvoiceRepo) GetReferencing(ctx context.Context, invoiceID string) ([]*entity.Invoice, error) {
	return r.queryInvoices(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE invoice_ref_id = $1 ORDER BY dt, id`, invoiceID)
}

// SetReference marca la factura original como referenciada por refID.
func (r *InvoiceRepo) SetReference(ctx context.Context, invoiceID, refID string) error {
	_, err := r.q.Exec(ctx,
		`UPDATE invoices SET invoice_ref_id = $2, updated_at = now() WHERE id = $1`, invoiceID, refID)
	if err != nil {
		return fmt.Errorf("set invoice reference: %w", err)
	}
	return nil
}

// GetLastConfirmed devuelve el último registro confirmado de la cadena de la
// empresa o nil si la cadena está vacía. El orden (verifactu_dt, id) define
// el orden total de la cadena por empresa.
func (r *InvoiceRepo) GetLastConfirmed(ctx context.Context, companyID string) (*entity.Invoice, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE company_id = $1 AND fingerprint IS NOT NULL
		 ORDER BY verifactu_dt DESC, id DESC LIMIT 1`, companyID)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get last confirmed invoice: %w", err)
	}
	return inv, nil
}

// MaxNumber devuelve el mayor número asignado en la empresa para el año y la
// familia de serie ("F" o "R"); 0 si no hay facturas.
func (r *InvoiceRepo) MaxNumber(ctx context.Context, companyID string, year int, family string) (int, error) {
	var max int
	err := r.q.QueryRow(ctx, `
		SELECT COALESCE(MAX(number), 0) FROM invoices
		WHERE company_id = $1 AND EXTRACT(YEAR FROM dt) = $2 AND LEFT(type, 1) = $3`,
		companyID, year, family,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max invoice number: %w", err)
	}
	return max, nil
}

// UpdateConfirmation persiste el resultado de una línea de respuesta AEAT.
// La huella solo se escribe cuando la respuesta trajo timestamp de
// presentación; nil conserva la existente.
func (r *InvoiceRepo) UpdateConfirmation(ctx context.Context, id string, dt time.Time, errCode int, csv string, fingerprint *string) error {
	_, err := r.q.Exec(ctx, `
		UPDATE invoices
		SET verifactu_dt  = $2,
		    verifactu_err = $3,
		    verifactu_csv = COALESCE($4, verifactu_csv),
		    fingerprint   = COALESCE($5, fingerprint),
		    updated_at    = now()
		WHERE id = $1`,
		id, dt, errCode, nullIfEmpty(csv), fingerprint,
	)
	if err != nil {
		return fmt.Errorf("update invoice confirmation: %w", err)
	}
	return nil
}

// SetVoided marca la factura como anulada tras una anulación aceptada.
func (r *InvoiceRepo) SetVoided(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx,
		`UPDATE invoices SET voided = true, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("set invoice voided: %w", err)
	}
	return nil
}
