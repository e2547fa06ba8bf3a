package verifactu

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/facturasoft/verifactu-api/internal/application/dto"
	"github.com/facturasoft/verifactu-api/internal/domain"
	"github.com/facturasoft/verifactu-api/internal/domain/entity"
	"github.com/facturasoft/verifactu-api/internal/domain/repository"
	vf "github.com/facturasoft/verifactu-api/internal/domain/verifactu"
	"github.com/facturasoft/verifactu-api/internal/infrastructure/aeat"
)

// IntakeUseCase da de alta facturas y rectificativas. El tipo lo decide la
// operación (y la presencia de NIF de destinatario), nunca el cliente; la
// numeración es una secuencia por empresa, año y familia de serie (F/R).
type IntakeUseCase struct {
	companyRepo repository.CompanyRepository
	invoiceRepo repository.InvoiceRepository
	txRunner    InvoicingTxRunner
}

// NewIntakeUseCase construye el caso de uso.
func NewIntakeUseCase(companyRepo repository.CompanyRepository, invoiceRepo repository.InvoiceRepository, txRunner InvoicingTxRunner) *IntakeUseCase {
	return &IntakeUseCase{companyRepo: companyRepo, invoiceRepo: invoiceRepo, txRunner: txRunner}
}

// Create da de alta una factura ordinaria: F1 con NIF de destinatario, F2
// (simplificada) sin él.
func (uc *IntakeUseCase) Create(ctx context.Context, companyID string, in dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	company, err := uc.company(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return uc.insert(ctx, company, in, typeByVat(in, entity.TypeF1, entity.TypeF2), "", nil)
}

// Rectify emite una rectificativa por diferencias (R1 con NIF, R5 sin él)
// sobre facturas F1/F2.
func (uc *IntakeUseCase) Rectify(ctx context.Context, companyID string, ids []string, in dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	return uc.rectify(ctx, companyID, ids, in, typeByVatFn(entity.TypeR1, entity.TypeR5), entity.RectIncremental, entity.TypeF1, entity.TypeF2)
}

// RectifyInsolvency emite una rectificativa por concurso de acreedores (R2,
// por diferencias) sobre facturas F1.
func (uc *IntakeUseCase) RectifyInsolvency(ctx context.Context, companyID string, ids []string, in dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	return uc.rectify(ctx, companyID, ids, in, fixedType(entity.TypeR2), entity.RectIncremental, entity.TypeF1)
}

// RectifySubstitute emite una rectificativa por sustitución (R1 con NIF, R5
// sin él) sobre facturas F1/F2.
func (uc *IntakeUseCase) RectifySubstitute(ctx context.Context, companyID string, ids []string, in dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	return uc.rectify(ctx, companyID, ids, in, typeByVatFn(entity.TypeR1, entity.TypeR5), entity.RectSubstitute, entity.TypeF1, entity.TypeF2)
}

// Substitute emite una factura F3 en sustitución de simplificadas (F2).
func (uc *IntakeUseCase) Substitute(ctx context.Context, companyID string, ids []string, in dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	return uc.rectify(ctx, companyID, ids, in, fixedType(entity.TypeF3), "", entity.TypeF2)
}

// List devuelve todas las facturas de la empresa con su número formateado.
func (uc *IntakeUseCase) List(ctx context.Context, companyID string) ([]dto.InvoiceResponse, error) {
	company, err := uc.company(ctx, companyID)
	if err != nil {
		return nil, err
	}
	invoices, err := uc.invoiceRepo.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, *toInvoiceResponse(company, inv, nil))
	}
	return out, nil
}

// Get devuelve una factura con sus líneas.
func (uc *IntakeUseCase) Get(ctx context.Context, companyID, id string) (*dto.InvoiceResponse, error) {
	company, err := uc.company(ctx, companyID)
	if err != nil {
		return nil, err
	}
	inv, err := uc.invoiceRepo.GetByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	lines, err := uc.invoiceRepo.GetLines(ctx, id)
	if err != nil {
		return nil, err
	}
	return toInvoiceResponse(company, inv, lines), nil
}

// ValidationURL devuelve la URL de validación AEAT del código QR tributario
// de la factura.
func (uc *IntakeUseCase) ValidationURL(ctx context.Context, companyID, id string) (string, error) {
	company, err := uc.company(ctx, companyID)
	if err != nil {
		return "", err
	}
	inv, err := uc.invoiceRepo.GetByID(ctx, companyID, id)
	if err != nil {
		return "", err
	}
	if inv == nil {
		return "", domain.ErrNotFound
	}
	return aeat.ValidationURL(company, inv, vf.DisplayNumber(company, inv)), nil
}

// ── internos ──────────────────────────────────────────────────────────────────

func (uc *IntakeUseCase) company(ctx context.Context, companyID string) (*entity.Company, error) {
	company, err := uc.companyRepo.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrCompanyNotFound
	}
	return company, nil
}

// rectify valida las facturas referenciadas y da de alta la rectificativa o
// sustitutiva que las referencia.
func (uc *IntakeUseCase) rectify(ctx context.Context, companyID string, ids []string, in dto.CreateInvoiceRequest, typeOf func(dto.CreateInvoiceRequest) string, stype string, allowed ...string) (*dto.InvoiceResponse, error) {
	company, err := uc.company(ctx, companyID)
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return nil, domain.ErrNotFound
	}
	refs, err := uc.invoiceRepo.GetByIDs(ctx, companyID, ids)
	if err != nil {
		return nil, err
	}
	if len(refs) != len(ids) {
		return nil, domain.ErrNotFound
	}
	for _, ref := range refs {
		if err := vf.CanReference(ref, allowed...); err != nil {
			return nil, fmt.Errorf("%w: %s", err, vf.DisplayNumber(company, ref))
		}
	}

	return uc.insert(ctx, company, in, typeOf(in), stype, refs)
}

// insert calcula totales y numeración y persiste cabecera, líneas y marcas
// de referencia en una transacción.
func (uc *IntakeUseCase) insert(ctx context.Context, company *entity.Company, in dto.CreateInvoiceRequest, typ, stype string, refs []*entity.Invoice) (*dto.InvoiceResponse, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, domain.ErrInvalidInput
	}
	if len(in.Lines) == 0 {
		return nil, domain.ErrNoInvoiceLines
	}

	now := time.Now()

	// Totales con redondeo a 2 decimales por línea.
	var netTotal, taxTotal, grandTotal decimal.Decimal
	lines := make([]*entity.InvoiceLine, 0, len(in.Lines))
	for i, l := range in.Lines {
		units := l.Units
		if units.IsZero() {
			units = decimal.NewFromInt(1)
		}
		base := units.Mul(l.Price).Round(2)
		tax := decimal.Zero
		if l.Vat.IsPositive() {
			tax = base.Mul(l.Vat).Div(decimal.NewFromInt(100)).Round(2)
		}
		total := base.Add(tax)

		netTotal = netTotal.Add(base)
		taxTotal = taxTotal.Add(tax)
		grandTotal = grandTotal.Add(total)

		lines = append(lines, &entity.InvoiceLine{
			ID:      uuid.New().String(),
			Num:     i + 1,
			Descr:   l.Descr,
			Units:   units,
			Price:   l.Price,
			VatRate: l.Vat,
			Base:    base,
			Tax:     tax,
			Total:   total,
		})
	}

	number, err := uc.nextNumber(ctx, company, typ, now.Year())
	if err != nil {
		return nil, err
	}

	inv := &entity.Invoice{
		ID:            uuid.New().String(),
		CompanyID:     company.ID,
		Number:        number,
		IssueDate:     now,
		Type:          typ,
		SType:         stype,
		CustomerName:  strings.TrimSpace(in.Name),
		CustomerVatID: vf.NormalizeID(in.VatID),
		Address:       strings.TrimSpace(in.Address),
		PostalCode:    strings.TrimSpace(in.PostalCode),
		City:          strings.TrimSpace(in.City),
		State:         strings.TrimSpace(in.State),
		Country:       strings.TrimSpace(in.Country),
		Email:         strings.TrimSpace(in.Email),
		NetTotal:      netTotal,
		TaxTotal:      taxTotal,
		GrandTotal:    grandTotal,
		Ref:           strings.TrimSpace(in.Ref),
		Comments:      strings.TrimSpace(in.Comments),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = uc.txRunner.RunInvoicing(ctx, func(repo repository.InvoiceRepository) error {
		if err := repo.Create(ctx, inv); err != nil {
			return err
		}
		for _, line := range lines {
			line.InvoiceID = inv.ID
			if err := repo.CreateLine(ctx, line); err != nil {
				return err
			}
		}
		for _, ref := range refs {
			if err := repo.SetReference(ctx, ref.ID, inv.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return toInvoiceResponse(company, inv, lines), nil
}

// nextNumber asigna el siguiente número de la serie: MAX+1 dentro de la
// familia (F/R) y el año; first_num de la empresa si la serie está vacía.
func (uc *IntakeUseCase) nextNumber(ctx context.Context, company *entity.Company, typ string, year int) (int, error) {
	family := "F"
	if strings.HasPrefix(typ, "R") {
		family = "R"
	}
	max, err := uc.invoiceRepo.MaxNumber(ctx, company.ID, year, family)
	if err != nil {
		return 0, err
	}
	if max == 0 {
		first := company.FirstNum
		if first <= 0 {
			first = 1
		}
		return first, nil
	}
	return max + 1, nil
}

func typeByVat(in dto.CreateInvoiceRequest, withVat, withoutVat string) string {
	if strings.TrimSpace(in.VatID) != "" {
		return withVat
	}
	return withoutVat
}

func typeByVatFn(withVat, withoutVat string) func(dto.CreateInvoiceRequest) string {
	return func(in dto.CreateInvoiceRequest) string {
		return typeByVat(in, withVat, withoutVat)
	}
}

func fixedType(typ string) func(dto.CreateInvoiceRequest) string {
	return func(dto.CreateInvoiceRequest) string { return typ }
}

func toInvoiceResponse(company *entity.Company, inv *entity.Invoice, lines []*entity.InvoiceLine) *dto.InvoiceResponse {
	resp := &dto.InvoiceResponse{
		ID:           inv.ID,
		CompanyID:    inv.CompanyID,
		Number:       inv.Number,
		NumberFormat: vf.DisplayNumber(company, inv),
		Date:         inv.IssueDate.Format("2006-01-02"),
		Type:         inv.Type,
		SType:        inv.SType,
		Name:         inv.CustomerName,
		VatID:        inv.CustomerVatID,
		Address:      inv.Address,
		PostalCode:   inv.PostalCode,
		City:         inv.City,
		State:        inv.State,
		Country:      inv.Country,
		Email:        inv.Email,
		NetTotal:     inv.NetTotal,
		TaxTotal:     inv.TaxTotal,
		GrandTotal:   inv.GrandTotal,
		Ref:          inv.Ref,
		Comments:     inv.Comments,
		VerifactuErr: inv.VerifactuErr,
		VerifactuCSV: inv.VerifactuCSV,
		Voided:       inv.Voided,
	}
	if inv.RefInvoiceID != nil {
		resp.RefInvoiceID = *inv.RefInvoiceID
	}
	if inv.VerifactuDT != nil {
		resp.VerifactuDT = inv.VerifactuDT.UTC().Format("2006-01-02 15:04:05")
	}
	if inv.Fingerprint != nil {
		resp.Fingerprint = *inv.Fingerprint
	}
	for _, l := range lines {
		resp.Lines = append(resp.Lines, dto.InvoiceLineResponse{
			ID:    l.ID,
			Num:   l.Num,
			Descr: l.Descr,
			Units: l.Units,
			Price: l.Price,
			Vat:   l.VatRate,
			Base:  l.Base,
			Tax:   l.Tax,
			Total: l.Total,
		})
	}
	return resp
}
