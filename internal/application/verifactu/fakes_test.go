package verifactu_test

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/facturasoft/verifactu-api/internal/domain/entity"
	"github.com/facturasoft/verifactu-api/internal/domain/repository"
	"github.com/facturasoft/verifactu-api/internal/infrastructure/aeat"
)

// ── Empresa y facturas de prueba ──────────────────────────────────────────────

func testCompany() *entity.Company {
	return &entity.Company{
		ID:       "c1",
		Name:     "ACME SL",
		VatID:    "B12345678",
		Test:     true,
		FirstNum: 1,
	}
}

func pendingInvoice(id string, number int, typ string, date time.Time) *entity.Invoice {
	return &entity.Invoice{
		ID:         id,
		CompanyID:  "c1",
		Number:     number,
		IssueDate:  date,
		Type:       typ,
		TaxTotal:   decimal.RequireFromString("21.00"),
		GrandTotal: decimal.RequireFromString("121.00"),
	}
}

func confirmedInvoice(id string, number int, typ string, date time.Time, fingerprint string) *entity.Invoice {
	inv := pendingInvoice(id, number, typ, date)
	dt := date.Add(time.Hour)
	inv.VerifactuDT = &dt
	inv.Fingerprint = &fingerprint
	return inv
}

// ── Fakes de los puertos ──────────────────────────────────────────────────────

type fakeCompanyRepo struct {
	companies []*entity.Company
	nextSends map[string]time.Time
}

var _ repository.CompanyRepository = (*fakeCompanyRepo)(nil)

func newFakeCompanyRepo(companies ...*entity.Company) *fakeCompanyRepo {
	return &fakeCompanyRepo{companies: companies, nextSends: make(map[string]time.Time)}
}

func (r *fakeCompanyRepo) GetByID(_ context.Context, id string) (*entity.Company, error) {
	for _, c := range r.companies {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (r *fakeCompanyRepo) List(_ context.Context) ([]*entity.Company, error) {
	return r.companies, nil
}

func (r *fakeCompanyRepo) UpdateNextSend(_ context.Context, companyID string, next time.Time) error {
	r.nextSends[companyID] = next
	return nil
}

type confirmation struct {
	id          string
	dt          time.Time
	errCode     int
	csv         string
	fingerprint *string
}

type fakeInvoiceRepo struct {
	invoices      map[string]*entity.Invoice
	lines         map[string][]*entity.InvoiceLine
	pending       []*entity.Invoice
	lastConfirmed *entity.Invoice
	maxNumbers    map[string]int // "año/familia" → MAX(number)

	created       []*entity.Invoice
	createdLines  []*entity.InvoiceLine
	confirmations []confirmation
	voided        []string
	refs          map[string]string // id factura referenciada → id rectificativa
}

var _ repository.InvoiceRepository = (*fakeInvoiceRepo)(nil)

func newFakeInvoiceRepo(invoices ...*entity.Invoice) *fakeInvoiceRepo {
	r := &fakeInvoiceRepo{
		invoices:   make(map[string]*entity.Invoice),
		lines:      make(map[string][]*entity.InvoiceLine),
		maxNumbers: make(map[string]int),
		refs:       make(map[string]string),
	}
	for _, inv := range invoices {
		r.invoices[inv.ID] = inv
	}
	return r
}

func (r *fakeInvoiceRepo) Create(_ context.Context, invoice *entity.Invoice) error {
	r.created = append(r.created, invoice)
	r.invoices[invoice.ID] = invoice
	return nil
}

func (r *fakeInvoiceRepo) CreateLine(_ context.Context, line *entity.InvoiceLine) error {
	r.createdLines = append(r.createdLines, line)
	r.lines[line.InvoiceID] = append(r.lines[line.InvoiceID], line)
	return nil
}

func (r *fakeInvoiceRepo) GetByID(_ context.Context, companyID, id string) (*entity.Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok || inv.CompanyID != companyID {
		return nil, nil
	}
	return inv, nil
}

func (r *fakeInvoiceRepo) GetByIDs(_ context.Context, companyID string, ids []string) ([]*entity.Invoice, error) {
	var out []*entity.Invoice
	for _, id := range ids {
		if inv, ok := r.invoices[id]; ok && inv.CompanyID == companyID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *fakeInvoiceRepo) ListByCompany(_ context.Context, companyID string) ([]*entity.Invoice, error) {
	var out []*entity.Invoice
	for _, inv := range r.invoices {
		if inv.CompanyID == companyID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *fakeInvoiceRepo) GetPending(_ context.Context, _ string, limit int) ([]*entity.Invoice, error) {
	if len(r.pending) > limit {
		return r.pending[:limit], nil
	}
	return r.pending, nil
}

func (r *fakeInvoiceRepo) GetLines(_ context.Context, invoiceID string) ([]*entity.InvoiceLine, error) {
	return r.lines[invoiceID], nil
}

func (r *fakeInvoiceRepo) GetVatBreakdown(_ context.Context, invoiceID string) ([]entity.VatBreakdown, error) {
	byRate := make(map[string]*entity.VatBreakdown)
	var order []string
	for _, l := range r.lines[invoiceID] {
		key := l.VatRate.String()
		bd, ok := byRate[key]
		if !ok {
			bd = &entity.VatBreakdown{VatRate: l.VatRate}
			byRate[key] = bd
			order = append(order, key)
		}
		bd.Base = bd.Base.Add(l.Base)
		bd.Tax = bd.Tax.Add(l.Tax)
	}
	out := make([]entity.VatBreakdown, 0, len(order))
	for _, key := range order {
		out = append(out, *byRate[key])
	}
	return out, nil
}

func (r *fakeInvoiceRepo) GetReferencing(_ context.Context, invoiceID string) ([]*entity.Invoice, error) {
	var out []*entity.Invoice
	for _, inv := range r.invoices {
		if inv.RefInvoiceID != nil && *inv.RefInvoiceID == invoiceID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *fakeInvoiceRepo) SetReference(_ context.Context, invoiceID, refID string) error {
	r.refs[invoiceID] = refID
	return nil
}

func (r *fakeInvoiceRepo) GetLastConfirmed(_ context.Context, _ string) (*entity.Invoice, error) {
	return r.lastConfirmed, nil
}

func (r *fakeInvoiceRepo) MaxNumber(_ context.Context, _ string, year int, family string) (int, error) {
	return r.maxNumbers[fmt.Sprintf("%d/%s", year, family)], nil
}

func (r *fakeInvoiceRepo) UpdateConfirmation(_ context.Context, id string, dt time.Time, errCode int, csv string, fingerprint *string) error {
	r.confirmations = append(r.confirmations, confirmation{id: id, dt: dt, errCode: errCode, csv: csv, fingerprint: fingerprint})
	return nil
}

func (r *fakeInvoiceRepo) SetVoided(_ context.Context, id string) error {
	r.voided = append(r.voided, id)
	return nil
}

func (r *fakeInvoiceRepo) confirmationFor(id string) *confirmation {
	for i := range r.confirmations {
		if r.confirmations[i].id == id {
			return &r.confirmations[i]
		}
	}
	return nil
}

// fakeTxRunner ejecuta la función directamente sobre el fake, sin transacción.
type fakeTxRunner struct {
	repo *fakeInvoiceRepo
}

func (t *fakeTxRunner) RunInvoicing(_ context.Context, fn func(repository.InvoiceRepository) error) error {
	return fn(t.repo)
}

type fakeGateway struct {
	submitResp *aeat.SubmitResponse
	submitErr  error
	queryResp  *aeat.QueryResponse
	queryErr   error

	submitted [][]byte
	queried   [][]byte
	testFlags []bool
}

func (g *fakeGateway) Submit(_ context.Context, test bool, envelope []byte) (*aeat.SubmitResponse, error) {
	g.submitted = append(g.submitted, envelope)
	g.testFlags = append(g.testFlags, test)
	if g.submitErr != nil {
		return nil, g.submitErr
	}
	return g.submitResp, nil
}

func (g *fakeGateway) Query(_ context.Context, test bool, envelope []byte) (*aeat.QueryResponse, error) {
	g.queried = append(g.queried, envelope)
	g.testFlags = append(g.testFlags, test)
	if g.queryErr != nil {
		return nil, g.queryErr
	}
	return g.queryResp, nil
}

type fakeAudit struct {
	entries []string
}

func (a *fakeAudit) Append(text string) { a.entries = append(a.entries, text) }

// ── Constructores de respuestas AEAT ──────────────────────────────────────────

func respLine(numSerie, estado, code, descr string) aeat.ResponseLine {
	l := aeat.ResponseLine{
		EstadoRegistro:           estado,
		CodigoErrorRegistro:      code,
		DescripcionErrorRegistro: descr,
	}
	l.IDFactura.IDEmisorFactura = "B12345678"
	l.IDFactura.NumSerieFactura = numSerie
	l.Operacion.TipoOperacion = "Alta"
	return l
}

func submitResponse(csv, wait, tsPresentacion string, lines ...aeat.ResponseLine) *aeat.SubmitResponse {
	resp := &aeat.SubmitResponse{CSV: csv, TiempoEsperaEnvio: wait, Lineas: lines}
	resp.DatosPresentacion.TimestampPresentacion = tsPresentacion
	return resp
}
