package verifactu

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/facturasoft/verifactu-api/internal/application/dto"
	"github.com/facturasoft/verifactu-api/internal/domain"
	"github.com/facturasoft/verifactu-api/internal/domain/entity"
	"github.com/facturasoft/verifactu-api/internal/domain/repository"
	vf "github.com/facturasoft/verifactu-api/internal/domain/verifactu"
	"github.com/facturasoft/verifactu-api/internal/infrastructure/aeat"
	"github.com/facturasoft/verifactu-api/pkg/logger"
)

// La AEAT admite como máximo 1000 registros por envío.
const batchLimit = 1000

// SubmitUseCase orquesta el ciclo completo de envío a la AEAT:
//
//	pendientes → huellas encadenadas → XML → sobre SOAP → envío mTLS → reconciliación DB
//
// Un mutex por empresa garantiza un único lote en vuelo por cadena; empresas
// distintas se procesan de forma independiente.
type SubmitUseCase struct {
	companyRepo repository.CompanyRepository
	invoiceRepo repository.InvoiceRepository
	builder     *aeat.RecordBuilder
	gateway     AuthorityGateway
	audit       AuditLog
	log         *logger.Logger

	locks sync.Map // company_id → *sync.Mutex
}

// NewSubmitUseCase construye el caso de uso con sus dependencias.
func NewSubmitUseCase(
	companyRepo repository.CompanyRepository,
	invoiceRepo repository.InvoiceRepository,
	builder *aeat.RecordBuilder,
	gateway AuthorityGateway,
	audit AuditLog,
	log *logger.Logger,
) *SubmitUseCase {
	return &SubmitUseCase{
		companyRepo: companyRepo,
		invoiceRepo: invoiceRepo,
		builder:     builder,
		gateway:     gateway,
		audit:       audit,
		log:         log,
	}
}

// ProcessPending barre todas las empresas y envía sus facturas pendientes.
// Las empresas en ventana de espera (next_send futuro) se saltan con un
// mensaje; un fallo en una empresa no detiene a las demás.
func (uc *SubmitUseCase) ProcessPending(ctx context.Context) (*dto.ProcessResponse, error) {
	companies, err := uc.companyRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	resp := &dto.ProcessResponse{Companies: make(map[string]*dto.SendResult, len(companies))}
	now := time.Now()

	for _, company := range companies {
		if !company.DueNow(now) {
			wait := int(company.NextSend.Sub(now).Seconds())
			resp.Companies[company.ID] = &dto.SendResult{
				Message: fmt.Sprintf("Próximo envío en %d segundos", wait),
			}
			continue
		}

		pending, err := uc.invoiceRepo.GetPending(ctx, company.ID, batchLimit)
		if err != nil {
			uc.log.Error().Err(err).Str("company_id", company.ID).Msg("error obteniendo pendientes")
			resp.Companies[company.ID] = &dto.SendResult{Message: err.Error()}
			continue
		}

		result, err := uc.send(ctx, company, pending, false)
		if err != nil {
			uc.log.Error().Err(err).Str("company_id", company.ID).Msg("error enviando lote")
			resp.Companies[company.ID] = &dto.SendResult{Message: err.Error()}
			continue
		}
		resp.Companies[company.ID] = result
	}
	return resp, nil
}

// Void anula facturas ya confirmadas: valida cada una de forma síncrona y
// envía un lote de registros de anulación por el mismo canal que las altas.
func (uc *SubmitUseCase) Void(ctx context.Context, companyID string, ids []string) (*dto.SendResult, error) {
	company, err := uc.companyRepo.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrCompanyNotFound
	}

	invoices, err := uc.invoiceRepo.GetByIDs(ctx, companyID, ids)
	if err != nil {
		return nil, err
	}
	if len(invoices) != len(ids) {
		return nil, domain.ErrNotFound
	}
	for _, inv := range invoices {
		if err := vf.CanVoid(inv); err != nil {
			return nil, fmt.Errorf("%w: %s", err, vf.DisplayNumber(company, inv))
		}
	}

	return uc.send(ctx, company, invoices, true)
}

// builtRecord conserva, por registro construido, el eslabón anterior usado al
// calcular la huella; la reconciliación lo necesita para recalcularla con el
// timestamp de presentación de la AEAT.
type builtRecord struct {
	invoice  *entity.Invoice
	numSerie string
	prev     *vf.ChainLink
}

// send construye, envía y reconcilia un lote (altas o anulaciones) de una
// empresa. Un fallo de transporte no persiste nada y devuelve un resultado
// con mensaje; la cadena solo avanza con respuestas reconciliadas.
func (uc *SubmitUseCase) send(ctx context.Context, company *entity.Company, invoices []*entity.Invoice, voided bool) (*dto.SendResult, error) {
	result := &dto.SendResult{OK: []dto.SendLineResult{}, KO: []dto.SendLineResult{}}
	if len(invoices) == 0 {
		result.Message = "No hay facturas para enviar"
		return result, nil
	}

	mu := uc.companyLock(company.ID)
	mu.Lock()
	defer mu.Unlock()

	now := time.Now()
	genDT := vf.GenTimestamp(now)

	lastInv, err := uc.invoiceRepo.GetLastConfirmed(ctx, company.ID)
	if err != nil {
		return nil, err
	}
	chain := chainLinkOf(company, lastInv)

	// Avance optimista de la cadena: cada registro encadena con el anterior
	// del propio lote aunque la AEAT aún no lo haya confirmado.
	built := make(map[string]builtRecord, len(invoices))
	records := make([]*etree.Element, 0, len(invoices))
	for _, inv := range invoices {
		numSerie := vf.DisplayNumber(company, inv)

		var huella string
		if voided {
			huella = vf.VoidFingerprint(company, inv, chain, genDT)
		} else {
			huella = vf.Fingerprint(company, inv, chain, genDT)
		}

		rc := &aeat.RecordContext{
			Company:  company,
			Invoice:  inv,
			NumSerie: numSerie,
			Prev:     chain,
			GenDT:    genDT,
			Huella:   huella,
		}
		if voided {
			records = append(records, uc.builder.BuildAnulacion(rc))
		} else {
			if err := uc.fillAltaContext(ctx, company, rc); err != nil {
				return nil, err
			}
			records = append(records, uc.builder.BuildAlta(rc))
		}

		built[numSerie] = builtRecord{invoice: inv, numSerie: numSerie, prev: chain}
		chain = &vf.ChainLink{NumSerie: numSerie, IssueDate: inv.IssueDate, Fingerprint: huella}
	}

	envelope, err := aeat.BuildSubmissionEnvelope(company.Name, vf.NormalizeID(company.VatID), records)
	if err != nil {
		return nil, err
	}

	resp, err := uc.gateway.Submit(ctx, company.Test, envelope)
	if err != nil {
		uc.audit.Append(fmt.Sprintf("No se pudo enviar el lote, empresa=%s error=%v", company.VatID, err))
		result.Message = err.Error()
		return result, nil
	}

	return uc.reconcile(ctx, company, built, resp, now, voided, result)
}

// reconcile aplica la respuesta de la AEAT a la base de datos: timestamp de
// presentación, código de error, CSV acumulado, huella recalculada y marca de
// anulación. Siempre persiste la ventana de espera (TiempoEsperaEnvio).
func (uc *SubmitUseCase) reconcile(ctx context.Context, company *entity.Company, built map[string]builtRecord, resp *aeat.SubmitResponse, batchTime time.Time, voided bool, result *dto.SendResult) (*dto.SendResult, error) {
	if err := uc.companyRepo.UpdateNextSend(ctx, company.ID, batchTime.Add(time.Duration(resp.WaitSeconds())*time.Second)); err != nil {
		uc.log.Error().Err(err).Str("company_id", company.ID).Msg("no se pudo actualizar next_send")
	}

	// verifactu_dt: timestamp de presentación de la AEAT si llegó, si no el
	// del lote. Se almacena siempre en UTC.
	tsPresentacion := strings.TrimSpace(resp.DatosPresentacion.TimestampPresentacion)
	confirmedAt := batchTime
	if tsPresentacion != "" {
		if parsed, perr := time.Parse(time.RFC3339, tsPresentacion); perr == nil {
			confirmedAt = parsed
		}
	}
	confirmedAt = confirmedAt.UTC()

	for i := range resp.Lineas {
		line := &resp.Lineas[i]
		numSerie := line.IDFactura.NumSerieFactura

		rec, ok := built[numSerie]
		if !ok {
			// La AEAT respondió por un registro que este lote no envió.
			result.KO = append(result.KO, dto.SendLineResult{Num: numSerie, ErrCode: "registro desconocido"})
			uc.audit.Append("Registro desconocido en la respuesta: " + numSerie)
			continue
		}

		// La huella confirmada se recalcula con el timestamp de presentación
		// como FechaHoraHusoGenRegistro, también en registros rechazados: un
		// rechazo ocupa igualmente su posición en la cadena.
		var fingerprint *string
		if tsPresentacion != "" {
			var h string
			if voided {
				h = vf.VoidFingerprint(company, rec.invoice, rec.prev, tsPresentacion)
			} else {
				h = vf.Fingerprint(company, rec.invoice, rec.prev, tsPresentacion)
			}
			fingerprint = &h
		}

		csv := appendCSV(rec.invoice.VerifactuCSV, resp.CSV)
		if err := uc.invoiceRepo.UpdateConfirmation(ctx, rec.invoice.ID, confirmedAt, line.ErrorCode(), csv, fingerprint); err != nil {
			return nil, err
		}
		if voided && line.ErrorCode() == 0 {
			if err := uc.invoiceRepo.SetVoided(ctx, rec.invoice.ID); err != nil {
				return nil, err
			}
		}

		if line.ErrorCode() != 0 {
			result.KO = append(result.KO, dto.SendLineResult{
				ID:       rec.invoice.ID,
				Num:      numSerie,
				ErrCode:  strings.TrimSpace(line.CodigoErrorRegistro),
				ErrDescr: line.DescripcionErrorRegistro,
			})
		} else {
			result.OK = append(result.OK, dto.SendLineResult{ID: rec.invoice.ID, Num: numSerie})
		}

		uc.audit.Append(auditLine(line))
	}

	return result, nil
}

// fillAltaContext resuelve las lecturas que el registro de alta necesita:
// descripción, desglose por tipo impositivo y facturas referenciadas.
func (uc *SubmitUseCase) fillAltaContext(ctx context.Context, company *entity.Company, rc *aeat.RecordContext) error {
	inv := rc.Invoice

	descr := inv.Comments
	if descr == "" {
		lines, err := uc.invoiceRepo.GetLines(ctx, inv.ID)
		if err != nil {
			return err
		}
		if len(lines) > 0 {
			descr = lines[0].Descr
		}
	}
	rc.Descr = descr

	breakdown, err := uc.invoiceRepo.GetVatBreakdown(ctx, inv.ID)
	if err != nil {
		return err
	}
	rc.Breakdown = breakdown

	if !inv.IsRectifying() {
		return nil
	}

	refs, err := uc.invoiceRepo.GetReferencing(ctx, inv.ID)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		rc.Rectified = append(rc.Rectified, aeat.RectifiedRef{
			NumSerie:  vf.DisplayNumber(company, ref),
			IssueDate: ref.IssueDate,
		})
	}

	// ImporteRectificacion: agregado de base y cuota de todas las facturas
	// sustituidas (solo rectificativas por sustitución).
	if inv.SType == entity.RectSubstitute {
		var base, tax decimal.Decimal
		for _, ref := range refs {
			bd, err := uc.invoiceRepo.GetVatBreakdown(ctx, ref.ID)
			if err != nil {
				return err
			}
			for _, b := range bd {
				base = base.Add(b.Base)
				tax = tax.Add(b.Tax)
			}
		}
		rc.RectTotal = &aeat.RectifiedTotals{Base: base, Tax: tax}
	}
	return nil
}

func (uc *SubmitUseCase) companyLock(companyID string) *sync.Mutex {
	mu, _ := uc.locks.LoadOrStore(companyID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// chainLinkOf deriva el eslabón "registro anterior" del último registro
// confirmado; nil si la cadena de la empresa está vacía.
func chainLinkOf(company *entity.Company, last *entity.Invoice) *vf.ChainLink {
	if last == nil || last.Fingerprint == nil {
		return nil
	}
	return &vf.ChainLink{
		NumSerie:    vf.DisplayNumber(company, last),
		IssueDate:   last.IssueDate,
		Fingerprint: *last.Fingerprint,
	}
}

// appendCSV acumula el CSV del lote bajo los anteriores, uno por línea.
// Devuelve vacío si la respuesta no trajo CSV (se conserva el existente).
func appendCSV(existing, csv string) string {
	if csv == "" {
		return ""
	}
	return strings.TrimSpace(existing + "\n" + csv)
}

// auditLine resume una línea de respuesta para el log de auditoría, omitiendo
// los campos vacíos.
func auditLine(line *aeat.ResponseLine) string {
	items := []struct{ key, value string }{
		{"TipoOperacion", line.Operacion.TipoOperacion},
		{"EstadoRegistro", line.EstadoRegistro},
		{"CodigoErrorRegistro", strings.TrimSpace(line.CodigoErrorRegistro)},
		{"DescripcionErrorRegistro", line.DescripcionErrorRegistro},
		{"NumSerieFactura", line.IDFactura.NumSerieFactura},
		{"IDEmisorFactura", line.IDFactura.IDEmisorFactura},
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		if it.value != "" {
			parts = append(parts, it.key+"="+it.value)
		}
	}
	return strings.Join(parts, " ")
}
