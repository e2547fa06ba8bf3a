package verifactu

import (
	"context"
	"fmt"
	"time"

	"github.com/facturasoft/verifactu-api/internal/application/dto"
	"github.com/facturasoft/verifactu-api/internal/domain"
	"github.com/facturasoft/verifactu-api/internal/domain/repository"
	vf "github.com/facturasoft/verifactu-api/internal/domain/verifactu"
	"github.com/facturasoft/verifactu-api/internal/infrastructure/aeat"
)

// QueryUseCase consulta los registros presentados de una empresa en un
// periodo. Solo lectura: no toca la cadena ni el estado local.
type QueryUseCase struct {
	companyRepo repository.CompanyRepository
	gateway     AuthorityGateway
}

// NewQueryUseCase construye el caso de uso.
func NewQueryUseCase(companyRepo repository.CompanyRepository, gateway AuthorityGateway) *QueryUseCase {
	return &QueryUseCase{companyRepo: companyRepo, gateway: gateway}
}

// Records consulta el periodo indicado. year 0 = año actual, acotado al rango
// admitido por la AEAT (2025-2200); month 0 = mes actual, acotado a 1-12.
func (uc *QueryUseCase) Records(ctx context.Context, companyID string, year, month int) (*dto.QueryRecordsResponse, error) {
	company, err := uc.companyRepo.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrCompanyNotFound
	}

	now := time.Now()
	if year == 0 {
		year = now.Year()
	}
	year = clamp(year, 2025, 2200)
	if month == 0 {
		month = int(now.Month())
	}
	monthStr := fmt.Sprintf("%02d", clamp(month, 1, 12))

	envelope, err := aeat.BuildQueryEnvelope(company.Name, vf.NormalizeID(company.VatID), year, monthStr)
	if err != nil {
		return nil, err
	}

	qr, err := uc.gateway.Query(ctx, company.Test, envelope)
	if err != nil {
		return nil, err
	}

	resp := &dto.QueryRecordsResponse{
		Year:    year,
		Month:   monthStr,
		Records: make([]dto.QueriedRecordResponse, 0, len(qr.Registros)),
	}
	for _, r := range qr.Registros {
		resp.Records = append(resp.Records, dto.QueriedRecordResponse{
			IssuerVatID: r.IDFactura.IDEmisorFactura,
			NumSerie:    r.IDFactura.NumSerieFactura,
			IssueDate:   r.IDFactura.FechaExpedicionFactura,
			Type:        r.DatosRegistroFacturacion.TipoFactura,
			TaxTotal:    r.DatosRegistroFacturacion.CuotaTotal,
			GrandTotal:  r.DatosRegistroFacturacion.ImporteTotal,
			Fingerprint: r.DatosRegistroFacturacion.Huella,
			Status:      r.EstadoRegistro.EstadoRegistro,
			PresentedAt: r.EstadoRegistro.TimestampPresentacion,
		})
	}
	return resp, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
