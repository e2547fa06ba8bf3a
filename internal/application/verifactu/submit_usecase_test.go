package verifactu_test

import (
	"context"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appvf "github.com/facturasoft/verifactu-api/internal/application/verifactu"
	"github.com/facturasoft/verifactu-api/internal/domain"
	"github.com/facturasoft/verifactu-api/internal/domain/entity"
	vf "github.com/facturasoft/verifactu-api/internal/domain/verifactu"
	"github.com/facturasoft/verifactu-api/internal/infrastructure/aeat"
	"github.com/facturasoft/verifactu-api/pkg/logger"
)

func newSubmitUseCase(companyRepo *fakeCompanyRepo, invoiceRepo *fakeInvoiceRepo, gateway *fakeGateway, audit *fakeAudit) *appvf.SubmitUseCase {
	builder := aeat.NewRecordBuilder(aeat.NewSoftware("Soft SL", "B99999999", "FacturaSoft", "FS", "1.0", "1"))
	log := logger.New(logger.Config{Level: "error"})
	return appvf.NewSubmitUseCase(companyRepo, invoiceRepo, builder, gateway, audit, log)
}

func TestProcessPending_LoteAceptadoParcialmente(t *testing.T) {
	company := testCompany()
	inv1 := pendingInvoice("i1", 1, entity.TypeF1, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	inv1.CustomerName = "Cliente SA"
	inv1.CustomerVatID = "A11111111"
	inv1.Comments = "Venta de material"
	inv2 := pendingInvoice("i2", 2, entity.TypeF2, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC))
	inv2.Comments = "Venta mostrador"

	companyRepo := newFakeCompanyRepo(company)
	invoiceRepo := newFakeInvoiceRepo(inv1, inv2)
	invoiceRepo.pending = []*entity.Invoice{inv1, inv2}

	const tsPresentacion = "2025-03-10T12:00:05+01:00"
	gateway := &fakeGateway{submitResp: submitResponse("CSV-LOTE-1", "60", tsPresentacion,
		respLine("1", aeat.EstadoCorrecto, "", ""),
		respLine("2", aeat.EstadoIncorrecto, "1117", "Huella incorrecta"),
	)}
	audit := &fakeAudit{}

	uc := newSubmitUseCase(companyRepo, invoiceRepo, gateway, audit)
	resp, err := uc.ProcessPending(context.Background())
	require.NoError(t, err)

	result := resp.Companies[company.ID]
	require.NotNil(t, result)
	require.Len(t, result.OK, 1)
	assert.Equal(t, "i1", result.OK[0].ID)
	assert.Equal(t, "1", result.OK[0].Num)
	require.Len(t, result.KO, 1)
	assert.Equal(t, "i2", result.KO[0].ID)
	assert.Equal(t, "1117", result.KO[0].ErrCode)
	assert.Equal(t, "Huella incorrecta", result.KO[0].ErrDescr)

	// Ambas líneas se reconcilian, también la rechazada.
	require.Len(t, invoiceRepo.confirmations, 2)
	c1 := invoiceRepo.confirmationFor("i1")
	require.NotNil(t, c1)
	assert.Equal(t, 0, c1.errCode)
	assert.Equal(t, "CSV-LOTE-1", c1.csv)
	assert.Equal(t, time.Date(2025, 3, 10, 11, 0, 5, 0, time.UTC), c1.dt)

	// La huella confirmada del primer registro se recalcula con el timestamp
	// de presentación como FechaHoraHusoGenRegistro.
	require.NotNil(t, c1.fingerprint)
	assert.Equal(t, vf.Fingerprint(company, inv1, nil, tsPresentacion), *c1.fingerprint)

	// El rechazado conserva su posición en la cadena: también tiene huella.
	c2 := invoiceRepo.confirmationFor("i2")
	require.NotNil(t, c2)
	assert.Equal(t, 1117, c2.errCode)
	require.NotNil(t, c2.fingerprint)
	assert.Len(t, *c2.fingerprint, 64)

	// TiempoEsperaEnvio siempre actualiza la ventana de envío.
	next, ok := companyRepo.nextSends[company.ID]
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(60*time.Second), next, 5*time.Second)

	assert.Empty(t, invoiceRepo.voided)
	assert.Len(t, audit.entries, 2)
	assert.Contains(t, audit.entries[1], "CodigoErrorRegistro=1117")
}

func TestProcessPending_EmpresaEnVentanaDeEspera(t *testing.T) {
	company := testCompany()
	next := time.Now().Add(5 * time.Minute)
	company.NextSend = &next

	invoiceRepo := newFakeInvoiceRepo()
	invoiceRepo.pending = []*entity.Invoice{pendingInvoice("i1", 1, entity.TypeF1, time.Now())}
	gateway := &fakeGateway{}

	uc := newSubmitUseCase(newFakeCompanyRepo(company), invoiceRepo, gateway, &fakeAudit{})
	resp, err := uc.ProcessPending(context.Background())
	require.NoError(t, err)

	assert.Contains(t, resp.Companies[company.ID].Message, "Próximo envío en")
	assert.Empty(t, gateway.submitted, "no debe enviarse nada en ventana de espera")
	assert.Empty(t, invoiceRepo.confirmations)
}

func TestProcessPending_SinPendientes(t *testing.T) {
	company := testCompany()
	gateway := &fakeGateway{}
	companyRepo := newFakeCompanyRepo(company)

	uc := newSubmitUseCase(companyRepo, newFakeInvoiceRepo(), gateway, &fakeAudit{})
	resp, err := uc.ProcessPending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "No hay facturas para enviar", resp.Companies[company.ID].Message)
	assert.Empty(t, gateway.submitted)
	assert.Empty(t, companyRepo.nextSends)
}

func TestProcessPending_FalloDeTransporte(t *testing.T) {
	company := testCompany()
	inv := pendingInvoice("i1", 1, entity.TypeF1, time.Now())
	inv.Comments = "Venta"

	invoiceRepo := newFakeInvoiceRepo(inv)
	invoiceRepo.pending = []*entity.Invoice{inv}
	gateway := &fakeGateway{submitErr: &aeat.TransportError{Status: 502}}
	audit := &fakeAudit{}

	uc := newSubmitUseCase(newFakeCompanyRepo(company), invoiceRepo, gateway, audit)
	resp, err := uc.ProcessPending(context.Background())
	require.NoError(t, err, "un fallo de transporte no es un error del barrido")

	result := resp.Companies[company.ID]
	assert.NotEmpty(t, result.Message)
	assert.Empty(t, result.OK)
	assert.Empty(t, result.KO)

	// Nada persiste: las facturas siguen pendientes y se reintentan.
	assert.Empty(t, invoiceRepo.confirmations)
	require.Len(t, audit.entries, 1)
	assert.Contains(t, audit.entries[0], "No se pudo enviar el lote")
}

func TestProcessPending_RespuestaSinTimestampConservaHuella(t *testing.T) {
	company := testCompany()
	inv := pendingInvoice("i1", 1, entity.TypeF1, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	inv.Comments = "Venta"

	invoiceRepo := newFakeInvoiceRepo(inv)
	invoiceRepo.pending = []*entity.Invoice{inv}
	gateway := &fakeGateway{submitResp: submitResponse("CSV-1", "60", "",
		respLine("1", aeat.EstadoCorrecto, "", ""),
	)}

	uc := newSubmitUseCase(newFakeCompanyRepo(company), invoiceRepo, gateway, &fakeAudit{})
	_, err := uc.ProcessPending(context.Background())
	require.NoError(t, err)

	c := invoiceRepo.confirmationFor("i1")
	require.NotNil(t, c)
	assert.Nil(t, c.fingerprint, "sin timestamp de presentación no se recalcula la huella")
	assert.WithinDuration(t, time.Now().UTC(), c.dt, 5*time.Second)
}

func TestProcessPending_RegistroDesconocidoEnRespuesta(t *testing.T) {
	company := testCompany()
	inv := pendingInvoice("i1", 1, entity.TypeF1, time.Now())
	inv.Comments = "Venta"

	invoiceRepo := newFakeInvoiceRepo(inv)
	invoiceRepo.pending = []*entity.Invoice{inv}
	gateway := &fakeGateway{submitResp: submitResponse("CSV-1", "0", "",
		respLine("999", aeat.EstadoCorrecto, "", ""),
	)}
	audit := &fakeAudit{}

	uc := newSubmitUseCase(newFakeCompanyRepo(company), invoiceRepo, gateway, audit)
	resp, err := uc.ProcessPending(context.Background())
	require.NoError(t, err)

	result := resp.Companies[company.ID]
	require.Len(t, result.KO, 1)
	assert.Equal(t, "999", result.KO[0].Num)
	assert.Equal(t, "registro desconocido", result.KO[0].ErrCode)
	assert.Empty(t, invoiceRepo.confirmations)
	require.Len(t, audit.entries, 1)
	assert.Contains(t, audit.entries[0], "Registro desconocido")
}

func TestProcessPending_EncadenadoOptimistaDelLote(t *testing.T) {
	company := testCompany()
	inv1 := pendingInvoice("i1", 1, entity.TypeF1, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	inv1.Comments = "Primera"
	inv2 := pendingInvoice("i2", 2, entity.TypeF1, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC))
	inv2.Comments = "Segunda"

	invoiceRepo := newFakeInvoiceRepo(inv1, inv2)
	invoiceRepo.pending = []*entity.Invoice{inv1, inv2}
	gateway := &fakeGateway{submitResp: submitResponse("", "0", "")}

	uc := newSubmitUseCase(newFakeCompanyRepo(company), invoiceRepo, gateway, &fakeAudit{})
	_, err := uc.ProcessPending(context.Background())
	require.NoError(t, err)

	require.Len(t, gateway.submitted, 1)
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(gateway.submitted[0]))

	altas := doc.FindElements("//RegistroAlta")
	require.Len(t, altas, 2)

	// El primero abre cadena; el segundo encadena con el primero del propio
	// lote aunque la AEAT aún no lo haya confirmado.
	assert.NotNil(t, altas[0].FindElement("Encadenamiento/PrimerRegistro"))
	prev := altas[1].FindElement("Encadenamiento/RegistroAnterior")
	require.NotNil(t, prev)
	assert.Equal(t, "1", prev.FindElement("NumSerieFactura").Text())
	assert.Equal(t, altas[0].FindElement("Huella").Text(), prev.FindElement("Huella").Text())
}

func TestProcessPending_EncadenaConUltimoConfirmado(t *testing.T) {
	company := testCompany()
	last := confirmedInvoice("i0", 7, entity.TypeF1,
		time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		"4D42BB4D9DD8D09327882DDB085BB0888460ECEFE05E1968A01B2A54167963BC")
	inv := pendingInvoice("i1", 8, entity.TypeF1, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	inv.Comments = "Venta"

	invoiceRepo := newFakeInvoiceRepo(last, inv)
	invoiceRepo.pending = []*entity.Invoice{inv}
	invoiceRepo.lastConfirmed = last
	gateway := &fakeGateway{submitResp: submitResponse("", "0", "")}

	uc := newSubmitUseCase(newFakeCompanyRepo(company), invoiceRepo, gateway, &fakeAudit{})
	_, err := uc.ProcessPending(context.Background())
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(gateway.submitted[0]))
	prev := doc.FindElement("//RegistroAlta/Encadenamiento/RegistroAnterior")
	require.NotNil(t, prev)
	assert.Equal(t, "7", prev.FindElement("NumSerieFactura").Text())
	assert.Equal(t, *last.Fingerprint, prev.FindElement("Huella").Text())
}

func TestVoid_AnulacionAceptada(t *testing.T) {
	company := testCompany()
	inv1 := confirmedInvoice("i1", 1, entity.TypeF1, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), "AAAA")
	inv2 := confirmedInvoice("i2", 2, entity.TypeF2, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), "BBBB")

	invoiceRepo := newFakeInvoiceRepo(inv1, inv2)
	gateway := &fakeGateway{submitResp: submitResponse("CSV-ANUL", "60", "2025-03-12T09:00:00+01:00",
		respLine("1", aeat.EstadoCorrecto, "", ""),
		respLine("2", aeat.EstadoCorrecto, "", ""),
	)}

	uc := newSubmitUseCase(newFakeCompanyRepo(company), invoiceRepo, gateway, &fakeAudit{})
	result, err := uc.Void(context.Background(), company.ID, []string{"i1", "i2"})
	require.NoError(t, err)

	assert.Len(t, result.OK, 2)
	assert.Empty(t, result.KO)
	assert.ElementsMatch(t, []string{"i1", "i2"}, invoiceRepo.voided)

	// El sobre lleva registros de anulación, no de alta.
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(gateway.submitted[0]))
	assert.Len(t, doc.FindElements("//RegistroAnulacion"), 2)
	assert.Empty(t, doc.FindElements("//RegistroAlta"))
}

func TestVoid_RechazoNoMarcaAnulada(t *testing.T) {
	company := testCompany()
	inv := confirmedInvoice("i1", 1, entity.TypeF1, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), "AAAA")

	invoiceRepo := newFakeInvoiceRepo(inv)
	gateway := &fakeGateway{submitResp: submitResponse("", "0", "",
		respLine("1", aeat.EstadoIncorrecto, "3002", "Registro no encontrado"),
	)}

	uc := newSubmitUseCase(newFakeCompanyRepo(company), invoiceRepo, gateway, &fakeAudit{})
	result, err := uc.Void(context.Background(), company.ID, []string{"i1"})
	require.NoError(t, err)

	require.Len(t, result.KO, 1)
	assert.Empty(t, invoiceRepo.voided, "una anulación rechazada no marca la factura")
}

func TestVoid_ValidacionSincrona(t *testing.T) {
	company := testCompany()
	gateway := &fakeGateway{}

	t.Run("ya anulada", func(t *testing.T) {
		inv := confirmedInvoice("i1", 1, entity.TypeF1, time.Now(), "AAAA")
		inv.Voided = true
		uc := newSubmitUseCase(newFakeCompanyRepo(company), newFakeInvoiceRepo(inv), gateway, &fakeAudit{})

		_, err := uc.Void(context.Background(), company.ID, []string{"i1"})
		assert.ErrorIs(t, err, domain.ErrAlreadyVoided)
	})

	t.Run("nunca enviada", func(t *testing.T) {
		inv := pendingInvoice("i1", 1, entity.TypeF1, time.Now())
		uc := newSubmitUseCase(newFakeCompanyRepo(company), newFakeInvoiceRepo(inv), gateway, &fakeAudit{})

		_, err := uc.Void(context.Background(), company.ID, []string{"i1"})
		assert.ErrorIs(t, err, domain.ErrNotSubmitted)
	})

	t.Run("factura inexistente", func(t *testing.T) {
		inv := confirmedInvoice("i1", 1, entity.TypeF1, time.Now(), "AAAA")
		uc := newSubmitUseCase(newFakeCompanyRepo(company), newFakeInvoiceRepo(inv), gateway, &fakeAudit{})

		_, err := uc.Void(context.Background(), company.ID, []string{"i1", "nope"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("empresa inexistente", func(t *testing.T) {
		uc := newSubmitUseCase(newFakeCompanyRepo(company), newFakeInvoiceRepo(), gateway, &fakeAudit{})

		_, err := uc.Void(context.Background(), "nope", []string{"i1"})
		assert.ErrorIs(t, err, domain.ErrCompanyNotFound)
	})

	assert.Empty(t, gateway.submitted, "la validación falla antes de enviar nada")
}
