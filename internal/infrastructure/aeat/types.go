package aeat

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/facturasoft/verifactu-api/internal/domain/entity"
	"github.com/facturasoft/verifactu-api/internal/domain/verifactu"
)

// Estados de registro devueltos por la AEAT en RespuestaLinea.
const (
	EstadoCorrecto           = "Correcto"
	EstadoAceptadoConErrores = "AceptadoConErrores"
	EstadoIncorrecto         = "Incorrecto"
)

// Software identifica el sistema informático de facturación en el bloque
// SistemaInformatico de cada registro (datos del productor del software, no
// de la empresa emisora).
type Software struct {
	CompanyName   string // Razón social del productor
	CompanyNIF    string // NIF del productor (se normaliza al construir)
	Name          string // NombreSistemaInformatico
	ID            string // IdSistemaInformatico (máx. 2 caracteres)
	Version       string
	InstallNumber string // NumeroInstalacion
}

// NewSoftware normaliza el NIF y trunca el identificador a 2 caracteres,
// como exige el esquema de la AEAT.
func NewSoftware(companyName, companyNIF, name, id, version, installNumber string) Software {
	if len(id) > 2 {
		id = id[:2]
	}
	return Software{
		CompanyName:   companyName,
		CompanyNIF:    verifactu.NormalizeID(companyNIF),
		Name:          name,
		ID:            id,
		Version:       version,
		InstallNumber: installNumber,
	}
}

// RectifiedRef identifica una factura referenciada por una rectificativa o
// sustitutiva (triple emisor/número/fecha del bloque FacturasRectificadas o
// FacturasSustituidas).
type RectifiedRef struct {
	NumSerie  string
	IssueDate time.Time
}

// RectifiedTotals es el agregado de base y cuota rectificadas de todas las
// líneas de las facturas referenciadas (ImporteRectificacion, solo
// rectificativas por sustitución).
type RectifiedTotals struct {
	Base decimal.Decimal
	Tax  decimal.Decimal
}

// RecordContext agrupa todo lo necesario para renderizar un registro de
// facturación. El caso de uso resuelve las consultas (líneas agregadas,
// facturas referenciadas, eslabón anterior, huella) y el builder no hace I/O.
type RecordContext struct {
	Company  *entity.Company
	Invoice  *entity.Invoice
	NumSerie string               // DisplayNumber ya aplicado
	Prev     *verifactu.ChainLink // nil = primer registro de la cadena
	GenDT    string               // FechaHoraHusoGenRegistro compartido del lote
	Huella   string               // Huella calculada para este registro

	// Solo registros de alta.
	Descr     string                // DescripcionOperacion resuelta
	Breakdown []entity.VatBreakdown // Desglose por tipo impositivo
	Rectified []RectifiedRef        // Facturas referenciadas (R* y F3)
	RectTotal *RectifiedTotals      // ImporteRectificacion (subtipo S)
}

// ── Respuesta de suministro (encoding/xml, coincidencia por nombre local) ─────

type submitResponseEnvelope struct {
	Body struct {
		Respuesta *SubmitResponse `xml:"RespuestaRegFactuSistemaFacturacion"`
	} `xml:"Body"`
}

// SubmitResponse es la respuesta parseada de RegFactuSistemaFacturacion:
// datos de lote (CSV, espera, timestamp de presentación) y una línea por
// registro enviado.
type SubmitResponse struct {
	CSV               string `xml:"CSV"`
	TiempoEsperaEnvio string `xml:"TiempoEsperaEnvio"`
	DatosPresentacion struct {
		TimestampPresentacion string `xml:"TimestampPresentacion"`
	} `xml:"DatosPresentacion"`
	Lineas []ResponseLine `xml:"RespuestaLinea"`
}

// WaitSeconds devuelve TiempoEsperaEnvio en segundos (0 si ausente o inválido).
func (r *SubmitResponse) WaitSeconds() int {
	n, _ := strconv.Atoi(strings.TrimSpace(r.TiempoEsperaEnvio))
	return n
}

// ResponseLine es el resultado por registro, identificado por NumSerieFactura.
type ResponseLine struct {
	IDFactura struct {
		IDEmisorFactura string `xml:"IDEmisorFactura"`
		NumSerieFactura string `xml:"NumSerieFactura"`
	} `xml:"IDFactura"`
	Operacion struct {
		TipoOperacion string `xml:"TipoOperacion"`
	} `xml:"Operacion"`
	EstadoRegistro           string `xml:"EstadoRegistro"`
	CodigoErrorRegistro      string `xml:"CodigoErrorRegistro"`
	DescripcionErrorRegistro string `xml:"DescripcionErrorRegistro"`
}

// ErrorCode devuelve el código de error numérico; 0 = registro aceptado.
func (l *ResponseLine) ErrorCode() int {
	n, _ := strconv.Atoi(strings.TrimSpace(l.CodigoErrorRegistro))
	return n
}

// ── Respuesta de consulta ─────────────────────────────────────────────────────

type queryResponseEnvelope struct {
	Body struct {
		Respuesta *QueryResponse `xml:"RespuestaConsultaFactuSistemaFacturacion"`
	} `xml:"Body"`
}

// QueryResponse agrupa los registros previamente aceptados de un periodo.
type QueryResponse struct {
	Registros []QueriedRecord `xml:"RegistroRespuestaConsultaFactuSistemaFacturacion"`
}

// QueriedRecord es un registro devuelto por la consulta de un periodo.
type QueriedRecord struct {
	IDFactura struct {
		IDEmisorFactura        string `xml:"IDEmisorFactura"`
		NumSerieFactura        string `xml:"NumSerieFactura"`
		FechaExpedicionFactura string `xml:"FechaExpedicionFactura"`
	} `xml:"IDFactura"`
	DatosRegistroFacturacion struct {
		TipoFactura  string `xml:"TipoFactura"`
		CuotaTotal   string `xml:"CuotaTotal"`
		ImporteTotal string `xml:"ImporteTotal"`
		Huella       string `xml:"Huella"`
	} `xml:"DatosRegistroFacturacion"`
	EstadoRegistro struct {
		EstadoRegistro        string `xml:"EstadoRegistro"`
		TimestampPresentacion string `xml:"TimestampPresentacion"`
	} `xml:"EstadoRegistro"`
}
