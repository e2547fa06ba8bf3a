// Renderizado de registros de facturación VeriFactu (RegistroAlta y
// RegistroAnulacion) según el esquema SuministroInformacion.xsd de la AEAT.
// El orden y la presencia condicional de los elementos son contrato de
// compatibilidad, no de estilo.

package aeat

import (
	"github.com/beevik/etree"

	"github.com/facturasoft/verifactu-api/internal/domain/entity"
	"github.com/facturasoft/verifactu-api/internal/domain/verifactu"
)

// RecordBuilder renderiza registros de facturación a partir de un
// RecordContext ya resuelto. No hace I/O ni muta estado de facturas.
type RecordBuilder struct {
	software Software
}

// NewRecordBuilder construye el builder con la identidad del sistema
// informático que viaja en cada registro.
func NewRecordBuilder(software Software) *RecordBuilder {
	return &RecordBuilder{software: software}
}

// BuildAlta renderiza un <sum:RegistroFactura> con el RegistroAlta de una
// factura nueva (o de la subsanación de una previamente rechazada).
func (b *RecordBuilder) BuildAlta(rc *RecordContext) *etree.Element {
	reg := etree.NewElement("sum:RegistroFactura")
	alta := reg.CreateElement("RegistroAlta")
	alta.CreateElement("IDVersion").SetText("1.0")

	idf := alta.CreateElement("IDFactura")
	idf.CreateElement("IDEmisorFactura").SetText(verifactu.NormalizeID(rc.Company.VatID))
	idf.CreateElement("NumSerieFactura").SetText(rc.NumSerie)
	idf.CreateElement("FechaExpedicionFactura").SetText(verifactu.IssueDate(rc.Invoice.IssueDate))

	alta.CreateElement("NombreRazonEmisor").SetText(rc.Company.Name)

	// Reenvío de un registro rechazado: subsanación con rechazo previo.
	if rc.Invoice.VerifactuErr != 0 {
		alta.CreateElement("Subsanacion").SetText("S")
		alta.CreateElement("RechazoPrevio").SetText("X")
	}

	alta.CreateElement("TipoFactura").SetText(rc.Invoice.Type)

	if rc.Invoice.IsRectifying() {
		b.writeRectification(alta, rc)
	}

	alta.CreateElement("DescripcionOperacion").SetText(rc.Descr)

	if rc.Invoice.Type == entity.TypeF2 {
		alta.CreateElement("FacturaSimplificadaArt7273").SetText("S")
	}

	if rc.Invoice.CustomerVatID == "" {
		alta.CreateElement("FacturaSinIdentifDestinatarioArt61d").SetText("S")
	} else {
		dest := alta.CreateElement("Destinatarios").CreateElement("IDDestinatario")
		dest.CreateElement("NombreRazon").SetText(rc.Invoice.CustomerName)
		dest.CreateElement("NIF").SetText(rc.Invoice.CustomerVatID)
	}

	desglose := alta.CreateElement("Desglose")
	for _, line := range rc.Breakdown {
		det := desglose.CreateElement("DetalleDesglose")
		det.CreateElement("Impuesto").SetText("01")
		if !line.VatRate.IsZero() {
			det.CreateElement("ClaveRegimen").SetText("01")
			det.CreateElement("CalificacionOperacion").SetText("S1")
			det.CreateElement("TipoImpositivo").SetText(verifactu.Currency(line.VatRate))
			det.CreateElement("BaseImponibleOimporteNoSujeto").SetText(verifactu.Currency(line.Base))
			det.CreateElement("CuotaRepercutida").SetText(verifactu.Currency(line.Tax))
		} else {
			det.CreateElement("CalificacionOperacion").SetText("N1")
			det.CreateElement("BaseImponibleOimporteNoSujeto").SetText(verifactu.Currency(line.Base))
		}
	}

	alta.CreateElement("CuotaTotal").SetText(verifactu.Currency(rc.Invoice.TaxTotal))
	alta.CreateElement("ImporteTotal").SetText(verifactu.Currency(rc.Invoice.GrandTotal))

	b.writeChainFooter(alta, rc)
	return reg
}

// BuildAnulacion renderiza un <sum:RegistroFactura> con el RegistroAnulacion
// de una factura previamente aceptada.
func (b *RecordBuilder) BuildAnulacion(rc *RecordContext) *etree.Element {
	reg := etree.NewElement("sum:RegistroFactura")
	anul := reg.CreateElement("RegistroAnulacion")
	anul.CreateElement("IDVersion").SetText("1.0")

	idf := anul.CreateElement("IDFactura")
	idf.CreateElement("IDEmisorFacturaAnulada").SetText(verifactu.NormalizeID(rc.Company.VatID))
	idf.CreateElement("NumSerieFacturaAnulada").SetText(rc.NumSerie)
	idf.CreateElement("FechaExpedicionFacturaAnulada").SetText(verifactu.IssueDate(rc.Invoice.IssueDate))

	if rc.Invoice.VerifactuErr != 0 {
		anul.CreateElement("RechazoPrevio").SetText("S")
	}

	b.writeChainFooter(anul, rc)
	return reg
}

// writeRectification emite los bloques propios de rectificativas (R*) y
// sustitutivas (F3): subtipo, facturas referenciadas e importe rectificado.
func (b *RecordBuilder) writeRectification(alta *etree.Element, rc *RecordContext) {
	if rc.Invoice.SType != "" {
		kind := entity.RectIncremental
		if rc.Invoice.SType == entity.RectSubstitute {
			kind = entity.RectSubstitute
		}
		alta.CreateElement("TipoRectificativa").SetText(kind)
	}

	wrapper, inner := "FacturasRectificadas", "IDFacturaRectificada"
	if rc.Invoice.Type == entity.TypeF3 {
		wrapper, inner = "FacturasSustituidas", "IDFacturaSustituida"
	}
	for _, ref := range rc.Rectified {
		id := alta.CreateElement(wrapper).CreateElement(inner)
		id.CreateElement("IDEmisorFactura").SetText(verifactu.NormalizeID(rc.Company.VatID))
		id.CreateElement("NumSerieFactura").SetText(ref.NumSerie)
		id.CreateElement("FechaExpedicionFactura").SetText(verifactu.IssueDate(ref.IssueDate))
	}

	if rc.RectTotal != nil {
		imp := alta.CreateElement("ImporteRectificacion")
		imp.CreateElement("BaseRectificada").SetText(verifactu.Currency(rc.RectTotal.Base))
		imp.CreateElement("CuotaRectificada").SetText(verifactu.Currency(rc.RectTotal.Tax))
	}
}

// writeChainFooter emite el tramo común final de todo registro:
// Encadenamiento, SistemaInformatico, timestamp de generación y huella.
func (b *RecordBuilder) writeChainFooter(parent *etree.Element, rc *RecordContext) {
	enc := parent.CreateElement("Encadenamiento")
	if rc.Prev != nil {
		ra := enc.CreateElement("RegistroAnterior")
		ra.CreateElement("IDEmisorFactura").SetText(verifactu.NormalizeID(rc.Company.VatID))
		ra.CreateElement("NumSerieFactura").SetText(rc.Prev.NumSerie)
		ra.CreateElement("FechaExpedicionFactura").SetText(verifactu.IssueDate(rc.Prev.IssueDate))
		ra.CreateElement("Huella").SetText(rc.Prev.Fingerprint)
	} else {
		enc.CreateElement("PrimerRegistro").SetText("S")
	}

	si := parent.CreateElement("SistemaInformatico")
	si.CreateElement("NombreRazon").SetText(b.software.CompanyName)
	si.CreateElement("NIF").SetText(b.software.CompanyNIF)
	si.CreateElement("NombreSistemaInformatico").SetText(b.software.Name)
	si.CreateElement("IdSistemaInformatico").SetText(b.software.ID)
	si.CreateElement("Version").SetText(b.software.Version)
	si.CreateElement("NumeroInstalacion").SetText(b.software.InstallNumber)
	si.CreateElement("TipoUsoPosibleSoloVerifactu").SetText("N")
	si.CreateElement("TipoUsoPosibleMultiOT").SetText("S")
	si.CreateElement("IndicadorMultiplesOT").SetText("S")

	parent.CreateElement("FechaHoraHusoGenRegistro").SetText(rc.GenDT)
	parent.CreateElement("TipoHuella").SetText("01")
	parent.CreateElement("Huella").SetText(rc.Huella)
}
