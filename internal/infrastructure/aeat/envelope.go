// Sobres SOAP de suministro (SuministroLR.xsd) y consulta (ConsultaLR.xsd)
// del servicio VerifactuSOAP de la AEAT.

package aeat

import (
	"fmt"

	"github.com/beevik/etree"
)

// Namespaces publicados por la AEAT para el servicio VeriFactu.
const (
	nsSoapEnv = "http://schemas.xmlsoap.org/soap/envelope/"
	nsSumLR   = "https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/SuministroLR.xsd"
	nsSumInfo = "https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/SuministroInformacion.xsd"
	nsConLR   = "https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/ConsultaLR.xsd"
)

// BuildSubmissionEnvelope envuelve los registros de un lote en el sobre
// RegFactuSistemaFacturacion con la cabecera del obligado a emisión.
func BuildSubmissionEnvelope(companyName, companyNIF string, records []*etree.Element) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	env := doc.CreateElement("soapenv:Envelope")
	env.CreateAttr("xmlns:soapenv", nsSoapEnv)
	env.CreateAttr("xmlns:sum", nsSumLR)
	env.CreateAttr("xmlns", nsSumInfo)
	env.CreateElement("soapenv:Header")
	body := env.CreateElement("soapenv:Body")

	reg := body.CreateElement("sum:RegFactuSistemaFacturacion")
	obligado := reg.CreateElement("sum:Cabecera").CreateElement("ObligadoEmision")
	obligado.CreateElement("NombreRazon").SetText(companyName)
	obligado.CreateElement("NIF").SetText(companyNIF)

	for _, r := range records {
		reg.AddChild(r)
	}

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("aeat: serializar sobre de suministro: %w", err)
	}
	return out, nil
}

// BuildQueryEnvelope construye el sobre de consulta de registros presentados
// para un ejercicio y periodo (mes con dos dígitos), sin efectos sobre la
// cadena.
func BuildQueryEnvelope(companyName, companyNIF string, year int, month string) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	env := doc.CreateElement("soapenv:Envelope")
	env.CreateAttr("xmlns:soapenv", nsSoapEnv)
	env.CreateAttr("xmlns:con", nsConLR)
	env.CreateAttr("xmlns:sum", nsSumInfo)
	env.CreateElement("soapenv:Header")
	body := env.CreateElement("soapenv:Body")

	consulta := body.CreateElement("con:ConsultaFactuSistemaFacturacion")
	cab := consulta.CreateElement("con:Cabecera")
	cab.CreateElement("sum:IDVersion").SetText("1.0")
	obligado := cab.CreateElement("sum:ObligadoEmision")
	obligado.CreateElement("sum:NombreRazon").SetText(companyName)
	obligado.CreateElement("sum:NIF").SetText(companyNIF)

	periodo := consulta.CreateElement("con:FiltroConsulta").CreateElement("con:PeriodoImputacion")
	periodo.CreateElement("sum:Ejercicio").SetText(fmt.Sprintf("%d", year))
	periodo.CreateElement("sum:Periodo").SetText(month)

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("aeat: serializar sobre de consulta: %w", err)
	}
	return out, nil
}
