package aeat_test

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturasoft/verifactu-api/internal/infrastructure/aeat"
)

func parseEnvelope(t *testing.T, data []byte) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(data))
	return doc
}

func TestBuildSubmissionEnvelope(t *testing.T) {
	r1 := etree.NewElement("sum:RegistroAlta")
	r1.CreateElement("IDVersion").SetText("1.0")
	r2 := etree.NewElement("sum:RegistroAnulacion")

	out, err := aeat.BuildSubmissionEnvelope("ACME SL", "B12345678", []*etree.Element{r1, r2})
	require.NoError(t, err)

	doc := parseEnvelope(t, out)
	env := doc.Root()
	require.NotNil(t, env)
	assert.Equal(t, "soapenv:Envelope", env.FullTag())
	assert.Equal(t,
		"http://schemas.xmlsoap.org/soap/envelope/",
		env.SelectAttrValue("xmlns:soapenv", ""))
	assert.Equal(t,
		"https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/SuministroLR.xsd",
		env.SelectAttrValue("xmlns:sum", ""))
	assert.Equal(t,
		"https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/SuministroInformacion.xsd",
		env.SelectAttrValue("xmlns", ""))

	reg := doc.FindElement("//sum:RegFactuSistemaFacturacion")
	require.NotNil(t, reg)

	obligado := reg.FindElement("sum:Cabecera/ObligadoEmision")
	require.NotNil(t, obligado)
	assert.Equal(t, "ACME SL", obligado.FindElement("NombreRazon").Text())
	assert.Equal(t, "B12345678", obligado.FindElement("NIF").Text())

	// Los registros van tras la cabecera, en el orden de construcción.
	children := reg.ChildElements()
	require.Len(t, children, 3)
	assert.Equal(t, "sum:Cabecera", children[0].FullTag())
	assert.Equal(t, "sum:RegistroAlta", children[1].FullTag())
	assert.Equal(t, "sum:RegistroAnulacion", children[2].FullTag())
	assert.Equal(t, "1.0", children[1].FindElement("IDVersion").Text())
}

func TestBuildSubmissionEnvelope_SinRegistros(t *testing.T) {
	out, err := aeat.BuildSubmissionEnvelope("ACME SL", "B12345678", nil)
	require.NoError(t, err)

	doc := parseEnvelope(t, out)
	reg := doc.FindElement("//sum:RegFactuSistemaFacturacion")
	require.NotNil(t, reg)
	assert.Len(t, reg.ChildElements(), 1) // solo la cabecera
}

func TestBuildQueryEnvelope(t *testing.T) {
	out, err := aeat.BuildQueryEnvelope("ACME SL", "B12345678", 2025, "03")
	require.NoError(t, err)

	doc := parseEnvelope(t, out)
	env := doc.Root()
	require.NotNil(t, env)
	assert.Equal(t,
		"https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/ConsultaLR.xsd",
		env.SelectAttrValue("xmlns:con", ""))
	assert.Equal(t,
		"https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/SuministroInformacion.xsd",
		env.SelectAttrValue("xmlns:sum", ""))

	consulta := doc.FindElement("//con:ConsultaFactuSistemaFacturacion")
	require.NotNil(t, consulta)

	cab := consulta.FindElement("con:Cabecera")
	require.NotNil(t, cab)
	assert.Equal(t, "1.0", cab.FindElement("sum:IDVersion").Text())
	assert.Equal(t, "ACME SL", cab.FindElement("sum:ObligadoEmision/sum:NombreRazon").Text())
	assert.Equal(t, "B12345678", cab.FindElement("sum:ObligadoEmision/sum:NIF").Text())

	periodo := consulta.FindElement("con:FiltroConsulta/con:PeriodoImputacion")
	require.NotNil(t, periodo)
	assert.Equal(t, "2025", periodo.FindElement("sum:Ejercicio").Text())
	assert.Equal(t, "03", periodo.FindElement("sum:Periodo").Text())
}
