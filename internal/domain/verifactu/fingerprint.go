// Huella encadenada del registro de facturación (arts. 14-16 OM HAC/1177/2024).
// Algoritmo: SHA-256 sobre la cadena canónica clave=valor&..., hex mayúsculas.
// El conjunto y el orden de los campos son contrato externo de la AEAT.

package verifactu

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/facturasoft/verifactu-api/internal/domain/entity"
)

// ChainLink es la vista derivada del último registro confirmado de la cadena
// de una empresa: entrada "registro anterior" de la siguiente huella y del
// bloque Encadenamiento del XML.
type ChainLink struct {
	NumSerie    string    // NumSerieFactura con la fórmula de la empresa ya aplicada
	IssueDate   time.Time // Fecha de expedición del registro anterior
	Fingerprint string    // Huella confirmada del registro anterior
}

// prevHuella devuelve la huella del eslabón anterior o cadena vacía si el
// registro es el primero de la cadena.
func prevHuella(last *ChainLink) string {
	if last == nil {
		return ""
	}
	return last.Fingerprint
}

// Fingerprint calcula la huella de un registro de alta.
//
// Cadena canónica (orden fijo): IDEmisorFactura, NumSerieFactura,
// FechaExpedicionFactura, TipoFactura, CuotaTotal, ImporteTotal, Huella
// (anterior, vacía si no hay), FechaHoraHusoGenRegistro. genDT es el
// timestamp de generación textual con huso horario, tal cual viaja en el XML.
func Fingerprint(c *entity.Company, inv *entity.Invoice, last *ChainLink, genDT string) string {
	data := fmt.Sprintf(
		"IDEmisorFactura=%s&NumSerieFactura=%s&FechaExpedicionFactura=%s&TipoFactura=%s&CuotaTotal=%s&ImporteTotal=%s&Huella=%s&FechaHoraHusoGenRegistro=%s",
		NormalizeID(c.VatID),
		DisplayNumber(c, inv),
		IssueDate(inv.IssueDate),
		inv.Type,
		Currency(inv.TaxTotal),
		Currency(inv.GrandTotal),
		prevHuella(last),
		genDT,
	)
	return hashHex(data)
}

// VoidFingerprint calcula la huella de un registro de anulación. El emisor se
// identifica como "emisor de la factura anulada" y el registro no incorpora
// tipo ni importes.
func VoidFingerprint(c *entity.Company, inv *entity.Invoice, last *ChainLink, genDT string) string {
	data := fmt.Sprintf(
		"IDEmisorFacturaAnulada=%s&NumSerieFacturaAnulada=%s&FechaExpedicionFacturaAnulada=%s&Huella=%s&FechaHoraHusoGenRegistro=%s",
		NormalizeID(c.VatID),
		DisplayNumber(c, inv),
		IssueDate(inv.IssueDate),
		prevHuella(last),
		genDT,
	)
	return hashHex(data)
}

func hashHex(data string) string {
	sum := sha256.Sum256([]byte(data))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// GenTimestamp formatea el instante de generación del registro con el huso
// horario local (FechaHoraHusoGenRegistro). Todo el lote comparte un único
// timestamp calculado al inicio del envío.
func GenTimestamp(t time.Time) string {
	return t.Format("2006-01-02T15:04:05-07:00")
}
