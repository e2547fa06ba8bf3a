package aeat

import (
	"net/url"

	"github.com/facturasoft/verifactu-api/internal/domain/entity"
	"github.com/facturasoft/verifactu-api/internal/domain/verifactu"
)

// Bases de la sede electrónica para la URL de cotejo del QR.
const (
	sedeProd = "https://www2.agenciatributaria.gob.es/"
	sedeTest = "https://prewww2.aeat.es/"
)

// ValidationURL construye la URL de cotejo de la factura en la sede de la
// AEAT (contenido del código QR "QR tributario"). La generación de la imagen
// queda fuera de este módulo; esta URL es su único contenido.
func ValidationURL(c *entity.Company, inv *entity.Invoice, numSerie string) string {
	base := sedeProd
	if c.Test {
		base = sedeTest
	}
	// El orden de los parámetros es el publicado por la AEAT; no reordenar.
	return base + "wlpl/TIKE-CONT/ValidarQR" +
		"?nif=" + url.QueryEscape(c.VatID) +
		"&numserie=" + url.QueryEscape(numSerie) +
		"&fecha=" + url.QueryEscape(inv.IssueDate.Format("02/01/2006")) +
		"&importe=" + url.QueryEscape(verifactu.Currency(inv.GrandTotal))
}
