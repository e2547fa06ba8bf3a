// Package verifactu: núcleo puro del registro de facturación VeriFactu
// (RD 1007/2023): formatos canónicos, huella encadenada y reglas de admisión.
//
// Los formatos de este archivo son entrada directa del hash de la huella y
// del XML enviado a la AEAT: cualquier desviación rompe la interoperabilidad
// con la Agencia y la verificación de la cadena por terceros.
package verifactu

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/facturasoft/verifactu-api/internal/domain/entity"
)

// Plantillas de numeración por defecto cuando la empresa no configura fórmula.
const (
	defaultFormula  = "%n%"
	defaultFormulaR = "R-%n%"
)

// padRe captura el marcador %n.W% (número con relleno de ceros a anchura W).
var padRe = regexp.MustCompile(`%n\.(\d+)%`)

// DisplayNumber aplica la fórmula de numeración de la empresa a la factura y
// devuelve el NumSerieFactura visible. Marcadores admitidos: %n% (secuencia),
// %n.W% (secuencia con ceros a anchura W), %y% (año 2 dígitos), %Y% (año 4).
// Los tipos F usan Formula; los tipos R usan FormulaR.
func DisplayNumber(c *entity.Company, inv *entity.Invoice) string {
	var tpl string
	if strings.HasPrefix(inv.Type, "F") {
		tpl = defaultFormula
		if c.Formula != nil {
			tpl = *c.Formula
		}
	} else {
		tpl = defaultFormulaR
		if c.FormulaR != nil {
			tpl = *c.FormulaR
		}
	}

	s := padRe.ReplaceAllStringFunc(tpl, func(m string) string {
		width, _ := strconv.Atoi(padRe.FindStringSubmatch(m)[1])
		return fmt.Sprintf("%0*d", width, inv.Number)
	})

	year := inv.IssueDate.Year()
	s = strings.ReplaceAll(s, "%n%", strconv.Itoa(inv.Number))
	s = strings.ReplaceAll(s, "%y%", fmt.Sprintf("%02d", year%100))
	s = strings.ReplaceAll(s, "%Y%", strconv.Itoa(year))
	return s
}

// Currency formatea un importe para la AEAT: punto decimal, 2 decimales,
// sin separador de miles (ej: 121.00).
func Currency(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

// IssueDate formatea la fecha de expedición como DD-MM-YYYY.
func IssueDate(t time.Time) string {
	return t.Format("02-01-2006")
}

// NormalizeID pasa a mayúsculas y elimina todo carácter no alfanumérico.
// Se aplica a todos los NIF enviados a la AEAT.
func NormalizeID(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
