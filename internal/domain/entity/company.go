package entity

import "time"

// Company representa una empresa emisora obligada a VeriFactu.
// El núcleo solo lee sus datos y escribe NextSend (throttling AEAT).
type Company struct {
	ID       string
	Name     string  // Nombre o razón social (NombreRazonEmisor)
	VatID    string  // NIF del emisor
	Test     bool    // true = entorno de pruebas AEAT, false = producción
	FirstNum int     // Primer número de la serie (por defecto 1)
	Formula  *string // Plantilla de numeración para tipos F (nil = "%n%")
	FormulaR *string // Plantilla de numeración para tipos R (nil = "R-%n%")
	// NextSend es el instante a partir del cual la AEAT admite otro envío
	// (TiempoEsperaEnvio de la última respuesta). nil = enviar ya.
	NextSend  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DueNow indica si la empresa puede enviar un lote en este instante.
func (c *Company) DueNow(now time.Time) bool {
	return c.NextSend == nil || !c.NextSend.After(now)
}
