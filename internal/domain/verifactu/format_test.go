package verifactu_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/facturasoft/verifactu-api/internal/domain/entity"
	"github.com/facturasoft/verifactu-api/internal/domain/verifactu"
)

func strPtr(s string) *string { return &s }

func TestDisplayNumber_PlantillasPorDefecto(t *testing.T) {
	company := &entity.Company{}
	f1 := &entity.Invoice{Number: 12, Type: entity.TypeF1, IssueDate: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)}
	r1 := &entity.Invoice{Number: 3, Type: entity.TypeR1, IssueDate: f1.IssueDate}

	assert.Equal(t, "12", verifactu.DisplayNumber(company, f1), "los tipos F usan %n% por defecto")
	assert.Equal(t, "R-3", verifactu.DisplayNumber(company, r1), "los tipos R usan R-%n% por defecto")
}

func TestDisplayNumber_Marcadores(t *testing.T) {
	issue := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		formula string
		number  int
		want    string
	}{
		{"secuencia", "FAC-%n%", 7, "FAC-7"},
		{"relleno de ceros", "%n.5%", 42, "00042"},
		{"año dos dígitos", "%y%/%n%", 7, "25/7"},
		{"año cuatro dígitos", "%Y%-%n.3%", 7, "2025-007"},
		{"sin marcadores", "SERIE", 7, "SERIE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			company := &entity.Company{Formula: strPtr(tt.formula)}
			inv := &entity.Invoice{Number: tt.number, Type: entity.TypeF1, IssueDate: issue}
			assert.Equal(t, tt.want, verifactu.DisplayNumber(company, inv))
		})
	}
}

func TestDisplayNumber_FormulaRParaRectificativas(t *testing.T) {
	company := &entity.Company{
		Formula:  strPtr("F%y%/%n%"),
		FormulaR: strPtr("REC%y%/%n%"),
	}
	issue := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	f3 := &entity.Invoice{Number: 9, Type: entity.TypeF3, IssueDate: issue}
	r5 := &entity.Invoice{Number: 9, Type: entity.TypeR5, IssueDate: issue}

	// F3 es familia F aunque referencie facturas anteriores.
	assert.Equal(t, "F25/9", verifactu.DisplayNumber(company, f3))
	assert.Equal(t, "REC25/9", verifactu.DisplayNumber(company, r5))
}

func TestCurrency(t *testing.T) {
	assert.Equal(t, "121.00", verifactu.Currency(decimal.RequireFromString("121")))
	assert.Equal(t, "2.10", verifactu.Currency(decimal.RequireFromString("2.1")))
	assert.Equal(t, "0.35", verifactu.Currency(decimal.RequireFromString("0.345")))
	assert.Equal(t, "1234567.89", verifactu.Currency(decimal.RequireFromString("1234567.89")),
		"sin separador de miles")
}

func TestIssueDate(t *testing.T) {
	d := time.Date(2025, 3, 9, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "09-03-2025", verifactu.IssueDate(d), "formato DD-MM-YYYY con ceros")
}

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, "B12345678", verifactu.NormalizeID(" b-12.345.678 "))
	assert.Equal(t, "ESA99999999", verifactu.NormalizeID("es-a99999999"))
	assert.Equal(t, "", verifactu.NormalizeID("--//--"))
}
