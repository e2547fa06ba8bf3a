package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrCompanyNotFound    = errors.New("empresa no encontrada")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrNoInvoiceLines     = errors.New("la factura no tiene líneas")
	ErrDuplicate          = errors.New("recurso duplicado")
	ErrUnauthorized       = errors.New("no autorizado")
	ErrAlreadyVoided      = errors.New("la factura ya está anulada")
	ErrNotSubmitted       = errors.New("la factura no se ha enviado a la AEAT")
	ErrAlreadyReferenced  = errors.New("la factura ya está referenciada por una rectificativa")
	ErrInvalidInvoiceType = errors.New("tipo de factura no admitido para la operación")
)
