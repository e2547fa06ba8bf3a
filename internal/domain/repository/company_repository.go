package repository

import (
	"context"
	"time"

	"github.com/facturasoft/verifactu-api/internal/domain/entity"
)

// CompanyRepository define el puerto de persistencia para Company.
// El núcleo VeriFactu solo lee empresas y escribe next_send.
type CompanyRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Company, error)
	// List devuelve todas las empresas; el barrido de pendientes decide con
	// NextSend cuáles están en ventana de envío.
	List(ctx context.Context) ([]*entity.Company, error)
	// UpdateNextSend fija el próximo instante de envío admitido por la AEAT
	// (ahora + TiempoEsperaEnvio de la última respuesta).
	UpdateNextSend(ctx context.Context, companyID string, next time.Time) error
}
