package logger

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// AuditFile es el registro de interacciones con la AEAT: un archivo de texto
// de solo adición con una línea con marca de tiempo por resultado. Es
// independiente del logger estructurado porque su formato es un requisito
// operativo, no de observabilidad.
type AuditFile struct {
	mu   sync.Mutex
	path string
	log  *Logger
}

// NewAuditFile crea el sink. path vacío desactiva la escritura a archivo: las
// líneas solo salen por el logger estructurado.
func NewAuditFile(path string, log *Logger) *AuditFile {
	return &AuditFile{path: path, log: log}
}

// Append añade una línea "YYYY-MM-DD HH:MM:SS <texto>" al archivo y la emite
// también por el logger. Los errores de escritura se notifican pero no
// interrumpen el flujo de envío.
func (a *AuditFile) Append(text string) {
	a.log.Info().Str("audit", text).Msg("aeat")

	if a.path == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		a.log.Error().Err(err).Str("file", a.path).Msg("no se pudo abrir el log de auditoría")
		return
	}
	defer f.Close()

	line := fmt.Sprintf("%s %s\n", time.Now().UTC().Format("2006-01-02 15:04:05"), text)
	if _, err := f.WriteString(line); err != nil {
		a.log.Error().Err(err).Str("file", a.path).Msg("no se pudo escribir el log de auditoría")
	}
}
