// Cliente HTTPS del servicio VerifactuSOAP de la AEAT con autenticación
// mutua por certificado de cliente.

package aeat

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Endpoints oficiales del suministro VeriFactu (producción y pruebas).
const (
	urlProd = "https://www1.agenciatributaria.gob.es/wlpl/TIKE-CONT/ws/SistemaFacturacion/VerifactuSOAP"
	urlTest = "https://prewww1.aeat.es/wlpl/TIKE-CONT/ws/SistemaFacturacion/VerifactuSOAP"
)

// ErrInvalidResponse indica una respuesta que no se pudo interpretar como
// sobre VeriFactu. El reconciliador la trata como conjunto vacío de
// resultados: las facturas siguen pendientes y se reintentan en el próximo
// barrido.
var ErrInvalidResponse = errors.New("aeat: respuesta XML inválida")

// TransportError es un fallo de transporte (conexión, timeout o estado HTTP
// distinto de 2xx). No se persiste nada: el reintento es seguro.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("aeat: fallo de conexión: %v", e.Err)
	}
	return fmt.Sprintf("aeat: estado HTTP %d", e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client envía sobres XML al servicio VerifactuSOAP. Una instancia sirve a
// todas las empresas; el destino (producción o pruebas) se decide por envío.
type Client struct {
	httpClient *http.Client
	urlProd    string
	urlTest    string
	saveDir    string
	log        zerolog.Logger
}

// ClientOption configura opciones del cliente.
type ClientOption func(*Client)

// WithEndpoints sustituye las URLs de producción y pruebas (tests).
func WithEndpoints(prod, test string) ClientOption {
	return func(c *Client) {
		c.urlProd = prod
		c.urlTest = test
	}
}

// WithSaveDir activa el volcado de sobres enviados y respuestas recibidas a
// un directorio (send_<ts>.xml / resp_<ts>.xml) para auditoría.
func WithSaveDir(dir string) ClientOption {
	return func(c *Client) { c.saveDir = dir }
}

// NewClient construye el cliente mTLS con un timeout generoso (60 s): el
// servicio de la AEAT puede tardar varios segundos con lotes grandes.
//
// La validación del certificado del servidor es deliberadamente permisiva
// (InsecureSkipVerify): el endpoint de la AEAT se confía por convenio y su
// cadena intermedia ha dado problemas históricos de verificación. Cambiar
// esto requiere revisar el despliegue de los certificados raíz de la FNMT.
func NewClient(cert tls.Certificate, log zerolog.Logger, opts ...ClientOption) *Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			Certificates:       []tls.Certificate{cert},
			InsecureSkipVerify: true, //nolint:gosec // ver comentario del constructor
		},
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second, Transport: transport},
		urlProd:    urlProd,
		urlTest:    urlTest,
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit envía un sobre de suministro y devuelve la respuesta parseada.
// Errores de transporte → *TransportError; XML no interpretable →
// ErrInvalidResponse. En ambos casos no se ha mutado ninguna factura.
func (c *Client) Submit(ctx context.Context, test bool, envelope []byte) (*SubmitResponse, error) {
	raw, err := c.post(ctx, test, envelope, true)
	if err != nil {
		return nil, err
	}

	var env submitResponseEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if env.Body.Respuesta == nil {
		return nil, ErrInvalidResponse
	}
	return env.Body.Respuesta, nil
}

// Query envía un sobre de consulta. Una respuesta no interpretable produce
// una lista vacía, no un error: la consulta no muta estado y el llamante no
// tiene nada que reconciliar.
func (c *Client) Query(ctx context.Context, test bool, envelope []byte) (*QueryResponse, error) {
	raw, err := c.post(ctx, test, envelope, false)
	if err != nil {
		return nil, err
	}

	var env queryResponseEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil || env.Body.Respuesta == nil {
		c.log.Warn().Msg("consulta AEAT: respuesta no interpretable, devolviendo lista vacía")
		return &QueryResponse{}, nil
	}
	return env.Body.Respuesta, nil
}

func (c *Client) endpoint(test bool) string {
	if test {
		return c.urlTest
	}
	return c.urlProd
}

func (c *Client) post(ctx context.Context, test bool, payload []byte, save bool) ([]byte, error) {
	if save {
		c.dump("send_", payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(test), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("aeat: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Status: resp.StatusCode}
	}

	if save {
		c.dump("resp_", raw)
	}
	return raw, nil
}

// dump guarda el XML en el directorio de auditoría si está configurado.
func (c *Client) dump(prefix string, data []byte) {
	if c.saveDir == "" {
		return
	}
	name := filepath.Join(c.saveDir, prefix+time.Now().Format("20060102150405")+".xml")
	if err := os.WriteFile(name, data, 0o644); err != nil {
		c.log.Warn().Err(err).Str("file", name).Msg("no se pudo guardar el XML")
	}
}
